// Package cli реализует команды mrot.
//
// # Ключевые компоненты
//
// ## App
//
// Зависимости команд: конфигурация из окружения, GitHub клиент,
// драйвер шагов и Runner. История (Postgres) и события (RabbitMQ)
// подключаются, только если заданы DB_URL и RABBITMQ_URL.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения и логи — в stderr.
// Это позволяет использовать pipe: mrot run --json | jq .
//
// ## Commands
//
//   - run      — выполнить оркестрацию
//   - plan     — проверить файл и вывести порядок выполнения
//   - schedule — выполнять оркестрацию по cron-расписанию
//   - history  — история отчётов (list, show)
//   - events   — поток событий из RabbitMQ
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей appFn и outputFn — замыкания для ленивого создания
// App и Output после парсинга PersistentFlags.
package cli
