// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все команды используют единый формат логирования; `mrot schedule`
// дополнительно экспортирует метрики на /metrics endpoint.
package telemetry
