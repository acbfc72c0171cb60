// Package orchestrator выполняет оркестрацию целиком.
//
// Runner отвечает за:
//   - Валидацию спецификации и построение порядка (до любого запуска)
//   - Запуск шагов, зависимости которых завершились успешно
//   - Остановку после падения шага (отключается ContinueOnFailure)
//   - Формирование отчёта, сохранение и публикацию событий
//
// При MaxParallel = 1 шаги выполняются строго по топологическому порядку.
package orchestrator
