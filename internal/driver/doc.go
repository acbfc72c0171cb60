// Package driver запускает workflow шага в удалённом CI и дожидается результата.
//
// Жизненный цикл запуска:
//
//	IDLE → TRIGGERING → POLLING → SUCCESS | FAILED
//
// Файлы:
//   - driver.go — Driver, Trigger и Execute
//   - poll.go — Poll, PollUntilComplete и классификация статусов
//   - backoff.go — политика задержек между опросами
//   - errors.go — ошибки и причины Failure
package driver
