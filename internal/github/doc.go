// Package github — клиент GitHub Actions REST API.
//
// Клиент знает только две операции: запуск workflow (workflow_dispatch)
// и чтение последнего запуска. Интерпретация статусов и повторные опросы —
// забота пакета driver.
package github
