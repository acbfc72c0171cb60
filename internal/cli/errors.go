package cli

import "errors"

// ErrOrchestrationFailed — оркестрация завершилась не SUCCEEDED.
// Отчёт уже выведен, main завершает процесс с кодом 1.
var ErrOrchestrationFailed = errors.New("orchestration did not succeed")
