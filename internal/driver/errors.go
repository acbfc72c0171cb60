package driver

import "errors"

// Ошибки драйвера.
var (
	// ErrTriggerFailed — dispatch workflow не принят или не дошёл до API.
	// Повторно не выполняется: шаг сразу завершается ошибкой.
	ErrTriggerFailed = errors.New("workflow trigger failed")

	// ErrNoPipeline — драйвер создан без Pipeline.
	ErrNoPipeline = errors.New("driver has no pipeline")
)

// Причины Failure, которые формирует сам драйвер.
const (
	// ReasonRetryBudget — исчерпан лимит опросов, workflow ещё не завершён.
	ReasonRetryBudget = "exceeded retry budget"

	// ReasonRateLimited — API исчерпал квоту запросов.
	ReasonRateLimited = "rate limit exhausted"

	// ReasonNotTriggered — опрос без успешного trigger.
	ReasonNotTriggered = "workflow was not triggered"
)

// TriggerError — ошибка запуска workflow для шага.
type TriggerError struct {
	Step string // имя шага
	Err  error  // ошибка клиента (github.ErrRejected, github.ErrRequest)
}

// Error реализует интерфейс error.
func (e *TriggerError) Error() string {
	return "step " + e.Step + ": " + ErrTriggerFailed.Error() + ": " + e.Err.Error()
}

// Unwrap возвращает ошибку клиента.
func (e *TriggerError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять errors.Is(err, ErrTriggerFailed).
func (e *TriggerError) Is(target error) bool {
	return target == ErrTriggerFailed
}
