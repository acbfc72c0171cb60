package domain

import "fmt"

// OutcomeKind — тип результата одного опроса удалённого workflow.
type OutcomeKind int

const (
	// OutcomePending — workflow ещё не завершён (или опрос невозможен сейчас).
	OutcomePending OutcomeKind = iota

	// OutcomeSuccess — workflow завершился успешно.
	OutcomeSuccess

	// OutcomeFailure — workflow или опрос завершились ошибкой.
	OutcomeFailure
)

// String возвращает строковое представление OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// PendingReason — причина, по которой результат ещё не известен.
type PendingReason int

const (
	// PendingNotYetComplete — workflow в очереди или выполняется.
	PendingNotYetComplete PendingReason = iota

	// PendingRateLimited — API исчерпал квоту запросов.
	PendingRateLimited
)

// String возвращает строковое представление PendingReason.
func (r PendingReason) String() string {
	if r == PendingRateLimited {
		return "rate_limited"
	}
	return "not_yet_complete"
}

// PollOutcome — результат одного опроса: Success, Failure(reason)
// или Pending(RateLimited | NotYetComplete).
type PollOutcome struct {
	Kind OutcomeKind

	// Pending — причина ожидания (только для OutcomePending).
	Pending PendingReason

	// Reason — описание ошибки (только для OutcomeFailure).
	Reason string
}

// Success создаёт успешный PollOutcome.
func Success() PollOutcome {
	return PollOutcome{Kind: OutcomeSuccess}
}

// Failure создаёт PollOutcome с ошибкой.
func Failure(reason string) PollOutcome {
	return PollOutcome{Kind: OutcomeFailure, Reason: reason}
}

// Pending создаёт PollOutcome ожидания.
func Pending(reason PendingReason) PollOutcome {
	return PollOutcome{Kind: OutcomePending, Pending: reason}
}

// IsSuccess возвращает true для Success.
func (o PollOutcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// IsFailure возвращает true для Failure с любой причиной.
func (o PollOutcome) IsFailure() bool { return o.Kind == OutcomeFailure }

// IsRateLimited возвращает true для Pending(RateLimited).
func (o PollOutcome) IsRateLimited() bool {
	return o.Kind == OutcomePending && o.Pending == PendingRateLimited
}

// IsTerminal возвращает true для Success и Failure.
func (o PollOutcome) IsTerminal() bool {
	return o.Kind != OutcomePending
}

// String возвращает строковое представление для логов.
func (o PollOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return fmt.Sprintf("failure(%s)", o.Reason)
	default:
		return fmt.Sprintf("pending(%s)", o.Pending)
	}
}
