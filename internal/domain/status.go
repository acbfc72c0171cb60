package domain

// OrchestrationStatus — итоговый статус оркестрации.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED    (хотя бы один шаг упал)
//	        ↘ CANCELLED (контекст отменён до завершения)
type OrchestrationStatus string

const (
	// OrchestrationStatusRunning — оркестрация выполняется.
	OrchestrationStatusRunning OrchestrationStatus = "RUNNING"

	// OrchestrationStatusSucceeded — все шаги успешно завершены.
	OrchestrationStatusSucceeded OrchestrationStatus = "SUCCEEDED"

	// OrchestrationStatusFailed — хотя бы один шаг завершился ошибкой.
	OrchestrationStatusFailed OrchestrationStatus = "FAILED"

	// OrchestrationStatusCancelled — выполнение прервано отменой контекста.
	OrchestrationStatusCancelled OrchestrationStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s OrchestrationStatus) IsTerminal() bool {
	switch s {
	case OrchestrationStatusSucceeded, OrchestrationStatusFailed, OrchestrationStatusCancelled:
		return true
	default:
		return false
	}
}

// StepStatus — итоговый статус шага в отчёте.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ SKIPPED (не запускался: остановка или упавшая зависимость)
type StepStatus string

const (
	// StepStatusPending — шаг ещё не запускался.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — workflow запущен, идёт polling.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusSucceeded — удалённый workflow завершился успешно.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — trigger, polling или сам workflow завершились ошибкой.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг не был запущен.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// RunState — состояние state machine удалённого workflow для одного шага.
//
//	IDLE → TRIGGERING → POLLING → SUCCESS
//	                 ↘         ↘ FAILED
//	                   FAILED
type RunState string

const (
	RunStateIdle       RunState = "IDLE"
	RunStateTriggering RunState = "TRIGGERING"
	RunStatePolling    RunState = "POLLING"
	RunStateSuccess    RunState = "SUCCESS"
	RunStateFailed     RunState = "FAILED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s RunState) IsTerminal() bool {
	return s == RunStateSuccess || s == RunStateFailed
}

// RemoteStatus — статус запуска на стороне GitHub Actions
// (поле status, а для завершённых — conclusion).
type RemoteStatus string

const (
	RemoteStatusQueued         RemoteStatus = "queued"
	RemoteStatusInProgress     RemoteStatus = "in_progress"
	RemoteStatusWaiting        RemoteStatus = "waiting"
	RemoteStatusRequested      RemoteStatus = "requested"
	RemoteStatusPending        RemoteStatus = "pending"
	RemoteStatusCompleted      RemoteStatus = "completed"
	RemoteStatusSuccess        RemoteStatus = "success"
	RemoteStatusNeutral        RemoteStatus = "neutral"
	RemoteStatusSkipped        RemoteStatus = "skipped"
	RemoteStatusFailure        RemoteStatus = "failure"
	RemoteStatusTimedOut       RemoteStatus = "timed_out"
	RemoteStatusCancelled      RemoteStatus = "cancelled"
	RemoteStatusStartupFailure RemoteStatus = "startup_failure"
	RemoteStatusActionRequired RemoteStatus = "action_required"
	RemoteStatusStale          RemoteStatus = "stale"
)
