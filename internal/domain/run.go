package domain

import "time"

// WorkflowRun — один запуск удалённого workflow для одного шага.
//
// WorkflowRun создаётся при trigger и живёт только пока шаг не достигнет
// финального состояния. В БД не сохраняется: в отчёт попадает StepResult.
type WorkflowRun struct {
	// Step — шаг, для которого запущен workflow.
	Step *Step

	// Ref — git ref, на котором был dispatch.
	Ref string

	// DispatchedAt — время dispatch. Запуски, созданные раньше, не учитываются.
	DispatchedAt time.Time

	// RemoteID — ID запуска в GitHub (0, пока запуск не появился в списке).
	RemoteID int64

	// HTMLURL — ссылка на запуск в GitHub UI.
	HTMLURL string

	// State — текущее состояние state machine.
	State RunState

	// History — история переходов состояния.
	History []RunTransition

	// Polls — количество выполненных опросов.
	Polls int

	// LastStatus — последний статус, полученный от GitHub.
	LastStatus RemoteStatus
}

// RunTransition — переход state machine.
type RunTransition struct {
	From RunState  `json:"from"`
	To   RunState  `json:"to"`
	At   time.Time `json:"at"`
}

// NewWorkflowRun создаёт WorkflowRun в состоянии IDLE.
func NewWorkflowRun(step *Step) *WorkflowRun {
	return &WorkflowRun{
		Step:  step,
		State: RunStateIdle,
	}
}

// Transition переводит run в новое состояние и записывает переход.
// Из финального состояния переходы не выполняются.
func (r *WorkflowRun) Transition(to RunState) {
	if r.State.IsTerminal() || r.State == to {
		return
	}
	r.History = append(r.History, RunTransition{From: r.State, To: to, At: time.Now()})
	r.State = to
}

// StepResult — итог выполнения шага в отчёте.
type StepResult struct {
	// Step — имя шага.
	Step string `json:"step"`

	// Target — "owner/repo".
	Target string `json:"target"`

	// WorkflowID — идентификатор workflow.
	WorkflowID string `json:"workflow_id"`

	// Status — итоговый статус шага.
	Status StepStatus `json:"status"`

	// Reason — причина ошибки или пропуска.
	Reason string `json:"reason,omitempty"`

	// RemoteID — ID запуска в GitHub (если известен).
	RemoteID int64 `json:"remote_id,omitempty"`

	// HTMLURL — ссылка на запуск.
	HTMLURL string `json:"html_url,omitempty"`

	// Polls — количество опросов статуса.
	Polls int `json:"polls"`

	// StartedAt — время trigger. Nil для пропущенных шагов.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения финального состояния.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения шага.
func (r *StepResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// NewSkippedResult создаёт StepResult для шага, который не запускался.
func NewSkippedResult(step *Step, reason string) StepResult {
	return StepResult{
		Step:       step.Name,
		Target:     step.Target(),
		WorkflowID: step.WorkflowID,
		Status:     StepStatusSkipped,
		Reason:     reason,
	}
}
