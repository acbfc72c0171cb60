package domain

import (
	"time"

	"github.com/google/uuid"
)

// Report — итоговый отчёт оркестрации.
//
// Содержит результат каждого шага в порядке выполнения, включая шаги,
// которые не были запущены (SKIPPED).
type Report struct {
	// ID — идентификатор запуска оркестрации.
	ID uuid.UUID `json:"id"`

	// Name — имя оркестрации.
	Name string `json:"name"`

	// Status — итоговый статус.
	Status OrchestrationStatus `json:"status"`

	// Steps — результаты шагов в топологическом порядке.
	Steps []StepResult `json:"steps"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока оркестрация выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewReport создаёт отчёт в статусе RUNNING.
func NewReport(name string) *Report {
	return &Report{
		ID:        uuid.New(),
		Name:      name,
		Status:    OrchestrationStatusRunning,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность оркестрации.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish фиксирует итоговый статус по результатам шагов.
func (r *Report) Finish(cancelled bool) {
	now := time.Now()
	r.FinishedAt = &now

	switch {
	case r.HasFailed():
		r.Status = OrchestrationStatusFailed
	case cancelled:
		r.Status = OrchestrationStatusCancelled
	default:
		r.Status = OrchestrationStatusSucceeded
	}
}

// HasFailed проверяет, есть ли упавшие шаги.
func (r *Report) HasFailed() bool {
	for i := range r.Steps {
		if r.Steps[i].Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// Result возвращает результат шага по имени.
func (r *Report) Result(step string) (StepResult, bool) {
	for _, res := range r.Steps {
		if res.Step == step {
			return res, true
		}
	}
	return StepResult{}, false
}

// Counts возвращает количество шагов по статусам.
func (r *Report) Counts() map[StepStatus]int {
	counts := make(map[StepStatus]int)
	for _, res := range r.Steps {
		counts[res.Status]++
	}
	return counts
}
