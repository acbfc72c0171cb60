package mq

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/mrot/internal/domain"
)

// EventPublisher — публикация событий выполнения.
//
// Реализация: *Publisher.
type EventPublisher interface {
	PublishStepFinished(ctx context.Context, payload StepFinishedPayload) error
	PublishOrchestrationFinished(ctx context.Context, payload OrchestrationFinishedPayload) error
}

// Notifier переводит результаты оркестрации в события брокера.
type Notifier struct {
	publisher EventPublisher
}

// NewNotifier создаёт новый Notifier.
func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// StepFinished публикует step.finished.
func (n *Notifier) StepFinished(ctx context.Context, orchestrationID uuid.UUID, name string, result domain.StepResult) error {
	return n.publisher.PublishStepFinished(ctx, NewStepFinishedPayload(orchestrationID, name, result))
}

// OrchestrationFinished публикует orchestration.finished.
func (n *Notifier) OrchestrationFinished(ctx context.Context, report *domain.Report) error {
	return n.publisher.PublishOrchestrationFinished(ctx, NewOrchestrationFinishedPayload(report))
}

// NewStepFinishedPayload собирает payload из результата шага.
func NewStepFinishedPayload(orchestrationID uuid.UUID, name string, result domain.StepResult) StepFinishedPayload {
	return StepFinishedPayload{
		OrchestrationID: orchestrationID,
		Step:            name,
		Target:          result.Target,
		WorkflowID:      result.WorkflowID,
		Status:          string(result.Status),
		Reason:          result.Reason,
		RemoteID:        result.RemoteID,
		HTMLURL:         result.HTMLURL,
		Polls:           result.Polls,
		DurationMs:      result.Duration().Milliseconds(),
	}
}

// NewOrchestrationFinishedPayload собирает payload из отчёта.
func NewOrchestrationFinishedPayload(report *domain.Report) OrchestrationFinishedPayload {
	steps := make(map[string]int)
	for status, n := range report.Counts() {
		steps[string(status)] = n
	}

	return OrchestrationFinishedPayload{
		OrchestrationID: report.ID,
		Name:            report.Name,
		Status:          string(report.Status),
		Steps:           steps,
		DurationMs:      report.Duration().Milliseconds(),
	}
}
