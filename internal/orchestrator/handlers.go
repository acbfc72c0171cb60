package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/engine"
	"github.com/shaiso/mrot/internal/telemetry"
)

// onStepFinished обрабатывает завершение шага: логирует и публикует событие.
// Ошибка публикации не влияет на результат шага.
func (r *Runner) onStepFinished(ctx context.Context, orchestrationID uuid.UUID, node *engine.Node, result domain.StepResult, state *RunState) {
	logger := telemetry.FromContext(ctx)

	stats := state.Stats()
	logger.Info("step finished",
		"step", node.Name(),
		"status", result.Status,
		"polls", result.Polls,
		"succeeded", stats.SucceededSteps,
		"failed", stats.FailedSteps,
		"pending", stats.PendingSteps,
	)

	if result.Status == domain.StepStatusFailed && r.stopOnFailure {
		logger.Warn("stopping orchestration: no new steps will be dispatched",
			"failed_step", node.Name(),
			"in_flight", stats.RunningSteps,
		)
	}

	if r.notifier == nil {
		return
	}

	if err := r.notifier.StepFinished(context.WithoutCancel(ctx), orchestrationID, node.Name(), result); err != nil {
		logger.Error("failed to publish step.finished", "step", node.Name(), "error", err)
	}
}

// onOrchestrationFinished фиксирует итог: метрики, сохранение отчёта, событие.
// Хранилище и публикация опциональны, их ошибки только логируются.
// stoppedBy — шаг, после падения которого запуск новых шагов остановлен, или "".
func (r *Runner) onOrchestrationFinished(ctx context.Context, report *domain.Report, stoppedBy string) {
	logger := telemetry.FromContext(ctx)

	telemetry.Orchestrations.WithLabelValues(string(report.Status)).Inc()

	counts := report.Counts()
	logger.Info("orchestration finished",
		"status", report.Status,
		"duration", report.Duration(),
		"succeeded", counts[domain.StepStatusSucceeded],
		"failed", counts[domain.StepStatusFailed],
		"skipped", counts[domain.StepStatusSkipped],
	)
	if stoppedBy != "" {
		logger.Warn("orchestration stopped early", "failed_step", stoppedBy, "not_dispatched", counts[domain.StepStatusSkipped])
	}

	// Отчёт сохраняется и после отмены контекста.
	ctx = context.WithoutCancel(ctx)

	if r.store != nil {
		if err := r.store.Save(ctx, report); err != nil {
			logger.Error("failed to save report", "error", err)
		}
	}

	if r.notifier != nil {
		if err := r.notifier.OrchestrationFinished(ctx, report); err != nil {
			logger.Error("failed to publish orchestration.finished", "error", err)
		}
	}
}
