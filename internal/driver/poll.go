package driver

import (
	"context"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/github"
	"github.com/shaiso/mrot/internal/telemetry"
)

// Poll выполняет один опрос статуса запуска и обновляет run.
//
// Ошибка транспорта или неожиданный ответ API дают Failure:
// повторяются только опросы, вернувшие Pending(NotYetComplete).
func (d *Driver) Poll(ctx context.Context, run *domain.WorkflowRun) domain.PollOutcome {
	if run == nil || run.Step == nil || run.State == domain.RunStateIdle || run.State == domain.RunStateTriggering {
		return domain.Failure(ReasonNotTriggered)
	}

	step := run.Step
	run.Polls++

	snapshot, err := d.pipeline.ListRuns(ctx, github.RunsQuery{
		Owner:      step.Owner,
		Repo:       step.Repo,
		WorkflowID: step.WorkflowID,
		Since:      run.DispatchedAt.Add(-d.clockSkew),
	})
	if err != nil {
		outcome := domain.Failure(err.Error())
		telemetry.WorkflowPolls.WithLabelValues(pollLabel(outcome)).Inc()
		return outcome
	}

	if snapshot.Found {
		run.RemoteID = snapshot.RunID
		run.HTMLURL = snapshot.HTMLURL
		run.LastStatus = snapshot.Status
		if snapshot.Conclusion != "" {
			run.LastStatus = snapshot.Conclusion
		}
	}

	outcome := Classify(snapshot)
	telemetry.WorkflowPolls.WithLabelValues(pollLabel(outcome)).Inc()

	d.loggerFrom(ctx).Debug("workflow polled",
		"step", step.Name,
		"attempt", run.Polls,
		"remote_id", run.RemoteID,
		"status", snapshot.Status,
		"conclusion", snapshot.Conclusion,
		"rate_limit_remaining", snapshot.RateLimitRemaining,
		"outcome", outcome.String(),
	)

	return outcome
}

// PollUntilComplete опрашивает запуск, пока не получит финальный результат.
//
// Между опросами ждёт backoff(attempt). После последнего опроса не ждёт.
// Pending(RateLimited) сразу завершает шаг: квота не восстановится
// за время backoff. Если за maxAttempts опросов workflow не завершился,
// возвращается Failure(ReasonRetryBudget).
func (d *Driver) PollUntilComplete(ctx context.Context, run *domain.WorkflowRun, maxAttempts int, backoff BackoffPolicy) domain.PollOutcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = d.backoff
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome := d.Poll(ctx, run)

		switch {
		case outcome.IsSuccess():
			run.Transition(domain.RunStateSuccess)
			return outcome
		case outcome.IsFailure():
			run.Transition(domain.RunStateFailed)
			return outcome
		case outcome.IsRateLimited():
			run.Transition(domain.RunStateFailed)
			return domain.Failure(ReasonRateLimited)
		}

		if attempt == maxAttempts {
			break
		}

		if err := d.sleep(ctx, backoff(attempt)); err != nil {
			run.Transition(domain.RunStateFailed)
			return domain.Failure("cancelled: " + err.Error())
		}
	}

	run.Transition(domain.RunStateFailed)
	return domain.Failure(ReasonRetryBudget)
}

// Classify переводит снимок состояния запуска в PollOutcome.
//
// Завершённый запуск классифицируется по conclusion даже при исчерпанной
// квоте. Незавершённый запуск при RateLimitRemaining == 0 даёт
// Pending(RateLimited).
func Classify(s *github.RunsSnapshot) domain.PollOutcome {
	if s == nil {
		return domain.Failure("empty response")
	}

	if s.Found && s.Status == domain.RemoteStatusCompleted {
		switch s.Conclusion {
		case "", domain.RemoteStatusSuccess, domain.RemoteStatusNeutral, domain.RemoteStatusSkipped:
			return domain.Success()
		default:
			return domain.Failure("workflow concluded: " + string(s.Conclusion))
		}
	}

	if s.RateLimited() {
		return domain.Pending(domain.PendingRateLimited)
	}

	if !s.Found {
		return domain.Pending(domain.PendingNotYetComplete)
	}

	switch s.Status {
	case domain.RemoteStatusQueued,
		domain.RemoteStatusInProgress,
		domain.RemoteStatusWaiting,
		domain.RemoteStatusRequested,
		domain.RemoteStatusPending,
		domain.RemoteStatusActionRequired,
		domain.RemoteStatusStale:
		return domain.Pending(domain.PendingNotYetComplete)
	case domain.RemoteStatusFailure,
		domain.RemoteStatusTimedOut,
		domain.RemoteStatusCancelled,
		domain.RemoteStatusStartupFailure:
		// status без completed встречается у старых API
		return domain.Failure("workflow concluded: " + string(s.Status))
	case domain.RemoteStatusSuccess:
		return domain.Success()
	default:
		return domain.Pending(domain.PendingNotYetComplete)
	}
}

// pollLabel — label метрики WorkflowPolls.
func pollLabel(o domain.PollOutcome) string {
	if o.IsRateLimited() {
		return "rate_limited"
	}
	return o.Kind.String()
}
