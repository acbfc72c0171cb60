package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/github"
	"github.com/shaiso/mrot/internal/telemetry"
)

// Default configuration values.
const (
	defaultRef          = "main"
	defaultMaxAttempts  = 6
	defaultBaseInterval = 10 * time.Second
	defaultMultiplier   = 2.0
	defaultMaxInterval  = 5 * time.Minute
	defaultClockSkew    = 5 * time.Second
)

// Pipeline — удалённый CI, в котором выполняются workflow.
//
// Реализация: *github.Client.
type Pipeline interface {
	Dispatch(ctx context.Context, req github.DispatchRequest) error
	ListRuns(ctx context.Context, q github.RunsQuery) (*github.RunsSnapshot, error)
}

// Driver выполняет один шаг оркестрации в удалённом CI.
//
// Для каждого шага:
//   - Trigger: ровно один dispatch, без повторов
//   - PollUntilComplete: опросы статуса с exponential backoff,
//     не больше MaxAttempts
//
// Драйвер не хранит состояния между шагами и может использоваться
// из нескольких горутин одновременно.
type Driver struct {
	pipeline    Pipeline
	defaultRef  string
	maxAttempts int
	backoff     BackoffPolicy
	clockSkew   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// Config — конфигурация Driver.
type Config struct {
	// Pipeline — клиент удалённого CI (обязательно).
	Pipeline Pipeline

	// DefaultRef — git ref для шагов без ref (default: main).
	DefaultRef string

	// MaxAttempts — максимальное количество опросов на шаг (default: 6).
	MaxAttempts int

	// Backoff — задержка между опросами
	// (default: ExponentialBackoff(10s, 2, 5m)).
	Backoff BackoffPolicy

	// ClockSkew — запас на расхождение часов при поиске запуска после dispatch (default: 5s).
	ClockSkew time.Duration

	// Sleep — ожидание между опросами (default: таймер с учётом context).
	Sleep SleepFunc

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Driver.
func New(cfg Config) (*Driver, error) {
	if cfg.Pipeline == nil {
		return nil, ErrNoPipeline
	}

	ref := cfg.DefaultRef
	if ref == "" {
		ref = defaultRef
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	backoff := cfg.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(defaultBaseInterval, defaultMultiplier, defaultMaxInterval)
	}

	clockSkew := cfg.ClockSkew
	if clockSkew <= 0 {
		clockSkew = defaultClockSkew
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		pipeline:    cfg.Pipeline,
		defaultRef:  ref,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		clockSkew:   clockSkew,
		sleep:       sleep,
		logger:      logger,
	}, nil
}

// MaxAttempts возвращает лимит опросов на шаг.
func (d *Driver) MaxAttempts() int {
	return d.maxAttempts
}

// Execute выполняет шаг целиком: Trigger, затем PollUntilComplete.
//
// Ошибка trigger завершает шаг сразу. Результат всегда содержит
// финальный статус (SUCCEEDED или FAILED).
func (d *Driver) Execute(ctx context.Context, step *domain.Step) domain.StepResult {
	started := time.Now()
	result := domain.StepResult{
		Step:       step.Name,
		Target:     step.Target(),
		WorkflowID: step.WorkflowID,
		StartedAt:  &started,
	}

	telemetry.StepsInFlight.Inc()
	defer telemetry.StepsInFlight.Dec()

	logger := telemetry.WithStep(d.loggerFrom(ctx), step.Name, step.Target(), step.WorkflowID)

	run, err := d.Trigger(ctx, step)
	if err != nil {
		d.finish(&result, domain.StepStatusFailed, err.Error())
		logger.Warn("step failed", "reason", result.Reason)
		return result
	}

	outcome := d.PollUntilComplete(ctx, run, d.maxAttempts, d.backoff)

	result.RemoteID = run.RemoteID
	result.HTMLURL = run.HTMLURL
	result.Polls = run.Polls

	if outcome.IsSuccess() {
		d.finish(&result, domain.StepStatusSucceeded, "")
		logger.Info("step succeeded",
			"polls", result.Polls,
			"duration", result.Duration(),
			"url", result.HTMLURL,
		)
		return result
	}

	d.finish(&result, domain.StepStatusFailed, outcome.Reason)
	logger.Warn("step failed",
		"reason", result.Reason,
		"polls", result.Polls,
		"url", result.HTMLURL,
	)
	return result
}

// finish фиксирует финальный статус шага и пишет метрику.
func (d *Driver) finish(result *domain.StepResult, status domain.StepStatus, reason string) {
	now := time.Now()
	result.Status = status
	result.Reason = reason
	result.FinishedAt = &now

	telemetry.StepDuration.WithLabelValues(string(status)).Observe(result.Duration().Seconds())
}

// Trigger запускает workflow шага (IDLE → TRIGGERING → POLLING).
//
// Отказ API или сетевая ошибка возвращаются как *TriggerError,
// run при этом переходит в FAILED. Повторных попыток нет.
func (d *Driver) Trigger(ctx context.Context, step *domain.Step) (*domain.WorkflowRun, error) {
	run := domain.NewWorkflowRun(step)
	run.Ref = step.Ref
	if run.Ref == "" {
		run.Ref = d.defaultRef
	}

	run.Transition(domain.RunStateTriggering)
	run.DispatchedAt = time.Now()

	err := d.pipeline.Dispatch(ctx, github.DispatchRequest{
		Owner:      step.Owner,
		Repo:       step.Repo,
		WorkflowID: step.WorkflowID,
		Ref:        run.Ref,
		Inputs:     step.Inputs(),
	})
	if err != nil {
		run.Transition(domain.RunStateFailed)
		telemetry.WorkflowTriggers.WithLabelValues(triggerResult(err)).Inc()
		return run, &TriggerError{Step: step.Name, Err: err}
	}

	telemetry.WorkflowTriggers.WithLabelValues("accepted").Inc()
	run.Transition(domain.RunStatePolling)

	d.loggerFrom(ctx).Info("workflow triggered",
		"step", step.Name,
		"target", step.Target(),
		"workflow_id", step.WorkflowID,
		"ref", run.Ref,
	)

	return run, nil
}

// triggerResult — label метрики для неудачного dispatch.
func triggerResult(err error) string {
	if _, ok := err.(*github.APIError); ok {
		return "rejected"
	}
	return "error"
}

// String для логов.
func (d *Driver) String() string {
	return fmt.Sprintf("driver(ref=%s, max_attempts=%d)", d.defaultRef, d.maxAttempts)
}

// loggerFrom возвращает логгер из контекста или логгер драйвера.
func (d *Driver) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return d.logger
}
