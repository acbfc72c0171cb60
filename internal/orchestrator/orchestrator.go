package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/engine"
	"github.com/shaiso/mrot/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxParallel = 1
)

// StepExecutor выполняет один шаг в удалённом CI.
//
// Реализация: *driver.Driver.
type StepExecutor interface {
	Execute(ctx context.Context, step *domain.Step) domain.StepResult
}

// ReportStore сохраняет итоговые отчёты.
//
// Реализация: *repo.ReportRepo.
type ReportStore interface {
	Save(ctx context.Context, report *domain.Report) error
}

// Notifier публикует события выполнения.
//
// Реализация: *mq.Notifier.
type Notifier interface {
	StepFinished(ctx context.Context, orchestrationID uuid.UUID, name string, result domain.StepResult) error
	OrchestrationFinished(ctx context.Context, report *domain.Report) error
}

// Runner выполняет оркестрацию.
//
// Runner:
//   - Всегда валидирует спецификацию и строит порядок (engine.Plan)
//   - Запускает шаги, у которых все зависимости завершились успешно
//   - Не запускает новые шаги после первого падения (если не задан ContinueOnFailure)
//   - Формирует отчёт по всем шагам, включая незапущенные
type Runner struct {
	executor      StepExecutor
	store         ReportStore
	notifier      Notifier
	stopOnFailure bool
	maxParallel   int
	logger        *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Executor — исполнитель шагов (обязательно).
	Executor StepExecutor

	// Store — хранилище отчётов (опционально).
	Store ReportStore

	// Notifier — публикация событий (опционально).
	Notifier Notifier

	// ContinueOnFailure — продолжать запуск независимых шагов после падения шага.
	// По умолчанию после первого падения новые шаги не запускаются.
	ContinueOnFailure bool

	// MaxParallel — максимальное количество одновременно выполняющихся шагов (default: 1).
	MaxParallel int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Executor == nil {
		return nil, ErrNoExecutor
	}

	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		executor:      cfg.Executor,
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		stopOnFailure: !cfg.ContinueOnFailure,
		maxParallel:   maxParallel,
		logger:        logger,
	}, nil
}

// Run выполняет оркестрацию и возвращает отчёт.
//
// Ошибка возвращается только если спецификация невалидна или содержит
// цикл: в этом случае ни один шаг не запускается. Падения шагов
// попадают в отчёт (Report.Status == FAILED).
func (r *Runner) Run(ctx context.Context, spec *domain.OrchestrationSpec) (*domain.Report, error) {
	g, order, err := engine.Plan(spec)
	if err != nil {
		return nil, planError(err)
	}

	report := domain.NewReport(spec.Name)
	logger := telemetry.WithOrchestrationID(r.logger, report.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	logger.Info("orchestration started",
		"name", spec.Name,
		"steps", g.Size(),
		"order", g.Names(order),
		"stop_on_failure", r.stopOnFailure,
		"max_parallel", r.maxParallel,
	)

	state := NewRunState(g, order)
	r.execute(ctx, report.ID, state)

	cancelled := ctx.Err() != nil
	report.Steps = state.Results(cancelled)
	report.Finish(cancelled)

	r.onOrchestrationFinished(ctx, report, state.Stopped())

	return report, nil
}

// execute запускает готовые шаги, пока они есть.
//
// Шаги запускаются в порядке order, не больше maxParallel одновременно.
// При maxParallel = 1 это последовательный обход топологического порядка.
func (r *Runner) execute(ctx context.Context, orchestrationID uuid.UUID, state *RunState) {
	var g errgroup.Group
	g.SetLimit(r.maxParallel)

	done := make(chan struct{}, state.Graph.Size())

	for {
		if ctx.Err() == nil {
			for _, node := range state.ReadySteps(r.maxParallel - state.InFlight()) {
				node := node
				state.MarkStarted(node.Index)

				g.Go(func() error {
					result := r.executor.Execute(ctx, node.Step)
					state.MarkFinished(node.Index, result, r.stopOnFailure)
					r.onStepFinished(ctx, orchestrationID, node, result, state)
					done <- struct{}{}
					return nil
				})
			}
		}

		if state.InFlight() == 0 {
			break
		}
		<-done
	}

	_ = g.Wait()
}

// planError оборачивает ошибку планирования в ошибку оркестратора.
func planError(err error) error {
	var cycleErr *engine.CycleError
	if errors.As(err, &cycleErr) {
		return fmt.Errorf("%w: %w", ErrCyclicDependency, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
}
