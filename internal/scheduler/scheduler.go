package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/mrot/internal/domain"
	"github.com/shaiso/mrot/internal/engine"
)

// Runner выполняет оркестрацию.
//
// Реализация: *orchestrator.Runner.
type Runner interface {
	Run(ctx context.Context, spec *domain.OrchestrationSpec) (*domain.Report, error)
}

// Scheduler повторно запускает одну оркестрацию по расписанию.
//
// Запуски не перекрываются: если оркестрация выполнялась дольше
// интервала, пропущенные срабатывания не догоняются, следующее время
// считается от момента завершения.
type Scheduler struct {
	runner   Runner
	spec     *domain.OrchestrationSpec
	schedule cron.Schedule
	loc      *time.Location
	maxRuns  int
	now      func() time.Time
	logger   *slog.Logger

	mu         sync.RWMutex
	nextDue    time.Time
	stats      Stats
	lastReport *domain.Report
}

// Config — конфигурация Scheduler.
type Config struct {
	// Runner — исполнитель оркестрации (обязательно).
	Runner Runner

	// Spec — оркестрация (обязательно). Проверяется при создании.
	Spec *domain.OrchestrationSpec

	// Expr — cron-выражение или дескриптор (@hourly, @every 30m).
	Expr string

	// Timezone — timezone для cron-полей (default: UTC).
	Timezone string

	// RunOnStart — выполнить первый запуск сразу.
	RunOnStart bool

	// MaxRuns — остановиться после N запусков (0 — без ограничения).
	MaxRuns int

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	// Logger
	Logger *slog.Logger
}

// Stats — статистика запусков.
type Stats struct {
	Runs      int
	Succeeded int
	Failed    int
	Errors    int
}

// New создаёт новый Scheduler.
//
// Спецификация валидируется сразу: расписание с невалидной
// оркестрацией не запускается ни разу.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil || cfg.Spec == nil {
		return nil, ErrNoRunner
	}

	if _, _, err := engine.Plan(cfg.Spec); err != nil {
		return nil, fmt.Errorf("orchestration %q: %w", cfg.Spec.Name, err)
	}

	schedule, err := ParseSchedule(cfg.Expr)
	if err != nil {
		return nil, err
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		runner:   cfg.Runner,
		spec:     cfg.Spec,
		schedule: schedule,
		loc:      loc,
		maxRuns:  cfg.MaxRuns,
		now:      now,
		logger:   logger,
	}

	start := now()
	if cfg.RunOnStart {
		s.nextDue = start.UTC()
	} else {
		s.nextDue = CalculateNextDue(schedule, loc, start)
	}

	return s, nil
}

// NextDue возвращает время следующего запуска.
func (s *Scheduler) NextDue() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextDue
}

// Stats возвращает статистику запусков.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LastReport возвращает отчёт последнего запуска.
func (s *Scheduler) LastReport() *domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// Tick запускает оркестрацию, если наступило время.
// Возвращает true, если запуск был.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	if now.Before(s.NextDue()) {
		return false
	}

	s.logger.Info("scheduled orchestration due",
		"name", s.spec.Name,
		"due_at", s.NextDue(),
	)

	report, err := s.runner.Run(ctx, s.spec)

	s.mu.Lock()
	s.stats.Runs++
	switch {
	case err != nil:
		s.stats.Errors++
		s.logger.Error("scheduled orchestration failed to start", "name", s.spec.Name, "error", err)
	case report.Status == domain.OrchestrationStatusSucceeded:
		s.stats.Succeeded++
	default:
		s.stats.Failed++
	}
	if report != nil {
		s.lastReport = report
	}
	s.nextDue = CalculateNextDue(s.schedule, s.loc, s.now())
	next := s.nextDue
	s.mu.Unlock()

	s.logger.Info("scheduled orchestration completed",
		"name", s.spec.Name,
		"next_due_at", next,
	)

	return true
}

// Start выполняет оркестрацию по расписанию до отмены ctx или MaxRuns запусков.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"name", s.spec.Name,
		"next_due_at", s.NextDue(),
		"max_runs", s.maxRuns,
	)

	for {
		wait := s.NextDue().Sub(s.now())
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped", "runs", s.Stats().Runs)
			return nil
		case <-timer.C:
		}

		s.Tick(ctx, s.now())

		if s.maxRuns > 0 && s.Stats().Runs >= s.maxRuns {
			s.logger.Info("scheduler reached max runs", "runs", s.maxRuns)
			return nil
		}
	}
}
