package cli

import (
	"context"
	"log/slog"

	"github.com/shaiso/mrot/internal/config"
	"github.com/shaiso/mrot/internal/driver"
	"github.com/shaiso/mrot/internal/github"
	"github.com/shaiso/mrot/internal/mq"
	"github.com/shaiso/mrot/internal/orchestrator"
	"github.com/shaiso/mrot/internal/repo"
)

// App — зависимости команд, собранные после парсинга флагов.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Pipeline — удалённый CI. Если nil, создаётся GitHub клиент из Config.
	Pipeline driver.Pipeline
}

// NewApp загружает конфигурацию из окружения.
func NewApp(logger *slog.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &App{Config: cfg, Logger: logger}, nil
}

// pipeline возвращает клиент удалённого CI.
func (a *App) pipeline() (driver.Pipeline, error) {
	if a.Pipeline != nil {
		return a.Pipeline, nil
	}

	if err := a.Config.RequireToken(); err != nil {
		return nil, err
	}

	gh := a.Config.GitHub
	return github.NewClient(github.Config{
		BaseURL:           gh.BaseURL,
		Token:             gh.Token,
		UserAgent:         gh.UserAgent,
		Timeout:           gh.RequestTimeout,
		RequestsPerSecond: gh.RequestsPerSecond,
		Burst:             gh.Burst,
		Logger:            a.Logger,
	}), nil
}

// NewDriver создаёт драйвер шагов.
func (a *App) NewDriver() (*driver.Driver, error) {
	pipeline, err := a.pipeline()
	if err != nil {
		return nil, err
	}

	poll := a.Config.Poll
	return driver.New(driver.Config{
		Pipeline:    pipeline,
		DefaultRef:  a.Config.GitHub.DefaultRef,
		MaxAttempts: poll.MaxAttempts,
		Backoff:     driver.ExponentialBackoff(poll.BaseInterval, poll.Multiplier, poll.MaxInterval),
		ClockSkew:   poll.ClockSkew,
		Logger:      a.Logger,
	})
}

// NewRunner создаёт Runner со всеми настроенными компонентами.
//
// История (DB_URL) и события (RABBITMQ_URL) опциональны: если компонент
// настроен, но недоступен, оркестрация выполняется без него.
// Возвращаемая функция закрывает соединения.
func (a *App) NewRunner(ctx context.Context) (*orchestrator.Runner, func(), error) {
	drv, err := a.NewDriver()
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cfg := orchestrator.Config{
		Executor:          drv,
		ContinueOnFailure: !a.Config.StopOnFailure,
		MaxParallel:       a.Config.MaxParallel,
		Logger:            a.Logger,
	}

	if a.Config.DatabaseURL != "" {
		store, closeStore, err := a.OpenReportRepo(ctx)
		if err != nil {
			a.Logger.Warn("report history disabled", "error", err)
		} else {
			cfg.Store = store
			closers = append(closers, closeStore)
		}
	}

	if a.Config.RabbitMQURL != "" {
		conn, err := a.OpenBroker(ctx)
		if err != nil {
			a.Logger.Warn("event publishing disabled", "error", err)
		} else {
			cfg.Notifier = mq.NewNotifier(mq.NewPublisher(conn, a.Logger))
			closers = append(closers, func() { _ = conn.Close() })
		}
	}

	runner, err := orchestrator.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return runner, cleanup, nil
}

// OpenReportRepo подключается к Postgres и создаёт схему истории.
func (a *App) OpenReportRepo(ctx context.Context) (*repo.ReportRepo, func(), error) {
	pool, err := repo.NewPool(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	reports := repo.NewReportRepo(pool)
	if err := reports.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return reports, pool.Close, nil
}

// OpenBroker подключается к RabbitMQ и объявляет топологию событий.
func (a *App) OpenBroker(ctx context.Context) (*mq.Connection, error) {
	conn, err := mq.NewConnection(a.Config.RabbitMQURL, a.Logger)
	if err != nil {
		return nil, err
	}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}
