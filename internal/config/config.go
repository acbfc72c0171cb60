package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrMissingToken — GITHUB_PAT_TOKEN не задан.
var ErrMissingToken = errors.New("GITHUB_PAT_TOKEN is not set")

// Config — конфигурация mrot из переменных окружения.
type Config struct {
	// GitHub API
	GitHub GitHubConfig

	// Опрос статуса workflow
	Poll PollConfig

	// Выполнение оркестрации
	StopOnFailure bool `env:"MROT_STOP_ON_FAILURE" envDefault:"true"`
	MaxParallel   int  `env:"MROT_MAX_PARALLEL" envDefault:"1"`

	// Опциональная инфраструктура: пустое значение отключает компонент.
	DatabaseURL string `env:"DB_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	MetricsAddr string `env:"MROT_METRICS_ADDR" envDefault:":9090"`
}

// GitHubConfig — параметры клиента GitHub API.
type GitHubConfig struct {
	Token          string        `env:"GITHUB_PAT_TOKEN"`
	BaseURL        string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	UserAgent      string        `env:"MROT_USER_AGENT" envDefault:"mrot"`
	DefaultRef     string        `env:"MROT_DEFAULT_REF" envDefault:"main"`
	RequestTimeout time.Duration `env:"MROT_REQUEST_TIMEOUT" envDefault:"30s"`

	// Ограничение частоты запросов на стороне клиента.
	RequestsPerSecond float64 `env:"MROT_API_RPS" envDefault:"5"`
	Burst             int     `env:"MROT_API_BURST" envDefault:"5"`
}

// PollConfig — backoff и лимит опросов.
type PollConfig struct {
	BaseInterval time.Duration `env:"MROT_POLL_BASE_INTERVAL" envDefault:"10s"`
	Multiplier   float64       `env:"MROT_POLL_MULTIPLIER" envDefault:"2"`
	MaxInterval  time.Duration `env:"MROT_POLL_MAX_INTERVAL" envDefault:"5m"`
	MaxAttempts  int           `env:"MROT_POLL_MAX_ATTEMPTS" envDefault:"6"`
	ClockSkew    time.Duration `env:"MROT_POLL_CLOCK_SKEW" envDefault:"5s"`
}

// Load читает конфигурацию из переменных окружения и проверяет её.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate проверяет значения конфигурации.
//
// Токен здесь не обязателен: `mrot plan` и `mrot history` работают без него.
// Команды, которые запускают workflow, вызывают RequireToken.
func (c *Config) Validate() error {
	if c.GitHub.BaseURL == "" {
		return fmt.Errorf("GITHUB_API_URL must not be empty")
	}
	if c.GitHub.DefaultRef == "" {
		return fmt.Errorf("MROT_DEFAULT_REF must not be empty")
	}
	if c.GitHub.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", c.GitHub.RequestTimeout)
	}
	if c.GitHub.Burst < 1 {
		return fmt.Errorf("API burst must be at least 1")
	}

	if c.Poll.BaseInterval <= 0 {
		return fmt.Errorf("invalid poll base interval: %s", c.Poll.BaseInterval)
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("poll multiplier must be at least 1, got %v", c.Poll.Multiplier)
	}
	if c.Poll.MaxInterval < c.Poll.BaseInterval {
		return fmt.Errorf("poll max interval %s is less than base interval %s", c.Poll.MaxInterval, c.Poll.BaseInterval)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll max attempts must be at least 1")
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("max parallel must be at least 1")
	}

	return nil
}

// RequireToken возвращает ErrMissingToken, если токен не задан.
func (c *Config) RequireToken() error {
	if c.GitHub.Token == "" {
		return ErrMissingToken
	}
	return nil
}
