package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	// Feed updating
	UpdateCron       string        `env:"CRON" envDefault:"0 * * * *"`
	DigestCron       string        `env:"CRON_DIGEST" envDefault:"0 0 * * *"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"4"`

	// Summarization
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	AIEnabled     bool   `env:"AI_ENABLED" envDefault:"true"`
	DefaultModel  string `env:"DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	RateLimitRPS  int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
