package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minSessionSecretLen = 32

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	AppURL        string `env:"APP_URL" default:"http://localhost:8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	// How long a protected request may wait for a client's first auth
	// notification before the placeholder page is rendered instead.
	AuthResolveWait time.Duration `env:"AUTH_RESOLVE_WAIT" default:"1500ms"`
	ClientIdleTTL   time.Duration `env:"CLIENT_IDLE_TTL" default:"30m"`

	MaxImageBytes  int64   `env:"MAX_IMAGE_BYTES" default:"5242880"`
	AuthRateLimit  float64 `env:"AUTH_RATE_LIMIT" default:"1"`
	AuthRateBurst  int     `env:"AUTH_RATE_BURST" default:"5"`
	ListingsOnHome int     `env:"LISTINGS_ON_HOME" default:"24"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"SESSION_SECRET", cfg.SessionSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}
	if cfg.AuthResolveWait < 0 {
		return errors.New("AUTH_RESOLVE_WAIT must not be negative")
	}
	if cfg.ClientIdleTTL < time.Minute {
		return errors.New("CLIENT_IDLE_TTL must be at least 1m")
	}
	if cfg.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if cfg.AuthRateLimit <= 0 || cfg.AuthRateBurst < 1 {
		return errors.New("AUTH_RATE_LIMIT must be positive and AUTH_RATE_BURST at least 1")
	}
	if cfg.ListingsOnHome < 1 {
		return errors.New("LISTINGS_ON_HOME must be at least 1")
	}

	return nil
}
