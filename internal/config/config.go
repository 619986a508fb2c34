package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const envDev = "dev"

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`
	DBPath        string `env:"DB_PATH" envDefault:"./dev.db"`
	Port          string `env:"PORT" envDefault:"8080"`
	Env           string `env:"APP_ENV" envDefault:"dev"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// RulesPath points at a YAML rule set; empty uses the built-in one.
	RulesPath   string `env:"RULES_PATH"`
	CatalogPath string `env:"CATALOG_PATH"`

	RedisAddr   string `env:"REDIS_ADDR"`
	ImageAPIKey string `env:"IMAGE_API_KEY"`
	ImageAPIURL string `env:"IMAGE_API_URL"`
	ImageModel  string `env:"IMAGE_MODEL"`

	// ImageTimeout bounds each background scene image request.
	ImageTimeout time.Duration `env:"IMAGE_TIMEOUT" envDefault:"5s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads environment variables and returns a populated Config.
func Load() (Config, error) {
	// Local .env is optional; deployed instances get real environment variables.
	applied, err := loadDotEnv(".env")
	if err != nil {
		slog.Warn("dotenv not applied", "error", err)
	} else if len(applied) > 0 {
		slog.Debug("dotenv applied", "keys", len(applied))
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.AdminEmail == "" {
		slog.Warn("ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		slog.Warn("ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		slog.Warn("SESSION_SECRET is not set")
	}

	return cfg, nil
}

// IsDev reports whether the process runs in the development environment.
func (c Config) IsDev() bool {
	return c.Env == envDev
}

// ImagesEnabled reports whether scene images can be requested.
func (c Config) ImagesEnabled() bool {
	return c.ImageAPIKey != ""
}
