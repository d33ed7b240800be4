// Package config holds the environment-driven runtime configuration and the
// domain constants shared by the bot, the admin CLI and the HTTP API.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverJSONDB   = "jsondb"
	DriverPostgres = "postgres"
)

// Config is the process configuration.
type Config struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"jsondb"`
	DBPath        string `env:"DB_PATH"        envDefault:"./data/db.json"`
	DatabaseURL   string `env:"DATABASE_URL"   envDefault:"host=localhost user=user password=password dbname=santadb port=5432 sslmode=disable"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"0s"`
	LockTTL    time.Duration `env:"LOCK_TTL"    envDefault:"10s"`

	HTTPAddr       string `env:"HTTP_ADDR"        envDefault:":8080"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	// AdminAPIURL is where the admin CLI sends event changes.
	AdminAPIURL string `env:"ADMIN_API_URL" envDefault:"http://localhost:8080"`

	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"uk"`
	LogLevel        string `env:"LOG_LEVEL"        envDefault:"info"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverJSONDB:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the %s driver", DriverJSONDB)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	return nil
}
