package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	Host                   string `env:"HOST" envDefault:""`
	Port                   int    `env:"PORT" envDefault:"5001"`
	DatabasePath           string `env:"DATABASE_PATH" envDefault:"macromaster_realtime.db"`
	RedisURL               string `env:"REDIS_URL"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile                string `env:"LOG_FILE"`
	LogMaxSizeMB           int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups          int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays          int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
	CleanupIntervalMinutes int    `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"60"`
	CleanupDaysToKeep      int    `env:"CLEANUP_DAYS_TO_KEEP" envDefault:"7"`
	IngestRateLimitPerMin  int    `env:"INGEST_RATE_LIMIT_PER_MIN" envDefault:"0"`
	MetricsWindowHours     int    `env:"METRICS_WINDOW_HOURS" envDefault:"24"`
	SystemLogRetention     int    `env:"SYSTEM_LOG_RETENTION" envDefault:"1000"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c *Config) MetricsWindow() time.Duration {
	return time.Duration(c.MetricsWindowHours) * time.Hour
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive")
	}
	if c.CleanupDaysToKeep <= 0 {
		return fmt.Errorf("CLEANUP_DAYS_TO_KEEP must be positive")
	}
	if c.MetricsWindowHours <= 0 {
		return fmt.Errorf("METRICS_WINDOW_HOURS must be positive")
	}
	if c.SystemLogRetention <= 0 {
		return fmt.Errorf("SYSTEM_LOG_RETENTION must be positive")
	}
	if c.IngestRateLimitPerMin < 0 {
		return fmt.Errorf("INGEST_RATE_LIMIT_PER_MIN must not be negative")
	}

	known := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			known = true
			break
		}
	}
	if !known {
		log.Warn().Str("level", c.LogLevel).Msg("unknown LOG_LEVEL, falling back to info")
	}

	if c.IngestRateLimitPerMin > 0 && c.RedisURL == "" {
		log.Warn().Msg("INGEST_RATE_LIMIT_PER_MIN is set without REDIS_URL: limits are tracked per process")
	}

	return nil
}

// Load reads an optional .env file from the working directory and then parses
// the process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
