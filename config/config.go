// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Ledger    LedgerConfig
	Refresher RefresherConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StoreConfig holds database options.
type StoreConfig struct {
	DBPath string
}

// LedgerConfig tunes the transaction processor and aggregates.
type LedgerConfig struct {
	TopWasted   int // ranking size for top wasted ingredients
	MaxAttempts int // optimistic retry budget
}

// RefresherConfig holds the low-stock sweep schedule.
type RefresherConfig struct {
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file)
// and materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from
		// the environment directly.
		_ = godotenv.Load()
	}

	topWasted, err := getenvInt("LEDGER_TOP_WASTED", 5)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := getenvInt("LEDGER_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Store: StoreConfig{
			DBPath: getenvWithDefault("DB_PATH", "pantry.db"),
		},
		Ledger: LedgerConfig{
			TopWasted:   topWasted,
			MaxAttempts: maxAttempts,
		},
		Refresher: RefresherConfig{
			CronSchedule: getenvWithDefault("SWEEP_CRON_SCHEDULE", "*/15 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Store.DBPath == "" {
		return errors.New("DB_PATH must be provided")
	}
	if c.Ledger.TopWasted <= 0 {
		return errors.New("LEDGER_TOP_WASTED must be positive")
	}
	if c.Ledger.MaxAttempts <= 0 {
		return errors.New("LEDGER_MAX_ATTEMPTS must be positive")
	}
	if c.Refresher.CronSchedule == "" {
		return errors.New("SWEEP_CRON_SCHEDULE must be provided")
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
