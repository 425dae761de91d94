package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "pantry.db", cfg.Store.DBPath)
	assert.Equal(t, 5, cfg.Ledger.TopWasted)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
	assert.Equal(t, "*/15 * * * *", cfg.Refresher.CronSchedule)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("LEDGER_TOP_WASTED", "10")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "3")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Store.DBPath)
	assert.Equal(t, 10, cfg.Ledger.TopWasted)
	assert.Equal(t, 3, cfg.Ledger.MaxAttempts)
}

func TestLoad_RejectsNonIntegerBudget(t *testing.T) {
	t.Setenv("LEDGER_MAX_ATTEMPTS", "lots")

	_, err := Load("does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_MAX_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }, "APP_PORT"},
		{"missing db path", func(c *Config) { c.Store.DBPath = "" }, "DB_PATH"},
		{"zero top wasted", func(c *Config) { c.Ledger.TopWasted = 0 }, "LEDGER_TOP_WASTED"},
		{"zero attempts", func(c *Config) { c.Ledger.MaxAttempts = 0 }, "LEDGER_MAX_ATTEMPTS"},
		{"missing schedule", func(c *Config) { c.Refresher.CronSchedule = "" }, "SWEEP_CRON_SCHEDULE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Server:    ServerConfig{Port: "8080"},
				Store:     StoreConfig{DBPath: "pantry.db"},
				Ledger:    LedgerConfig{TopWasted: 5, MaxAttempts: 5},
				Refresher: RefresherConfig{CronSchedule: "*/15 * * * *"},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
