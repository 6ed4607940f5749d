package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcycle/promptcycle/termination"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Cycle.MaxRounds)
	assert.Equal(t, 4, cfg.Cycle.Concurrency)
	assert.Equal(t, 3, cfg.Cycle.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Cycle.RetryDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: console
cycle:
  max_rounds: 5
  target_score: 8.5
  retry_delay: 250ms
limiter:
  rate_per_second: 2
history:
  enabled: true
  path: /tmp/cycles.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Cycle.MaxRounds)
	assert.Equal(t, 8.5, cfg.Cycle.TargetScore)
	assert.Equal(t, 250*time.Millisecond, cfg.Cycle.RetryDelay)
	assert.Equal(t, 2.0, cfg.Limiter.RatePerSecond)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/cycles.db", cfg.History.Path)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Cycle.Concurrency)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cycle:\n  max_rounds: 5\n"), 0o600))

	t.Setenv("PROMPTCYCLE_CYCLE_MAX_ROUNDS", "7")
	t.Setenv("PROMPTCYCLE_LOG_LEVEL", "warn")
	t.Setenv("PROMPTCYCLE_CYCLE_TARGET_SCORE", "9.5")
	t.Setenv("PROMPTCYCLE_CYCLE_STOP_FIELD", "review.verdict")
	t.Setenv("PROMPTCYCLE_HISTORY_PATH", "override.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cycle.MaxRounds)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 9.5, cfg.Cycle.TargetScore)
	assert.Equal(t, "review.verdict", cfg.Cycle.StopField)
	assert.Equal(t, "override.db", cfg.History.Path)
}

func TestLoad_UnparsableEnvIgnored(t *testing.T) {
	t.Setenv("PROMPTCYCLE_CYCLE_MAX_ROUNDS", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Cycle.MaxRounds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero max rounds", func(c *Config) { c.Cycle.MaxRounds = 0 }},
		{"zero concurrency", func(c *Config) { c.Cycle.Concurrency = 0 }},
		{"negative target score", func(c *Config) { c.Cycle.TargetScore = -1 }},
		{"negative max cost", func(c *Config) { c.Cycle.MaxCost = -0.5 }},
		{"negative retry delay", func(c *Config) { c.Cycle.RetryDelay = -time.Second }},
		{"negative rate", func(c *Config) { c.Limiter.RatePerSecond = -1 }},
		{"history enabled without path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConditions(t *testing.T) {
	cfg := Default()
	cfg.Cycle.TargetScore = 8
	cfg.Cycle.MaxCost = 2.5
	cfg.Cycle.StopField = "review.done"

	conds, err := cfg.Conditions()
	require.NoError(t, err)
	require.Len(t, conds, 4)
	assert.Equal(t, "targetScore(8)", conds[0].String())
	assert.Equal(t, "maxCost(2.5)", conds[1].String())
	assert.Equal(t, "fieldSet(review.done)", conds[2].String())
	assert.Equal(t, "maxRounds(10)", conds[3].String())
}

func TestConditions_Empty(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.Conditions()
	assert.ErrorIs(t, err, termination.ErrNoConditions)
}
