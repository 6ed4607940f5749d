// Package config loads engine configuration from YAML with environment
// overrides. Precedence: defaults → YAML file → environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptcycle/promptcycle/termination"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "PROMPTCYCLE"

// Config is the complete engine configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Limiter LimiterConfig `yaml:"limiter"`
	History HistoryConfig `yaml:"history"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// CycleConfig controls the improvement cycle.
type CycleConfig struct {
	// MaxRounds is the safety round cap.
	MaxRounds int `yaml:"max_rounds"`
	// Concurrency bounds simultaneous case executions per round.
	Concurrency int `yaml:"concurrency"`
	// TargetScore stops the cycle once reached; 0 disables the condition.
	TargetScore float64 `yaml:"target_score"`
	// MaxCost stops the cycle once the accumulated cost reaches it;
	// 0 disables the condition.
	MaxCost float64 `yaml:"max_cost"`
	// StopField stops the cycle once the report field at this path is
	// set; empty disables the condition.
	StopField string `yaml:"stop_field"`
	// RetryAttempts caps validation retries per producer call.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryDelay is the fixed wait between validation attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LimiterConfig controls optional request pacing.
type LimiterConfig struct {
	// RatePerSecond paces calls when positive; 0 disables pacing.
	RatePerSecond float64 `yaml:"rate_per_second"`
	// Burst is the pacing burst size.
	Burst int `yaml:"burst"`
}

// HistoryConfig controls cycle persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cycle: CycleConfig{
			MaxRounds:     10,
			Concurrency:   4,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Limiter: LimiterConfig{
			Burst: 1,
		},
		History: HistoryConfig{
			Path: "promptcycle.db",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v, ok := envInt(EnvPrefix + "_CYCLE_MAX_ROUNDS"); ok {
		c.Cycle.MaxRounds = v
	}
	if v, ok := envInt(EnvPrefix + "_CYCLE_CONCURRENCY"); ok {
		c.Cycle.Concurrency = v
	}
	if v, ok := envFloat(EnvPrefix + "_CYCLE_TARGET_SCORE"); ok {
		c.Cycle.TargetScore = v
	}
	if v, ok := envFloat(EnvPrefix + "_CYCLE_MAX_COST"); ok {
		c.Cycle.MaxCost = v
	}
	if v := os.Getenv(EnvPrefix + "_CYCLE_STOP_FIELD"); v != "" {
		c.Cycle.StopField = v
	}
	if v, ok := envFloat(EnvPrefix + "_LIMITER_RATE_PER_SECOND"); ok {
		c.Limiter.RatePerSecond = v
	}
	if v := os.Getenv(EnvPrefix + "_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Validate fails fast on parameters that would otherwise surface as
// runtime misbehavior.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Cycle.MaxRounds <= 0 {
		return fmt.Errorf("config: cycle.max_rounds must be positive, got %d", c.Cycle.MaxRounds)
	}
	if c.Cycle.Concurrency <= 0 {
		return fmt.Errorf("config: cycle.concurrency must be positive, got %d", c.Cycle.Concurrency)
	}
	if c.Cycle.TargetScore < 0 {
		return fmt.Errorf("config: cycle.target_score must not be negative, got %g", c.Cycle.TargetScore)
	}
	if c.Cycle.MaxCost < 0 {
		return fmt.Errorf("config: cycle.max_cost must not be negative, got %g", c.Cycle.MaxCost)
	}
	if c.Cycle.RetryDelay < 0 {
		return fmt.Errorf("config: cycle.retry_delay must not be negative, got %s", c.Cycle.RetryDelay)
	}
	if c.Limiter.RatePerSecond < 0 {
		return fmt.Errorf("config: limiter.rate_per_second must not be negative, got %g", c.Limiter.RatePerSecond)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("config: history.path is required when history is enabled")
	}
	return nil
}

// Conditions builds the termination condition list declared by the
// configuration. At least one of target_score, max_cost, stop_field, or
// max_rounds must yield a condition.
func (c *Config) Conditions() ([]termination.Condition, error) {
	var conds []termination.Condition
	if c.Cycle.TargetScore > 0 {
		conds = append(conds, termination.TargetScore(c.Cycle.TargetScore))
	}
	if c.Cycle.MaxCost > 0 {
		conds = append(conds, termination.MaxCost(c.Cycle.MaxCost))
	}
	if c.Cycle.StopField != "" {
		conds = append(conds, termination.FieldSet(c.Cycle.StopField))
	}
	if c.Cycle.MaxRounds > 0 {
		conds = append(conds, termination.MaxRounds(c.Cycle.MaxRounds))
	}
	if len(conds) == 0 {
		return nil, termination.ErrNoConditions
	}
	return conds, nil
}
