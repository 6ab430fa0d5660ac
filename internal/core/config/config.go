package config

import (
	"fmt"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
	"github.com/prepfox/prepfox-ops/internal/core/worker"
	"github.com/prepfox/prepfox-ops/internal/infra/functions"
	"github.com/prepfox/prepfox-ops/internal/infra/notify"
	redisclient "github.com/prepfox/prepfox-ops/internal/infra/redis"
	"github.com/prepfox/prepfox-ops/internal/infra/storage/postgres"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PREPFOX_"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig         `yaml:"server"    envPrefix:"SERVER_"`
	Logging   LoggingConfig        `yaml:"logging"   envPrefix:"LOG_"`
	Database  postgres.Config      `yaml:"database"  envPrefix:"DATABASE_"`
	Redis     redisclient.Config   `yaml:"redis"     envPrefix:"REDIS_"`
	Functions functions.Config     `yaml:"functions" envPrefix:"FUNCTIONS_"`
	NATS      notify.Config        `yaml:"nats"      envPrefix:"NATS_"`
	Retry     RetryConfig          `yaml:"retry"     envPrefix:"RETRY_"`
	Cleanup   worker.CleanerConfig `yaml:"cleanup"   envPrefix:"CLEANUP_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
	// FailedThreshold is the dead-letter size that marks the service degraded.
	FailedThreshold int `yaml:"failed_threshold" env:"FAILED_THRESHOLD"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // json, text
}

// RetryConfig holds the named retry policies.
type RetryConfig struct {
	Default     RetryPolicyConfig `yaml:"default"      envPrefix:"DEFAULT_"`
	SyncRefresh RetryPolicyConfig `yaml:"sync_refresh" envPrefix:"SYNC_REFRESH_"`
	Cleanup     RetryPolicyConfig `yaml:"cleanup"      envPrefix:"CLEANUP_"`
}

// RetryPolicyConfig is the config form of retry.Policy. Zero fields inherit.
type RetryPolicyConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"       env:"MAX_ATTEMPTS"`
	BaseDelay         time.Duration `yaml:"base_delay"         env:"BASE_DELAY"`
	MaxDelay          time.Duration `yaml:"max_delay"          env:"MAX_DELAY"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" env:"BACKOFF_MULTIPLIER"`
	RetryableErrors   []string      `yaml:"retryable_errors"   env:"RETRYABLE_ERRORS" envSeparator:","`
}

func (c RetryPolicyConfig) over(base retry.Policy) retry.Policy {
	p := base
	if c.MaxAttempts != 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay != 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay != 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.BackoffMultiplier != 0 {
		p.BackoffMultiplier = c.BackoffMultiplier
	}
	if len(c.RetryableErrors) > 0 {
		p.RetryableErrors = c.RetryableErrors
	}
	return p
}

// Policies is the validated set of named retry policies.
type Policies struct {
	Default     retry.Policy
	SyncRefresh retry.Policy
	Cleanup     retry.Policy
}

// Policies builds and validates the retry policies. Named policies inherit
// unset fields from default, which inherits from retry.DefaultPolicy.
func (c RetryConfig) Policies() (Policies, error) {
	var (
		ps  Policies
		err error
	)
	if ps.Default, err = retry.NewPolicy(c.Default.over(retry.DefaultPolicy())); err != nil {
		return Policies{}, fmt.Errorf("retry.default: %w", err)
	}
	if ps.SyncRefresh, err = retry.NewPolicy(c.SyncRefresh.over(ps.Default)); err != nil {
		return Policies{}, fmt.Errorf("retry.sync_refresh: %w", err)
	}
	if ps.Cleanup, err = retry.NewPolicy(c.Cleanup.over(ps.Default)); err != nil {
		return Policies{}, fmt.Errorf("retry.cleanup: %w", err)
	}
	return ps, nil
}
