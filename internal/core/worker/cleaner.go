package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/deadletter"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
	"github.com/prepfox/prepfox-ops/internal/infra/storage"
	"github.com/prepfox/prepfox-ops/internal/metrics"
)

const opCleanup = "cleanup-sync-status"

// CleanerConfig controls stuck sync reconciliation.
type CleanerConfig struct {
	Interval   time.Duration `yaml:"interval"    env:"INTERVAL"`
	StuckAfter time.Duration `yaml:"stuck_after" env:"STUCK_AFTER"`
	Message    string        `yaml:"message"     env:"MESSAGE"`
}

// Cleaner marks syncs that have been running for too long as failed.
type Cleaner struct {
	cfg      CleanerConfig
	repo     storage.SyncStatusRepository
	failures *deadletter.Recorder
	policy   retry.Policy
	log      *slog.Logger
	now      func() time.Time
	opts     []retry.Option
}

// NewCleaner creates a new Cleaner worker.
func NewCleaner(
	cfg CleanerConfig,
	repo storage.SyncStatusRepository,
	failures *deadletter.Recorder,
	policy retry.Policy,
	log *slog.Logger,
	opts ...retry.Option,
) *Cleaner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 30 * time.Minute
	}
	if cfg.Message == "" {
		cfg.Message = "sync timed out"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cleaner{
		cfg:      cfg,
		repo:     repo,
		failures: failures,
		policy:   policy,
		log:      log,
		now:      time.Now,
		opts:     opts,
	}
}

// Start runs the cleaner loop until ctx is done.
func (c *Cleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// Initial pass
	_, _ = c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles stuck syncs once and returns how many were updated.
func (c *Cleaner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.cfg.StuckAfter)
	octx := retry.NewOperationContext(opCleanup, "worker",
		retry.WithMetadata("cutoff", cutoff.UTC().Format(time.RFC3339)),
	)

	observe, done := metrics.Observe(opCleanup)
	onRetry := retry.OnRetry(func(e retry.Event) {
		attrs := append(e.Context.LogAttrs(), "attempt", e.Attempt, "delay", e.Delay, "error", e.Err)
		c.log.Warn("Retrying stuck sync cleanup", attrs...)
	})
	opts := append([]retry.Option{observe, onRetry}, c.opts...)

	n, err := retry.Do(ctx, func(ctx context.Context) (int64, error) {
		metrics.OperationAttempts.WithLabelValues(opCleanup).Inc()
		return c.repo.MarkStuckAsFailed(ctx, cutoff, c.cfg.Message)
	}, c.policy, octx, opts...)
	done(err)

	if err != nil {
		c.failures.Record(ctx, err)
		return 0, err
	}

	if n > 0 {
		metrics.StuckSyncsReconciled.Add(float64(n))
		c.log.Info("Marked stuck syncs as failed", "correlation_id", octx.CorrelationID(), "count", n, "cutoff", cutoff)
	} else {
		c.log.Debug("No stuck syncs", "correlation_id", octx.CorrelationID())
	}
	return n, nil
}
