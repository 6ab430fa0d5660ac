// Package deadletter records operations that failed terminally and tells the
// affected user about them.
package deadletter

import (
	"context"
	"log/slog"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
	"github.com/prepfox/prepfox-ops/internal/infra/notify"
	"github.com/prepfox/prepfox-ops/internal/infra/storage"
	"github.com/prepfox/prepfox-ops/internal/metrics"
)

// Recorder logs terminal failures, queues them and notifies users.
type Recorder struct {
	repo     storage.FailedOperationRepository
	notifier notify.Notifier
	log      *slog.Logger
}

// NewRecorder creates a Recorder. notifier may be nil.
func NewRecorder(
	repo storage.FailedOperationRepository,
	notifier notify.Notifier,
	log *slog.Logger,
) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{repo: repo, notifier: notifier, log: log}
}

// Record handles a failure returned by retry.Do. Cancelled operations are only
// logged: they end because the service is stopping, not because they failed.
func (r *Recorder) Record(ctx context.Context, err error) *domain.FailedOperation {
	if err == nil {
		return nil
	}
	e, ok := retry.AsError(err)
	if !ok {
		e = &retry.Error{Message: err.Error(), Cause: err, Kind: retry.KindNonRetryable, Attempts: 1}
	}

	attrs := append(e.Context.LogAttrs(),
		"kind", e.Kind.String(),
		"attempts", e.Attempts,
		"error", err,
	)
	if e.Kind == retry.KindCancelled {
		r.log.Warn("Operation cancelled", attrs...)
		return nil
	}
	r.log.Error("Operation failed", attrs...)

	fo := domain.NewFailedOperation(e)
	if err := r.repo.Add(ctx, fo); err != nil {
		r.log.Warn("Failed to queue failed operation", "correlation_id", fo.CorrelationID, "error", err)
	} else if count, err := r.repo.Count(ctx); err == nil {
		metrics.FailedOperations.Set(float64(count))
	}

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, fo, retry.UserMessage(e)); err != nil {
			r.log.Warn("Failed to notify user", "correlation_id", fo.CorrelationID, "error", err)
		}
	}
	return fo
}
