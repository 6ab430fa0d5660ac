// Package syncstatus refreshes integration sync states from the backend
// functions and persists them.
package syncstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/deadletter"
	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
	"github.com/prepfox/prepfox-ops/internal/infra/functions"
	"github.com/prepfox/prepfox-ops/internal/infra/storage"
	"github.com/prepfox/prepfox-ops/internal/metrics"
)

// FunctionGetSyncStatus is the backend function reporting a store's syncs.
const FunctionGetSyncStatus = "get-sync-status"

const (
	opRefresh = "refresh-sync-status"
	opSave    = "save-sync-status"
)

// ErrMissingStore is returned when Refresh is called without a store id.
var ErrMissingStore = errors.New("store id is required")

type remoteStatus struct {
	Integration string    `json:"integration"`
	State       string    `json:"state"`
	Error       string    `json:"error"`
	StartedAt   time.Time `json:"started_at"`
}

type statusReply struct {
	Statuses []remoteStatus `json:"statuses"`
}

// Refresher pulls sync statuses for a store through the retry executor.
type Refresher struct {
	invoker  functions.Invoker
	repo     storage.SyncStatusRepository
	failures *deadletter.Recorder
	policy   retry.Policy
	log      *slog.Logger
	opts     []retry.Option
}

// NewRefresher creates a Refresher. opts are passed to every retry.Do call.
func NewRefresher(
	invoker functions.Invoker,
	repo storage.SyncStatusRepository,
	failures *deadletter.Recorder,
	policy retry.Policy,
	log *slog.Logger,
	opts ...retry.Option,
) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		invoker:  invoker,
		repo:     repo,
		failures: failures,
		policy:   policy,
		log:      log,
		opts:     opts,
	}
}

// Refresh fetches the current sync statuses of a store, stores them and
// returns them. Terminal failures are recorded and returned as *retry.Error.
func (r *Refresher) Refresh(ctx context.Context, storeID, userID string) ([]*domain.SyncStatus, error) {
	if storeID == "" {
		return nil, ErrMissingStore
	}

	octx := retry.NewOperationContext(opRefresh, "syncstatus",
		retry.WithUserID(userID),
		retry.WithMetadata("store_id", storeID),
	)
	r.log.Debug("Refreshing sync status", octx.LogAttrs()...)

	reply, err := r.fetch(ctx, octx, storeID)
	if err != nil {
		r.failures.Record(ctx, err)
		return nil, err
	}

	statuses := r.toDomain(storeID, reply)

	saveCtx := retry.NewOperationContext(opSave, "syncstatus",
		retry.WithCorrelationID(octx.CorrelationID()),
		retry.WithUserID(userID),
		retry.WithMetadata("store_id", storeID),
	)
	if err := r.save(ctx, saveCtx, statuses); err != nil {
		r.failures.Record(ctx, err)
		return nil, err
	}

	r.log.Info("Sync status refreshed",
		"correlation_id", octx.CorrelationID(),
		"store_id", storeID,
		"count", len(statuses),
	)
	return statuses, nil
}

func (r *Refresher) fetch(ctx context.Context, octx *retry.OperationContext, storeID string) (statusReply, error) {
	observe, done := metrics.Observe(opRefresh)
	opts := append([]retry.Option{observe, r.logRetries()}, r.opts...)

	reply, err := retry.Do(ctx, func(ctx context.Context) (statusReply, error) {
		metrics.OperationAttempts.WithLabelValues(opRefresh).Inc()
		var reply statusReply
		err := r.invoker.Invoke(ctx, FunctionGetSyncStatus, map[string]string{"store_id": storeID}, &reply)
		return reply, err
	}, r.policy, octx, opts...)
	done(err)
	return reply, err
}

func (r *Refresher) save(ctx context.Context, octx *retry.OperationContext, statuses []*domain.SyncStatus) error {
	observe, done := metrics.Observe(opSave)
	opts := append([]retry.Option{observe, r.logRetries()}, r.opts...)

	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		metrics.OperationAttempts.WithLabelValues(opSave).Inc()
		return struct{}{}, r.repo.UpsertAll(ctx, statuses)
	}, r.policy, octx, opts...)
	done(err)
	return err
}

func (r *Refresher) toDomain(storeID string, reply statusReply) []*domain.SyncStatus {
	now := time.Now().UTC()
	statuses := make([]*domain.SyncStatus, 0, len(reply.Statuses))
	for _, rs := range reply.Statuses {
		integration := domain.Integration(rs.Integration)
		if !integration.Valid() {
			r.log.Warn("Skipping unknown integration", "store_id", storeID, "integration", rs.Integration)
			continue
		}
		state := domain.SyncState(rs.State)
		errMsg := rs.Error
		switch {
		case state == "":
			state = domain.SyncStateIdle
		case !state.Valid():
			r.log.Warn("Unknown sync state", "store_id", storeID, "integration", rs.Integration, "state", rs.State)
			if errMsg == "" {
				errMsg = fmt.Sprintf("unknown sync state %q", rs.State)
			}
			state = domain.SyncStateError
		}
		// StartedAt stays zero when omitted so the store keeps the running start time.
		statuses = append(statuses, &domain.SyncStatus{
			StoreID:     storeID,
			Integration: integration,
			State:       state,
			Error:       errMsg,
			StartedAt:   rs.StartedAt,
			UpdatedAt:   now,
		})
	}
	return statuses
}

func (r *Refresher) logRetries() retry.Option {
	return retry.OnRetry(func(e retry.Event) {
		attrs := append(e.Context.LogAttrs(), "attempt", e.Attempt, "delay", e.Delay, "error", e.Err)
		r.log.Warn("Retrying operation", attrs...)
	})
}
