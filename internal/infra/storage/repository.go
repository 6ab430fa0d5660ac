package storage

import (
	"context"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
)

// SyncStatusRepository handles integration sync status storage.
type SyncStatusRepository interface {
	// Upsert inserts or replaces the status for (store, integration)
	Upsert(ctx context.Context, status *domain.SyncStatus) error

	// UpsertAll upserts a batch atomically
	UpsertAll(ctx context.Context, statuses []*domain.SyncStatus) error

	// Get retrieves the status of one store integration, nil if absent
	Get(
		ctx context.Context,
		storeID string,
		integration domain.Integration,
	) (*domain.SyncStatus, error)

	// ListByStore retrieves statuses of a store, optionally filtered by state
	ListByStore(
		ctx context.Context,
		storeID string,
		states ...domain.SyncState,
	) ([]*domain.SyncStatus, error)

	// MarkStuckAsFailed moves syncs started before olderThan to the error state
	MarkStuckAsFailed(ctx context.Context, olderThan time.Time, message string) (int64, error)

	// CountByState returns the number of statuses in a state
	CountByState(ctx context.Context, state domain.SyncState) (int, error)
}

// FailedOperationRepository handles the dead-letter queue of failed operations
type FailedOperationRepository interface {
	// Add records a failed operation
	Add(ctx context.Context, op *domain.FailedOperation) error

	// GetAll retrieves failed operations, oldest first
	GetAll(ctx context.Context) ([]*domain.FailedOperation, error)

	// Remove deletes a failed operation by correlation id
	Remove(ctx context.Context, correlationID string) error

	// Count returns the number of failed operations
	Count(ctx context.Context) (int, error)
}
