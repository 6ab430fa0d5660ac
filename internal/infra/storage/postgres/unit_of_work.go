package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/metrics"
)

// UnitOfWork bundles writes into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify("begin transaction", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	if err != nil {
		return classify("commit", err)
	}
	return nil
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// UpsertSyncStatuses writes every status in the transaction.
func (u *UnitOfWork) UpsertSyncStatuses(ctx context.Context, statuses []*domain.SyncStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	metrics.DBBatchSize.WithLabelValues("upsert_sync_statuses").Observe(float64(len(statuses)))

	for _, s := range statuses {
		if err := upsertSyncStatus(ctx, u.tx, s); err != nil {
			return err
		}
	}
	return nil
}
