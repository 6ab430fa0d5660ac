package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
)

// SyncStatusRepo implements storage.SyncStatusRepository using PostgreSQL.
type SyncStatusRepo struct {
	db *DB
}

// NewSyncStatusRepo creates a new PostgreSQL sync status repository.
func NewSyncStatusRepo(db *DB) *SyncStatusRepo {
	return &SyncStatusRepo{db: db}
}

const syncStatusColumns = `id, store_id, integration, state, error_msg, started_at, updated_at`

// A zero started_at keeps the stored value while the state is unchanged,
// so a long running sync still ages toward the stuck cutoff.
const upsertSyncStatusQuery = `
	INSERT INTO sync_statuses (store_id, integration, state, error_msg, started_at, updated_at)
	VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, NOW()), NOW())
	ON CONFLICT (store_id, integration) DO UPDATE
	SET state = EXCLUDED.state,
	    error_msg = EXCLUDED.error_msg,
	    started_at = CASE
	        WHEN $5::timestamptz IS NULL AND sync_statuses.state = EXCLUDED.state
	        THEN sync_statuses.started_at
	        ELSE EXCLUDED.started_at
	    END,
	    updated_at = NOW()
	RETURNING id, started_at
`

func upsertSyncStatus(ctx context.Context, q sqlx.QueryerContext, status *domain.SyncStatus) error {
	var startedAt sql.NullTime
	if !status.StartedAt.IsZero() {
		startedAt = sql.NullTime{Time: status.StartedAt, Valid: true}
	}

	var row struct {
		ID        string    `db:"id"`
		StartedAt time.Time `db:"started_at"`
	}
	err := sqlx.GetContext(
		ctx,
		q,
		&row,
		upsertSyncStatusQuery,
		status.StoreID,
		string(status.Integration),
		string(status.State),
		status.Error,
		startedAt,
	)
	if err != nil {
		return classify("upsert sync status", err)
	}
	status.ID = row.ID
	status.StartedAt = row.StartedAt
	return nil
}

// Upsert inserts or replaces the status of a store integration.
func (r *SyncStatusRepo) Upsert(ctx context.Context, status *domain.SyncStatus) error {
	return upsertSyncStatus(ctx, r.db, status)
}

// UpsertAll writes all statuses in one transaction.
func (r *SyncStatusRepo) UpsertAll(ctx context.Context, statuses []*domain.SyncStatus) error {
	uow, err := r.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = uow.Rollback() }()

	if err := uow.UpsertSyncStatuses(ctx, statuses); err != nil {
		return err
	}
	return uow.Commit()
}

// Get returns the status of one store integration.
func (r *SyncStatusRepo) Get(
	ctx context.Context,
	storeID string,
	integration domain.Integration,
) (*domain.SyncStatus, error) {
	query := `SELECT ` + syncStatusColumns + `
		FROM sync_statuses
		WHERE store_id = $1 AND integration = $2
	`
	var status domain.SyncStatus
	err := r.db.GetContext(ctx, &status, query, storeID, string(integration))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get sync status", err)
	}
	return &status, nil
}

// ListByStore returns the statuses of a store, optionally filtered by state.
func (r *SyncStatusRepo) ListByStore(
	ctx context.Context,
	storeID string,
	states ...domain.SyncState,
) ([]*domain.SyncStatus, error) {
	var (
		rows []*domain.SyncStatus
		err  error
	)
	if len(states) == 0 {
		query := `SELECT ` + syncStatusColumns + `
			FROM sync_statuses
			WHERE store_id = $1
			ORDER BY integration
		`
		err = r.db.SelectContext(ctx, &rows, query, storeID)
	} else {
		filter := make([]string, len(states))
		for i, s := range states {
			filter[i] = string(s)
		}
		query := `SELECT ` + syncStatusColumns + `
			FROM sync_statuses
			WHERE store_id = $1 AND state = ANY($2)
			ORDER BY integration
		`
		err = r.db.SelectContext(ctx, &rows, query, storeID, filter)
	}
	if err != nil {
		return nil, classify("list sync statuses", err)
	}
	return rows, nil
}

// MarkStuckAsFailed moves syncs that have been running since before
// olderThan to the error state.
func (r *SyncStatusRepo) MarkStuckAsFailed(
	ctx context.Context,
	olderThan time.Time,
	message string,
) (int64, error) {
	query := `
		UPDATE sync_statuses
		SET state = 'error', error_msg = $2, updated_at = NOW()
		WHERE state = 'syncing' AND started_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, olderThan, message)
	if err != nil {
		return 0, classify("mark stuck syncs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("mark stuck syncs", err)
	}
	return n, nil
}

// CountByState returns the number of statuses in a state.
func (r *SyncStatusRepo) CountByState(ctx context.Context, state domain.SyncState) (int, error) {
	query := `SELECT COUNT(*) FROM sync_statuses WHERE state = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, string(state)); err != nil {
		return 0, classify("count sync statuses", err)
	}
	return count, nil
}
