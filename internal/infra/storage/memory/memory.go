package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepfox/prepfox-ops/internal/core/domain"
)

type MemoryStorage struct {
	statuses map[string]*domain.SyncStatus
	failed   map[string]*domain.FailedOperation
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		statuses: make(map[string]*domain.SyncStatus),
		failed:   make(map[string]*domain.FailedOperation),
	}
}

// -----------------------------------------------------------------------------
// Sync Status Repository
// -----------------------------------------------------------------------------

type SyncStatusRepo struct {
	store *MemoryStorage
}

func NewSyncStatusRepo(store *MemoryStorage) *SyncStatusRepo {
	return &SyncStatusRepo{store: store}
}

func statusKey(storeID string, integration domain.Integration) string {
	return storeID + "/" + string(integration)
}

// Upsert keeps the stored StartedAt when the state is unchanged and the
// incoming StartedAt is zero.
func (r *SyncStatusRepo) Upsert(ctx context.Context, status *domain.SyncStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s := *status
	key := statusKey(s.StoreID, s.Integration)
	existing, ok := r.store.statuses[key]
	if ok {
		s.ID = existing.ID
	} else if s.ID == "" {
		s.ID = uuid.NewString()
	}
	switch {
	case ok && s.StartedAt.IsZero() && existing.State == s.State:
		s.StartedAt = existing.StartedAt
	case s.StartedAt.IsZero():
		s.StartedAt = time.Now().UTC()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	r.store.statuses[key] = &s
	status.ID = s.ID
	status.StartedAt = s.StartedAt
	return nil
}

func (r *SyncStatusRepo) UpsertAll(ctx context.Context, statuses []*domain.SyncStatus) error {
	for _, s := range statuses {
		if err := r.Upsert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *SyncStatusRepo) Get(
	ctx context.Context,
	storeID string,
	integration domain.Integration,
) (*domain.SyncStatus, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.statuses[statusKey(storeID, integration)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *SyncStatusRepo) ListByStore(
	ctx context.Context,
	storeID string,
	states ...domain.SyncState,
) ([]*domain.SyncStatus, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*domain.SyncStatus
	for _, s := range r.store.statuses {
		if s.StoreID != storeID {
			continue
		}
		if len(states) > 0 && !slices.Contains(states, s.State) {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *domain.SyncStatus) int {
		if a.Integration < b.Integration {
			return -1
		}
		if a.Integration > b.Integration {
			return 1
		}
		return 0
	})
	return result, nil
}

func (r *SyncStatusRepo) MarkStuckAsFailed(
	ctx context.Context,
	olderThan time.Time,
	message string,
) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, s := range r.store.statuses {
		if s.IsStuck(olderThan) {
			s.State = domain.SyncStateError
			s.Error = message
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *SyncStatusRepo) CountByState(ctx context.Context, state domain.SyncState) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, s := range r.store.statuses {
		if s.State == state {
			count++
		}
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Failed Operation Repository
// -----------------------------------------------------------------------------

type FailedOperationRepo struct {
	store *MemoryStorage
}

func NewFailedOperationRepo(store *MemoryStorage) *FailedOperationRepo {
	return &FailedOperationRepo{store: store}
}

func (r *FailedOperationRepo) Add(ctx context.Context, op *domain.FailedOperation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *op
	r.store.failed[op.CorrelationID] = &cp
	return nil
}

func (r *FailedOperationRepo) GetAll(ctx context.Context) ([]*domain.FailedOperation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*domain.FailedOperation, 0, len(r.store.failed))
	for _, op := range r.store.failed {
		cp := *op
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *domain.FailedOperation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (r *FailedOperationRepo) Remove(ctx context.Context, correlationID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.failed, correlationID)
	return nil
}

func (r *FailedOperationRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.failed), nil
}
