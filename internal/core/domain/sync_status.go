package domain

import "time"

// SyncStatus is the last known synchronization state of one store integration.
type SyncStatus struct {
	ID          string      `json:"id"           db:"id"`
	StoreID     string      `json:"store_id"     db:"store_id"`
	Integration Integration `json:"integration"  db:"integration"`
	State       SyncState   `json:"state"        db:"state"`
	Error       string      `json:"error"        db:"error_msg"`
	StartedAt   time.Time   `json:"started_at"   db:"started_at"`
	UpdatedAt   time.Time   `json:"updated_at"   db:"updated_at"`
}

type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
	SyncStateSuccess SyncState = "success"
	SyncStateError   SyncState = "error"
)

// Valid reports whether s is a known state.
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateIdle, SyncStateSyncing, SyncStateSuccess, SyncStateError:
		return true
	}
	return false
}

// IsStuck reports whether a sync has been running since before cutoff.
func (s *SyncStatus) IsStuck(cutoff time.Time) bool {
	return s.State == SyncStateSyncing && s.StartedAt.Before(cutoff)
}
