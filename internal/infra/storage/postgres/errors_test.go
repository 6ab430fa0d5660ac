package postgres

import (
	"database/sql/driver"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		tagged    bool
		retryable bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, true, false},
		{"bad conn", driver.ErrBadConn, true, true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true, true},
		{"unknown", errors.New("something odd"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("upsert sync status", tt.err)
			e, ok := retry.AsError(err)
			if ok != tt.tagged {
				t.Fatalf("tagged = %v, want %v (%v)", ok, tt.tagged, err)
			}
			if ok && e.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", e.Retryable, tt.retryable)
			}
			if !errors.Is(err, tt.err) {
				t.Error("Expected original error in chain")
			}
		})
	}

	if classify("noop", nil) != nil {
		t.Error("Expected nil for nil error")
	}
}
