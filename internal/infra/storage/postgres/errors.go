package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

// retryableCodes are SQLSTATE codes worth another attempt.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// classify tags a database error with an explicit retryable flag when its
// nature is known. Unknown errors are wrapped untagged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		retryable := retryableCodes[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
		return retry.NewError(op, err, retryable)
	}

	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return retry.NewError(op, err, true)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.NewError(op, err, true)
	}

	return fmt.Errorf("%s: %w", op, err)
}
