package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

var (
	// OperationAttempts tracks invocations of retried operations
	OperationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepfox_operation_attempts_total",
			Help: "Total number of operation attempts, including retries",
		},
		[]string{"operation"},
	)

	// OperationRetries tracks scheduled retries
	OperationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepfox_operation_retries_total",
			Help: "Total number of retries scheduled after a transient failure",
		},
		[]string{"operation"},
	)

	// OperationFailures tracks terminal failures by kind
	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prepfox_operation_failures_total",
			Help: "Total number of operations that failed terminally",
		},
		[]string{"operation", "kind"},
	)

	// OperationDuration tracks wall time of an operation including backoff
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prepfox_operation_duration_seconds",
			Help:    "Operation duration in seconds, including backoff waits",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// StuckSyncsReconciled tracks syncs moved out of a stuck syncing state
	StuckSyncsReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prepfox_sync_stuck_reconciled_total",
			Help: "Total number of stuck syncs marked as failed",
		},
	)

	// FailedOperations tracks the dead-letter queue size
	FailedOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prepfox_failed_operations",
			Help: "Number of operations waiting in the dead-letter queue",
		},
	)

	// DBBatchSize tracks rows written per transaction
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prepfox_db_batch_size",
			Help:    "Number of rows written in one transaction",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks open connections as a share of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prepfox_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)

// Observe returns a retry option counting retries for the operation and a
// done func recording the attempt count, duration and terminal failure kind.
func Observe(operation string) (retry.Option, func(err error)) {
	start := time.Now()
	onRetry := retry.OnRetry(func(e retry.Event) {
		OperationRetries.WithLabelValues(operation).Inc()
	})
	done := func(err error) {
		OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err == nil {
			return
		}
		kind := "unknown"
		if e, ok := retry.AsError(err); ok {
			kind = e.Kind.String()
		}
		OperationFailures.WithLabelValues(operation, kind).Inc()
	}
	return onRetry, done
}
