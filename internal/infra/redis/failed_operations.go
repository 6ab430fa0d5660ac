package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

// recordTTL bounds how long a dead-letter record is kept.
const recordTTL = 7 * 24 * time.Hour

// FailedOperationRepo implements storage.FailedOperationRepository using Redis.
type FailedOperationRepo struct {
	rdb       *redis.Client
	namespace string
}

// NewFailedOperationRepo creates a new Redis-backed dead-letter queue.
func NewFailedOperationRepo(client *Client, namespace string) *FailedOperationRepo {
	return &FailedOperationRepo{
		rdb:       client.rdb,
		namespace: namespace,
	}
}

// Key helpers
func (r *FailedOperationRepo) queueKey() string {
	return fmt.Sprintf("failed_operations:%s", r.namespace)
}

func (r *FailedOperationRepo) recordKey(id string) string {
	return fmt.Sprintf("failed_operation:%s:%s", r.namespace, id)
}

// Add stores a failed operation and queues it by creation time.
func (r *FailedOperationRepo) Add(ctx context.Context, op *domain.FailedOperation) error {
	data, err := msgpack.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal failed operation: %w", err)
	}

	if err := r.rdb.Set(ctx, r.recordKey(op.CorrelationID), data, recordTTL).Err(); err != nil {
		return classify("set failed operation", err)
	}

	if err := r.rdb.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(op.CreatedAt.UnixMilli()),
		Member: op.CorrelationID,
	}).Err(); err != nil {
		return classify("add to queue", err)
	}

	return nil
}

// GetAll retrieves all failed operations, oldest first.
func (r *FailedOperationRepo) GetAll(ctx context.Context) ([]*domain.FailedOperation, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, classify("zrange", err)
	}

	ops := make([]*domain.FailedOperation, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.recordKey(id)).Bytes()
		if err == redis.Nil {
			// Record expired but id still queued
			r.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, classify("get failed operation", err)
		}

		var op domain.FailedOperation
		if err := msgpack.Unmarshal(data, &op); err != nil {
			return nil, retry.NewError("decode failed operation "+id, err, false)
		}
		ops = append(ops, &op)
	}

	return ops, nil
}

// Remove deletes a failed operation.
func (r *FailedOperationRepo) Remove(ctx context.Context, correlationID string) error {
	if err := r.rdb.ZRem(ctx, r.queueKey(), correlationID).Err(); err != nil {
		return classify("remove from queue", err)
	}
	if err := r.rdb.Del(ctx, r.recordKey(correlationID)).Err(); err != nil {
		return classify("delete failed operation", err)
	}
	return nil
}

// Count returns the number of queued failed operations.
func (r *FailedOperationRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, classify("zcard", err)
	}
	return int(count), nil
}

// classify tags network failures as retryable; Redis server replies are not.
func classify(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return retry.NewError(op, err, !errors.Is(err, redis.ErrClosed))
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return retry.NewError(op, err, false)
	}
	return fmt.Errorf("%s: %w", op, err)
}
