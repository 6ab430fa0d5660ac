package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

func TestFailedOperationRepo_Integration(t *testing.T) {
	url := os.Getenv("PREPFOX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PREPFOX_TEST_REDIS_URL not set")
	}

	client, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	repo := NewFailedOperationRepo(client, "test-"+uuid.NewString())
	base := time.Now().UTC().Truncate(time.Millisecond)

	second := &domain.FailedOperation{CorrelationID: "b", Operation: "refresh", Kind: "exhausted", Attempts: 3, CreatedAt: base.Add(time.Second)}
	first := &domain.FailedOperation{CorrelationID: "a", Operation: "cleanup", Kind: "non_retryable", Attempts: 1, CreatedAt: base}
	for _, op := range []*domain.FailedOperation{second, first} {
		if err := repo.Add(ctx, op); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].CorrelationID != "a" || all[1].Attempts != 3 {
		t.Fatalf("Unexpected records: %+v", all)
	}

	if err := repo.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
	_ = repo.Remove(ctx, "b")
}

func TestFailedOperationRepo_CorruptRecord(t *testing.T) {
	url := os.Getenv("PREPFOX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PREPFOX_TEST_REDIS_URL not set")
	}

	client, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	repo := NewFailedOperationRepo(client, "test-"+uuid.NewString())
	defer client.rdb.Del(ctx, repo.queueKey(), repo.recordKey("bad"))

	client.rdb.Set(ctx, repo.recordKey("bad"), []byte{0xc1}, time.Minute)
	client.rdb.ZAdd(ctx, repo.queueKey(), goredis.Z{Score: 1, Member: "bad"})

	_, err = repo.GetAll(ctx)
	e, ok := retry.AsError(err)
	if !ok {
		t.Fatalf("Expected *retry.Error, got %v", err)
	}
	if e.Retryable {
		t.Error("Expected decode failure to be non-retryable")
	}
}

func TestClassify(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	e, ok := retry.AsError(classify("zcard", netErr))
	if !ok || !e.Retryable {
		t.Errorf("Expected retryable tagged error for network failure, got %v", e)
	}

	plain := classify("zcard", errors.New("odd"))
	if _, ok := retry.AsError(plain); ok {
		t.Error("Expected unknown error left untagged")
	}
}
