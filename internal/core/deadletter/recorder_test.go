package deadletter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
	"github.com/prepfox/prepfox-ops/internal/infra/storage/memory"
)

type captureNotifier struct {
	ops      []*domain.FailedOperation
	messages []string
}

func (n *captureNotifier) Notify(ctx context.Context, op *domain.FailedOperation, message string) error {
	n.ops = append(n.ops, op)
	n.messages = append(n.messages, message)
	return nil
}

func (n *captureNotifier) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_RecordsExhaustedFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFailedOperationRepo(memory.NewMemoryStorage())
	notifier := &captureNotifier{}
	rec := NewRecorder(repo, notifier, quietLogger())

	octx := retry.NewOperationContext("refresh-sync-status", "syncstatus", retry.WithUserID("u-1"))
	err := &retry.Error{
		Message:   "timeout",
		Context:   octx,
		Cause:     errors.New("timeout"),
		Retryable: true,
		Kind:      retry.KindExhausted,
		Attempts:  3,
	}

	fo := rec.Record(ctx, err)
	if fo == nil {
		t.Fatal("Expected a failed operation record")
	}
	if fo.CorrelationID != octx.CorrelationID() || fo.Attempts != 3 || fo.Kind != "exhausted" {
		t.Errorf("Unexpected record %+v", fo)
	}

	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Expected 1 queued record, got %d", n)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != retry.UserMessage(err) {
		t.Errorf("Expected user notification, got %v", notifier.messages)
	}
	if notifier.ops[0].UserID != "u-1" {
		t.Errorf("Expected user id on notification, got %q", notifier.ops[0].UserID)
	}
}

func TestRecorder_SkipsCancelled(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewFailedOperationRepo(memory.NewMemoryStorage())
	notifier := &captureNotifier{}
	rec := NewRecorder(repo, notifier, quietLogger())

	err := &retry.Error{Message: "operation cancelled", Cause: context.Canceled, Kind: retry.KindCancelled}
	if fo := rec.Record(ctx, err); fo != nil {
		t.Errorf("Expected no record for cancellation, got %+v", fo)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Errorf("Expected empty queue, got %d", n)
	}
	if len(notifier.messages) != 0 {
		t.Error("Expected no notification for cancellation")
	}
}

func TestRecorder_PlainError(t *testing.T) {
	repo := memory.NewFailedOperationRepo(memory.NewMemoryStorage())
	rec := NewRecorder(repo, nil, quietLogger())

	fo := rec.Record(context.Background(), errors.New("boom"))
	if fo == nil || fo.Kind != "non_retryable" || fo.CorrelationID == "" {
		t.Errorf("Unexpected record %+v", fo)
	}
	if rec.Record(context.Background(), nil) != nil {
		t.Error("Expected nil for nil error")
	}
}
