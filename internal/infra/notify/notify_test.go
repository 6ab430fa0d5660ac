package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	op := &domain.FailedOperation{CorrelationID: "c-1", Operation: "refresh-sync-status", UserID: "u-1"}
	if err := n.Notify(context.Background(), op, "Please try again."); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if !strings.Contains(buf.String(), "correlation_id=c-1") {
		t.Errorf("Expected correlation id in log, got %q", buf.String())
	}
}

func TestNATSNotifier_Integration(t *testing.T) {
	url := os.Getenv("PREPFOX_TEST_NATS_URL")
	if url == "" {
		t.Skip("PREPFOX_TEST_NATS_URL not set")
	}

	n, err := NewNATSNotifier(Config{URL: url, Subject: "prepfox.test.failures"})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer n.Close()

	sub, err := n.nc.SubscribeSync("prepfox.test.failures")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	op := &domain.FailedOperation{CorrelationID: "c-2", Operation: "cleanup-sync-status", CreatedAt: time.Now()}
	if err := n.Notify(context.Background(), op, "Sync cleanup failed."); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err == nats.ErrTimeout {
		t.Fatal("Expected a message before timeout")
	}
	if err != nil {
		t.Fatalf("NextMsg failed: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if ev.CorrelationID != "c-2" || ev.Message != "Sync cleanup failed." {
		t.Errorf("Unexpected event %+v", ev)
	}
}
