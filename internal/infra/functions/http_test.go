package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

func TestHTTPInvoker_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-sync-status" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Unexpected auth header %q", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"store": body["store_id"]})
	}))
	defer server.Close()

	inv := NewHTTPInvoker(server.URL+"/", "secret", time.Second)
	defer inv.Close()

	var out map[string]string
	err := inv.Invoke(context.Background(), "get-sync-status", map[string]string{"store_id": "s1"}, &out)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out["store"] != "s1" {
		t.Errorf("Expected echoed store, got %v", out)
	}
}

func TestHTTPInvoker_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("boom"))
		}))

		err := NewHTTPInvoker(server.URL, "", time.Second).Invoke(context.Background(), "fn", nil, nil)
		server.Close()

		e, ok := retry.AsError(err)
		if !ok {
			t.Fatalf("status %d: expected tagged error, got %v", tt.status, err)
		}
		if e.Retryable != tt.retryable {
			t.Errorf("status %d: Retryable = %v, want %v", tt.status, e.Retryable, tt.retryable)
		}
	}
}

func TestHTTPInvoker_NetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewHTTPInvoker(url, "", time.Second).Invoke(context.Background(), "fn", nil, nil)
	e, ok := retry.AsError(err)
	if !ok || !e.Retryable {
		t.Errorf("Expected retryable network error, got %v", err)
	}
}

func TestHTTPInvoker_WithRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	inv := NewHTTPInvoker(server.URL, "", time.Second)
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}

	out, err := retry.Do(context.Background(), func(ctx context.Context) (map[string]bool, error) {
		var out map[string]bool
		err := inv.Invoke(ctx, "fn", nil, &out)
		return out, err
	}, policy, retry.NewOperationContext("fn", "test"))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !out["ok"] || calls != 3 {
		t.Errorf("Expected ok after 3 calls, got %v after %d", out, calls)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Transport: TransportHTTP}); err == nil {
		t.Error("Expected error without base url")
	}
	if _, err := New(Config{Transport: "smoke-signal"}); err == nil {
		t.Error("Expected error for unknown transport")
	}
	inv, err := New(Config{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := inv.(*HTTPInvoker); !ok {
		t.Errorf("Expected HTTP invoker by default, got %T", inv)
	}
}
