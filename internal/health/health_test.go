package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/infra/storage/memory"
)

// =============================================================================
// Stubs
// =============================================================================

type stubChecker struct {
	err error
}

func (s *stubChecker) Health(ctx context.Context) error { return s.err }

func newMonitor(t *testing.T, failed int, dbErr error) *Monitor {
	t.Helper()
	store := memory.NewMemoryStorage()
	failedRepo := memory.NewFailedOperationRepo(store)
	for i := 0; i < failed; i++ {
		_ = failedRepo.Add(context.Background(), &domain.FailedOperation{
			CorrelationID: string(rune('a' + i)),
			Operation:     "refresh-sync-status",
		})
	}
	m := NewMonitor(MonitorConfig{FailedThreshold: 2}, failedRepo, memory.NewSyncStatusRepo(store))
	m.AddCheck("database", &stubChecker{err: dbErr})
	return m
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name   string
		failed int
		dbErr  error
		want   SystemStatus
	}{
		{"healthy", 0, nil, StatusHealthy},
		{"at threshold", 2, nil, StatusHealthy},
		{"dead letters above threshold", 3, nil, StatusDegraded},
		{"database down", 0, errors.New("connection refused"), StatusCritical},
		{"database down wins over degraded", 5, errors.New("connection refused"), StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newMonitor(t, tt.failed, tt.dbErr).CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.SystemStatus)
			}
			if report.FailedOperations != tt.failed {
				t.Errorf("expected %d failed operations, got %d", tt.failed, report.FailedOperations)
			}
		})
	}
}

func TestServer_Endpoints(t *testing.T) {
	tests := []struct {
		name     string
		dbErr    error
		wantCode int
		wantBody string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"critical", errors.New("down"), http.StatusServiceUnavailable, "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(newMonitor(t, 0, tt.dbErr), 0)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, body["status"])
			}
		})
	}
}

func TestServer_Detailed(t *testing.T) {
	srv := NewServer(newMonitor(t, 3, nil), 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Components["dead_letter"].Status != StatusDegraded {
		t.Errorf("expected degraded dead letter component, got %+v", report.Components)
	}
	if report.Components["database"].Status != StatusHealthy {
		t.Errorf("expected healthy database, got %+v", report.Components)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := NewServer(newMonitor(t, 0, nil), 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", rec.Code)
	}
}
