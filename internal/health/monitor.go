package health

import (
	"context"
	"sync"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/infra/storage"
)

// Checker is a dependency that can be pinged.
type Checker interface {
	Health(ctx context.Context) error
}

// MonitorConfig holds thresholds for status evaluation.
type MonitorConfig struct {
	// FailedThreshold is the dead-letter size above which the service is degraded.
	FailedThreshold int
	CacheTTL        time.Duration
}

// Monitor aggregates health status from the service dependencies.
type Monitor struct {
	cfg        MonitorConfig
	critical   map[string]Checker
	failedRepo storage.FailedOperationRepository
	syncRepo   storage.SyncStatusRepository
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Either repository may be nil.
func NewMonitor(
	cfg MonitorConfig,
	failedRepo storage.FailedOperationRepository,
	syncRepo storage.SyncStatusRepository,
) *Monitor {
	return &Monitor{
		cfg:        cfg,
		critical:   make(map[string]Checker),
		failedRepo: failedRepo,
		syncRepo:   syncRepo,
	}
}

// AddCheck registers a dependency whose failure makes the service critical.
func (m *Monitor) AddCheck(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical[name] = c
}

// CheckHealth runs all checks, reusing the last report within CacheTTL.
func (m *Monitor) CheckHealth(ctx context.Context) *HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cfg.CacheTTL {
		return m.lastReport
	}

	report := &HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	for name, c := range m.critical {
		h := ComponentHealth{Status: StatusHealthy}
		if err := c.Health(ctx); err != nil {
			h = ComponentHealth{Status: StatusCritical, Error: err.Error()}
		}
		report.Components[name] = h
		report.SystemStatus = worse(report.SystemStatus, h.Status)
	}

	if m.failedRepo != nil {
		h := ComponentHealth{Status: StatusHealthy}
		count, err := m.failedRepo.Count(ctx)
		switch {
		case err != nil:
			h = ComponentHealth{Status: StatusDegraded, Error: err.Error()}
		case count > m.cfg.FailedThreshold:
			h.Status = StatusDegraded
		}
		report.FailedOperations = count
		report.Components["dead_letter"] = h
		report.SystemStatus = worse(report.SystemStatus, h.Status)
	}

	if m.syncRepo != nil {
		// Informational only
		if n, err := m.syncRepo.CountByState(ctx, domain.SyncStateSyncing); err == nil {
			report.SyncsInProgress = n
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
