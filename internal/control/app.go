// Package control wires configuration into the running service.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/prepfox/prepfox-ops/internal/core/config"
	"github.com/prepfox/prepfox-ops/internal/core/deadletter"
	"github.com/prepfox/prepfox-ops/internal/core/syncstatus"
	"github.com/prepfox/prepfox-ops/internal/core/worker"
	"github.com/prepfox/prepfox-ops/internal/health"
	"github.com/prepfox/prepfox-ops/internal/infra/functions"
	"github.com/prepfox/prepfox-ops/internal/infra/notify"
	redisclient "github.com/prepfox/prepfox-ops/internal/infra/redis"
	"github.com/prepfox/prepfox-ops/internal/infra/storage"
	"github.com/prepfox/prepfox-ops/internal/infra/storage/memory"
	"github.com/prepfox/prepfox-ops/internal/infra/storage/postgres"
)

// ErrNoFunctions is returned when a refresh is requested without a
// configured functions endpoint.
var ErrNoFunctions = errors.New("functions endpoint is not configured")

// App holds every component of the service.
type App struct {
	cfg          *config.AppConfig
	policies     config.Policies
	syncRepo     storage.SyncStatusRepository
	failedRepo   storage.FailedOperationRepository
	invoker      functions.Invoker
	notifier     notify.Notifier
	recorder     *deadletter.Recorder
	refresher    *syncstatus.Refresher
	cleaner      *worker.Cleaner
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// New creates an App with all dependencies initialized. Without a database
// or Redis URL the in-memory stores are used.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	policies, err := cfg.Retry.Policies()
	if err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	a := &App{cfg: cfg, policies: policies, log: log}
	store := memory.NewMemoryStorage()

	// 1. Sync status storage
	if cfg.Database.URL != "" {
		a.db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := a.db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.syncRepo = postgres.NewSyncStatusRepo(a.db)
		log.Info("Using PostgreSQL storage")
	} else {
		a.syncRepo = memory.NewSyncStatusRepo(store)
		log.Info("Using Memory storage")
	}

	// 2. Dead-letter storage
	if cfg.Redis.URL != "" {
		a.redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.failedRepo = redisclient.NewFailedOperationRepo(a.redisClient, "prepfox")
		log.Info("Using Redis dead-letter store")
	} else {
		a.failedRepo = memory.NewFailedOperationRepo(store)
	}

	// 3. Notifications
	if cfg.NATS.URL != "" {
		n, err := notify.NewNATSNotifier(cfg.NATS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		a.notifier = n
	} else {
		a.notifier = notify.NewLogNotifier(log)
	}
	a.recorder = deadletter.NewRecorder(a.failedRepo, a.notifier, log)

	// 4. Remote functions
	if cfg.Functions.BaseURL != "" || cfg.Functions.GRPCTarget != "" {
		a.invoker, err = functions.New(cfg.Functions)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init functions: %w", err)
		}
		a.refresher = syncstatus.NewRefresher(a.invoker, a.syncRepo, a.recorder, policies.SyncRefresh, log)
	}

	// 5. Workers and health
	a.cleaner = worker.NewCleaner(cfg.Cleanup, a.syncRepo, a.recorder, policies.Cleanup, log)

	a.healthMon = health.NewMonitor(
		health.MonitorConfig{FailedThreshold: cfg.Server.FailedThreshold},
		a.failedRepo,
		a.syncRepo,
	)
	if a.db != nil {
		a.healthMon.AddCheck("database", a.db)
	}
	if a.redisClient != nil {
		a.healthMon.AddCheck("redis", a.redisClient)
	}
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)

	return a, nil
}

// Start runs the health server and the cleaner until ctx is done.
func (a *App) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("Starting health server", "port", a.cfg.Server.Port)
		return a.healthServer.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return a.healthServer.Stop(context.WithoutCancel(ctx))
	})
	g.Go(func() error {
		a.log.Info("Starting stuck sync cleaner")
		a.cleaner.Start(ctx)
		return nil
	})

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	return g.Wait()
}

// Stop shuts down the health server and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping prepfox-ops...")
	err := a.healthServer.Stop(ctx)
	return errors.Join(err, a.Close())
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	if a.invoker != nil {
		errs = append(errs, a.invoker.Close())
	}
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Refresher returns the sync status refresher.
func (a *App) Refresher() (*syncstatus.Refresher, error) {
	if a.refresher == nil {
		return nil, ErrNoFunctions
	}
	return a.refresher, nil
}

// Cleaner returns the stuck sync cleaner.
func (a *App) Cleaner() *worker.Cleaner { return a.cleaner }

// FailedOperations returns the dead-letter store.
func (a *App) FailedOperations() storage.FailedOperationRepository { return a.failedRepo }

// SyncStatuses returns the sync status store.
func (a *App) SyncStatuses() storage.SyncStatusRepository { return a.syncRepo }

// Health returns the health monitor.
func (a *App) Health() *health.Monitor { return a.healthMon }
