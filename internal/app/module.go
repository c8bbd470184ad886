// Package app composes the cache daemon: logger, config, profile lock, store,
// coordinator and queue worker, wired through fx with lifecycle hooks.
package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/zapbox/internal/bus"
	"github.com/matheus3301/zapbox/internal/cache"
	"github.com/matheus3301/zapbox/internal/config"
	"github.com/matheus3301/zapbox/internal/lock"
	"github.com/matheus3301/zapbox/internal/logging"
	"github.com/matheus3301/zapbox/internal/outbox"
	"github.com/matheus3301/zapbox/internal/profile"
	"github.com/matheus3301/zapbox/internal/status"
	"github.com/matheus3301/zapbox/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	// Dispatcher is the host transport draining the sync queue; nil runs the
	// worker in maintenance-only mode.
	Dispatcher outbox.Dispatcher
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCoordinator,
			provideWorker,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config load failed, using defaults", zap.Error(err))
		}
		return config.Default()
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, machine *status.Machine, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		_ = machine.Transition(status.Error)
		return nil, err
	}

	_ = machine.Transition(status.Migrating)
	report, err := db.Init(logger)
	if err != nil {
		_ = machine.Transition(status.Error)
		_ = db.Close()
		return nil, err
	}

	if report.Degraded {
		_ = machine.Transition(status.Degraded)
		logger.Warn("store degraded, some indexes missing")
	} else {
		_ = machine.Transition(status.Ready)
	}
	logger.Info("store initialized",
		zap.String("path", dbPath),
		zap.Uint("schema_version", report.MigrationVersion),
		zap.Bool("search", report.SearchAvailable),
		zap.Strings("healed", report.Healed))
	return db, nil
}

func provideCoordinator(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *cache.Coordinator {
	return cache.NewCoordinator(db, b, cfg, logger)
}

func provideWorker(p Params, db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Worker {
	return outbox.NewWorker(db, p.Dispatcher, b, cfg, logger)
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, worker *outbox.Worker, machine *status.Machine, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			worker.Start(context.Background())
			logger.Info("cache daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			worker.Stop()
			_ = machine.Transition(status.Closed)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("cache daemon stopped")
			return nil
		},
	})
}
