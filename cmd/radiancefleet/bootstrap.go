package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/cache"
	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/evidence"
	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// app bundles the process-wide handles every subcommand needs. Built once
// in main and torn down on exit, matching the teacher's main.go pattern of
// constructing its DB/RPC clients up front and deferring their shutdown.
type app struct {
	store     *store.Store
	handle    *config.Handle
	env       config.EnvSettings
	logger    *zap.Logger
	alerts    *evidence.AlertManager
	corridors *cache.CorridorCache
}

const (
	corridorCacheKey = "corridors:models"
	darkZoneCacheKey = "corridors:dark_zones"
	portCacheKey     = "ports:models"
)

// corridorModels returns the active Bundle's corridors, through the Redis
// cache when one is configured. Every CLI invocation otherwise re-parses
// and re-geocodes the corridors YAML from scratch even though it changes on
// the order of weeks, not per run.
func (a *app) corridorModels(ctx context.Context) ([]models.Corridor, error) {
	if a.corridors == nil {
		return a.handle.Load().Corridors.ToModels(), nil
	}
	var cached []models.Corridor
	if hit, err := a.corridors.Get(ctx, corridorCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	fresh := a.handle.Load().Corridors.ToModels()
	if err := a.corridors.Set(ctx, corridorCacheKey, fresh); err != nil {
		a.logger.Warn("corridor cache write failed, continuing uncached", zap.Error(err))
	}
	return fresh, nil
}

// darkZoneModels mirrors corridorModels for the gap detector's dark-zone
// bounding boxes.
func (a *app) darkZoneModels(ctx context.Context) ([]models.DarkZone, error) {
	if a.corridors == nil {
		return a.handle.Load().Corridors.DarkZones(), nil
	}
	var cached []models.DarkZone
	if hit, err := a.corridors.Get(ctx, darkZoneCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	fresh := a.handle.Load().Corridors.DarkZones()
	if err := a.corridors.Set(ctx, darkZoneCacheKey, fresh); err != nil {
		a.logger.Warn("dark-zone cache write failed, continuing uncached", zap.Error(err))
	}
	return fresh, nil
}

// portModels mirrors corridorModels for the draught detector's port
// reference set.
func (a *app) portModels(ctx context.Context) ([]models.Port, error) {
	if a.corridors == nil {
		return a.handle.Load().Ports.ToModels(), nil
	}
	var cached []models.Port
	if hit, err := a.corridors.Get(ctx, portCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	fresh := a.handle.Load().Ports.ToModels()
	if err := a.corridors.Set(ctx, portCacheKey, fresh); err != nil {
		a.logger.Warn("port cache write failed, continuing uncached", zap.Error(err))
	}
	return fresh, nil
}

// invalidateCorridorCache drops every cached bbox snapshot, called when
// WatchAndReload swaps in a new Bundle so a stale snapshot can't outlive
// the config it was derived from.
func (a *app) invalidateCorridorCache(ctx context.Context) {
	if a.corridors == nil {
		return
	}
	for _, key := range []string{corridorCacheKey, darkZoneCacheKey, portCacheKey} {
		if err := a.corridors.Invalidate(ctx, key); err != nil {
			a.logger.Warn("corridor cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// alertManager returns the process-wide alert fan-out, constructing it
// lazily so commands that never emit alerts (ingest, score) don't pay for
// an HTTP client they don't use.
func (a *app) alertManager() *evidence.AlertManager {
	if a.alerts == nil {
		a.alerts = evidence.NewAlertManager()
		if a.env.AlertWebhookURL != "" {
			a.alerts.RegisterWebhook("default", a.env.AlertWebhookURL, "medium", nil)
		}
	}
	return a.alerts
}

func newApp(ctx context.Context) (*app, func(), error) {
	env := config.LoadEnvSettings()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("radiancefleet: building logger: %w", err)
	}
	obs.SetBase(logger)

	bundle, err := config.LoadBundle(config.Paths{Dir: env.ConfigDir})
	if err != nil {
		return nil, nil, fmt.Errorf("radiancefleet: loading config bundle: %w", err)
	}
	handle := config.NewHandle(bundle)

	if env.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("radiancefleet: RADIANCEFLEET_DATABASE_URL is required")
	}
	st, err := store.Connect(ctx, env.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("radiancefleet: connecting to database: %w", err)
	}

	var corridorCache *cache.CorridorCache
	if env.RedisAddr != "" {
		corridorCache = cache.New(env.RedisAddr, time.Duration(env.CacheTTLSeconds)*time.Second)
	}

	a := &app{store: st, handle: handle, env: env, logger: logger, corridors: corridorCache}

	watcher, err := config.WatchAndReload(config.Paths{Dir: env.ConfigDir}, handle, logger, func() {
		a.invalidateCorridorCache(ctx)
	})
	if err != nil {
		logger.Warn("config hot-reload watcher unavailable, continuing with static config", zap.Error(err))
		watcher = nil
	}

	cleanup := func() {
		if watcher != nil {
			watcher.Close()
		}
		if corridorCache != nil {
			_ = corridorCache.Close()
		}
		st.Close()
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
