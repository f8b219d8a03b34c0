// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/api"
	"github.com/ranktrack/ranktrack/internal/cache"
	"github.com/ranktrack/ranktrack/internal/clock/system"
	"github.com/ranktrack/ranktrack/internal/config"
	"github.com/ranktrack/ranktrack/internal/id/uuid"
	"github.com/ranktrack/ranktrack/internal/logging"
	"github.com/ranktrack/ranktrack/internal/notify"
	"github.com/ranktrack/ranktrack/internal/progress"
	"github.com/ranktrack/ranktrack/internal/progress/sinks"
	"github.com/ranktrack/ranktrack/internal/ranking"
	"github.com/ranktrack/ranktrack/internal/scheduler"
	"github.com/ranktrack/ranktrack/internal/searchapi"
	"github.com/ranktrack/ranktrack/internal/storage/gcs"
	"github.com/ranktrack/ranktrack/internal/storage/local"
	"github.com/ranktrack/ranktrack/internal/storage/memory"
	"github.com/ranktrack/ranktrack/internal/storage/postgres"
)

// App holds the shared long-lived services. Built once at startup and handed
// to the command that needs it; fails fast if any critical service cannot be
// initialized.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Scheduler *scheduler.Scheduler
	Resolver  *ranking.Resolver
	Server    *api.Server
	Registry  *prometheus.Registry

	hub      *progress.Hub
	pool     *pgxpool.Pool
	notifier interface{ Close() error }
}

// New wires every service from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("initializing services",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("snapshot", cfg.Snapshot.Provider),
		zap.String("notify", cfg.Notify.Provider),
	)

	a := &App{Config: cfg, Logger: logger}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Registry = registry

	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("register progress metrics: %w", err)
	}
	a.hub = progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	keywords, units, observations, err := a.buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	snapshots, err := a.buildSnapshotStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := a.buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	searchClient, err := searchapi.New(searchapi.Config{
		BaseURL:        cfg.Search.BaseURL,
		APIKey:         cfg.Search.APIKey,
		EngineID:       cfg.Search.EngineID,
		TimeoutSeconds: cfg.Search.TimeoutSeconds,
	}, logger.Named("searchapi"))
	if err != nil {
		return nil, fmt.Errorf("build search client: %w", err)
	}

	clk := system.New()
	a.Resolver = ranking.NewResolver(searchClient, clk, ranking.ResolverConfig{
		PageSize:       cfg.Search.PageSize,
		PageDelay:      time.Duration(cfg.Search.PageDelayMs) * time.Millisecond,
		MaxCompetitors: cfg.Search.MaxCompetitors,
	}, logger.Named("resolver"))

	a.Scheduler, err = scheduler.New(scheduler.Deps{
		Keywords:     keywords,
		Units:        units,
		Observations: observations,
		Resolver:     a.Resolver,
		Notifier:     notifier,
		Snapshots:    snapshots,
		Emitter:      a.hub,
		Clock:        clk,
		IDs:          uuid.NewUUIDGenerator(),
		Logger:       logger.Named("scheduler"),
	}, scheduler.Config{
		TargetDomain:          cfg.Target.Domain,
		ChunkSize:             cfg.Scheduler.ChunkSize,
		KeywordDelay:          time.Duration(cfg.Scheduler.KeywordDelaySeconds) * time.Second,
		ErrorDelay:            time.Duration(cfg.Scheduler.ErrorDelaySeconds) * time.Second,
		TimeBudget:            cfg.TimeBudget(),
		SignificanceThreshold: cfg.Scheduler.SignificanceThreshold,
		BatchMaxPosition:      cfg.Scheduler.BatchMaxPosition,
		FirstPageSize:         cfg.Search.PageSize,
		StatusWindow:          time.Duration(cfg.Scheduler.StatusWindowMinutes) * time.Minute,
		SnapshotPrefix:        cfg.Snapshot.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	statusCache := cache.New[scheduler.Status](
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		cfg.Cache.MaxEntries,
	)
	a.Server = api.NewServer(a.Scheduler, a.Resolver, statusCache, registry, cfg, logger.Named("api"))

	logger.Info("services initialized")
	return a, nil
}

// buildStores picks the primary store backend. The memory backend is seeded
// with the configured keyword list; postgres reads keywords from the
// keywords table.
func (a *App) buildStores(ctx context.Context, cfg config.Config) (ranking.KeywordStore, ranking.UnitStore, ranking.RankingStore, error) {
	switch cfg.Storage.Provider {
	case "memory":
		ids := uuid.NewUUIDGenerator()
		kws := memory.NewKeywordStore()
		for _, text := range cfg.Target.Keywords {
			id, err := ids.NewID()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("generate keyword id: %w", err)
			}
			kws.Put(ranking.Keyword{ID: id, Text: text, IsActive: true})
		}
		return kws, memory.NewUnitStore(), memory.NewRankingStore(), nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		return postgres.NewKeywordStore(pool), postgres.NewUnitStore(pool), postgres.NewRankingStore(pool), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func (a *App) buildSnapshotStore(ctx context.Context, cfg config.Config) (ranking.SnapshotStore, error) {
	switch cfg.Snapshot.Provider {
	case "noop":
		// Snapshot archival is optional; the scheduler skips it entirely.
		return nil, nil
	case "memory":
		return memory.NewSnapshotStore(), nil
	case "local":
		return local.New(local.Config{BaseDir: cfg.Snapshot.LocalDir})
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Snapshot.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown snapshot provider %q", cfg.Snapshot.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config) (ranking.Notifier, error) {
	switch cfg.Notify.Provider {
	case "log":
		return notify.NewLogNotifier(a.Logger.Named("notify")), nil
	case "pubsub":
		n, err := notify.NewPubSubNotifier(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicName, a.Logger.Named("notify"))
		if err != nil {
			return nil, err
		}
		a.notifier = n
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Notify.Provider)
	}
}

// Close shuts services down in dependency order and flushes the logger.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.Logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.Logger.Warn("notifier close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.Logger.Sync()
}
