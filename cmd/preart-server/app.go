package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/config"
	"github.com/dara-tech/preartweb/internal/domain/indicator"
	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/cache"
	"github.com/dara-tech/preartweb/internal/platform/db"
	"github.com/dara-tech/preartweb/internal/platform/events"
	"github.com/dara-tech/preartweb/internal/platform/workers"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	conns     *db.SiteConnections
	sites     *site.Service
	catalog   *query.Catalog
	cache     cache.Store
	publisher events.Publisher
	limits    workers.Limits
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		limits: workers.Limits{
			Indicators:     cfg.IndicatorConcurrency,
			SlowIndicators: cfg.SlowIndicatorConcurrency,
			Sites:          cfg.SiteConcurrency,
		}.Normalized(),
	}

	registry, err := a.openRegistry(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	poolCfg := db.DefaultSitePoolConfig()
	if cfg.SiteMaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.SiteMaxOpenConns
	}
	a.conns = db.NewSiteConnections(poolCfg)
	a.closers = append(a.closers, func() { a.conns.Close() })
	a.sites = site.NewService(registry, a.conns, cfg.SiteDriver, cfg.SiteDSNTemplate, logger)

	a.catalog, err = query.LoadCatalog(cfg.QueriesDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info().Str("dir", cfg.QueriesDir).Int("templates", a.catalog.Len()).Msg("query catalog loaded")

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.KafkaEnabled() {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.publisher = pub
		a.closers = append(a.closers, func() { pub.Close() })
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing report events")
	} else {
		a.publisher = events.NopPublisher{}
	}
	return a, nil
}

func (a *app) openRegistry(ctx context.Context) (site.Registry, error) {
	if a.cfg.SiteRegistry == config.RegistryFile {
		reg, err := site.LoadFileRegistry(a.cfg.SitesFile)
		if err != nil {
			return nil, err
		}
		a.logger.Info().Str("file", a.cfg.SitesFile).Msg("site registry loaded from file")
		return reg, nil
	}

	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect registry database: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	a.logger.Info().Msg("connected to registry database")
	return site.NewRegistryPG(pool), nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.CacheBackend == config.CacheRedis {
		client, err := cache.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.cache = cache.NewRedisStore(client, a.logger)
		return nil
	}
	mem := cache.NewMemoryStore()
	mem.StartCleanup(ctx, time.Minute)
	a.cache = mem
	return nil
}

func (a *app) executor() *indicator.Executor {
	return indicator.NewExecutor(a.catalog, a.sites, a.cache, a.cfg.CacheTTL, a.logger)
}

func (a *app) aggregator(exec *indicator.Executor) *indicator.Aggregator {
	return indicator.NewAggregator(exec, a.catalog, a.sites, a.limits, a.publisher, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
