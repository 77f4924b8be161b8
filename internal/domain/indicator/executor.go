package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/cache"
)

// Executor runs one aggregate template against one site, through the cache.
type Executor struct {
	catalog  *query.Catalog
	resolver site.Resolver
	cache    cache.Store
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewExecutor(catalog *query.Catalog, resolver site.Resolver, store cache.Store, ttl time.Duration, logger zerolog.Logger) *Executor {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Executor{
		catalog:  catalog,
		resolver: resolver,
		cache:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

// Label is the display name of an indicator: the template's label header
// or the humanised id.
func (e *Executor) Label(id string) string {
	if t, err := e.catalog.Get(id); err == nil && t.LabelEn != "" {
		return t.LabelEn
	}
	return query.Humanize(id)
}

// Execute resolves the site and runs one indicator.
func (e *Executor) Execute(ctx context.Context, siteCode, id string, p query.Params, useCache bool) (*Result, error) {
	s, err := e.resolver.Site(ctx, siteCode)
	if err != nil {
		return nil, err
	}
	return e.ExecuteOn(ctx, s, id, p, useCache)
}

// ExecuteOn runs one indicator on an already resolved site. Errors are
// returned to the caller; batching callers turn them into placeholders.
func (e *Executor) ExecuteOn(ctx context.Context, s *site.Site, id string, p query.Params, useCache bool) (*Result, error) {
	key := cache.IndicatorKey(s.Code, id, p.Hash())
	if useCache {
		if b, ok := e.cache.Get(ctx, key); ok {
			var cached Result
			if err := json.Unmarshal(b, &cached); err == nil {
				cached.Cached = true
				return &cached, nil
			}
			e.logger.Warn().Str("key", key).Msg("discarding unreadable cache entry")
		}
	}

	tmpl, err := e.catalog.Get(id)
	if err != nil {
		return nil, err
	}

	sql, args := query.Bind(tmpl.SQL, p, s.Placeholder())
	start := time.Now()
	records, err := e.resolver.Query(ctx, s, sql, args...)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("indicator %s: %w", id, err)
	}

	res := &Result{
		IndicatorID:     id,
		Success:         true,
		Data:            dataFromRecords(records, e.Label(id)),
		ExecutionTimeMs: elapsed,
	}

	if useCache {
		if b, err := json.Marshal(res); err == nil {
			e.cache.Set(ctx, key, b, e.ttl)
		}
	}

	e.logger.Debug().
		Str("site", s.Code).
		Str("indicator", id).
		Int64("ms", elapsed).
		Msg("indicator executed")
	return res, nil
}

// PurgeSite drops every cached result of one site.
func (e *Executor) PurgeSite(ctx context.Context, siteCode string) int {
	return e.cache.DeletePrefix(ctx, cache.SitePrefix(siteCode))
}

// PurgeAll drops every cached result.
func (e *Executor) PurgeAll(ctx context.Context) {
	e.cache.Clear(ctx)
}
