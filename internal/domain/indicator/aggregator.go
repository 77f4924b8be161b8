package indicator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/events"
	"github.com/dara-tech/preartweb/internal/platform/workers"
)

// Aggregator fans the Executor out over indicators and sites. A failing
// indicator or site never aborts the batch.
type Aggregator struct {
	exec      *Executor
	catalog   *query.Catalog
	resolver  site.Resolver
	limits    workers.Limits
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewAggregator(exec *Executor, catalog *query.Catalog, resolver site.Resolver, limits workers.Limits, publisher events.Publisher, logger zerolog.Logger) *Aggregator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Aggregator{
		exec:      exec,
		catalog:   catalog,
		resolver:  resolver,
		limits:    limits.Normalized(),
		publisher: publisher,
		logger:    logger,
	}
}

// indicatorIDs returns the requested ids in catalog order, or every
// aggregate template when none are requested. Unknown ids are kept so they
// surface as failed results.
func (a *Aggregator) indicatorIDs(ids []string) []string {
	if len(ids) == 0 {
		return a.catalog.IDs(query.KindAggregate)
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	query.SortIDs(out)
	return out
}

// RunSite runs the indicators for one site. Only an unknown site fails
// the call.
func (a *Aggregator) RunSite(ctx context.Context, siteCode string, ids []string, p query.Params, useCache bool) (*SiteReport, error) {
	s, err := a.resolver.Site(ctx, siteCode)
	if err != nil {
		return nil, err
	}
	report := a.runSite(ctx, s, a.indicatorIDs(ids), p, useCache)
	a.notify("site", []string{s.Code}, p, report.SuccessCount, report.ErrorCount)
	return &report, nil
}

func (a *Aggregator) runSite(ctx context.Context, s *site.Site, ids []string, p query.Params, useCache bool) SiteReport {
	report := SiteReport{SiteCode: s.Code, SiteName: s.Name}

	if err := a.resolver.Ping(ctx, s); err != nil {
		a.logger.Warn().Err(err).Str("site", s.Code).Msg("site unreachable")
		return a.unreachable(s, ids, err)
	}

	slow := make([]bool, len(ids))
	for i, id := range ids {
		if t, err := a.catalog.Get(id); err == nil {
			slow[i] = t.Cost == query.CostSlow
		}
	}

	results := make([]Result, len(ids))
	workers.Costed(ctx, slow, a.limits.Indicators, a.limits.SlowIndicators, func(ctx context.Context, i int) {
		id := ids[i]
		res, err := a.exec.ExecuteOn(ctx, s, id, p, useCache)
		if err != nil {
			a.logger.Warn().Err(err).Str("site", s.Code).Str("indicator", id).Msg("indicator failed")
			results[i] = failed(id, a.exec.Label(id), err)
			return
		}
		results[i] = *res
	})

	report.Results = results
	report.tally()
	return report
}

// unreachable is the zero-filled report of a site whose database could not
// be reached. It counts as a single error.
func (a *Aggregator) unreachable(s *site.Site, ids []string, err error) SiteReport {
	results := make([]Result, len(ids))
	for i, id := range ids {
		results[i] = Result{IndicatorID: id, Data: Data{Indicator: a.exec.Label(id)}}
	}
	return SiteReport{
		SiteCode:   s.Code,
		SiteName:   s.Name,
		Results:    results,
		ErrorCount: 1,
		Error:      err.Error(),
	}
}

// RunAllSites runs the indicators for one site or "all" and merges the
// counts per indicator.
func (a *Aggregator) RunAllSites(ctx context.Context, selector string, ids []string, p query.Params, useCache bool) (*MultiSiteReport, error) {
	sites, err := site.Select(ctx, a.resolver, selector)
	if err != nil {
		return nil, err
	}
	ids = a.indicatorIDs(ids)

	reports := make([]SiteReport, len(sites))
	workers.Each(len(sites), a.limits.Sites, func(i int) {
		reports[i] = a.runSite(ctx, &sites[i], ids, p, useCache)
	})

	out := &MultiSiteReport{
		Sites:     reports,
		Merged:    merge(ids, reports),
		SiteCount: len(reports),
		Period:    p,
	}
	codes := make([]string, len(reports))
	for i, r := range reports {
		out.SuccessCount += r.SuccessCount
		out.ErrorCount += r.ErrorCount
		codes[i] = r.SiteCode
	}
	a.notify("all_sites", codes, p, out.SuccessCount, out.ErrorCount)
	return out, nil
}

// RunOne runs a single indicator on every site.
func (a *Aggregator) RunOne(ctx context.Context, id string, p query.Params, useCache bool) (*MultiSiteReport, error) {
	if !a.catalog.Has(id) {
		return nil, query.ErrTemplateNotFound
	}
	return a.RunAllSites(ctx, site.AllSites, []string{id}, p, useCache)
}

// merge sums successful results per indicator across sites.
func merge(ids []string, reports []SiteReport) []Merged {
	merged := make([]Merged, len(ids))
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		merged[i] = Merged{IndicatorID: id}
		index[id] = i
	}
	for _, r := range reports {
		for _, res := range r.Results {
			i, ok := index[res.IndicatorID]
			if !ok {
				continue
			}
			m := &merged[i]
			if m.Data.Indicator == "" {
				m.Data.Indicator = res.Data.Indicator
			}
			if !res.Success {
				m.ErrorCount++
				continue
			}
			m.Data.Add(res.Data)
			m.SiteCount++
		}
	}
	return merged
}

func (a *Aggregator) notify(scope string, sites []string, p query.Params, ok, failed int) {
	events.Notify(a.publisher, a.logger, events.NewEvent(events.TypeReportGenerated, map[string]interface{}{
		"report":       "indicators",
		"scope":        scope,
		"sites":        sites,
		"startDate":    p.StartDate,
		"endDate":      p.EndDate,
		"successCount": ok,
		"errorCount":   failed,
	}))
}

// Purge drops cached results of one site, or of every site when siteCode
// is empty, and announces it. The returned count is -1 for a full purge.
func (a *Aggregator) Purge(ctx context.Context, siteCode string) int {
	removed := -1
	if siteCode == "" {
		a.exec.PurgeAll(ctx)
	} else {
		removed = a.exec.PurgeSite(ctx, siteCode)
	}
	events.Notify(a.publisher, a.logger, events.NewEvent(events.TypeCachePurged, map[string]interface{}{
		"site":    siteCode,
		"removed": removed,
	}))
	return removed
}

// IsNotFound reports whether err means the site or indicator does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, site.ErrSiteNotFound) || errors.Is(err, query.ErrTemplateNotFound)
}
