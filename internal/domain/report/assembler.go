package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/events"
	"github.com/dara-tech/preartweb/internal/platform/workers"
)

// Section is one definition's contribution to a report.
type Section struct {
	Number        int      `json:"sectionNumber"`
	ID            string   `json:"id"`
	LabelEn       string   `json:"sectionLabelEn"`
	LabelKh       string   `json:"sectionLabelKh"`
	DetailScripts []string `json:"detailScriptIds,omitempty"`
	Rows          []Row    `json:"rows"`
	Error         string   `json:"error,omitempty"`
}

// SiteSummary is one site's outcome within an all-site report.
type SiteSummary struct {
	SiteCode   string `json:"siteCode"`
	SiteName   string `json:"siteName"`
	ErrorCount int    `json:"errorCount"`
	Error      string `json:"error,omitempty"`
}

// MultiSiteReport holds sections summed across sites.
type MultiSiteReport struct {
	Sections   []Section     `json:"data"`
	Sites      []SiteSummary `json:"sites"`
	SiteCount  int           `json:"siteCount"`
	ErrorCount int           `json:"errorCount"`
	Period     query.Params  `json:"period"`
}

// Assembler runs report definitions against site databases.
type Assembler struct {
	catalog   *query.Catalog
	resolver  site.Resolver
	sites     int
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewAssembler(catalog *query.Catalog, resolver site.Resolver, limits workers.Limits, publisher events.Publisher, logger zerolog.Logger) *Assembler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Assembler{
		catalog:   catalog,
		resolver:  resolver,
		sites:     limits.Normalized().Sites,
		publisher: publisher,
		logger:    logger,
	}
}

func newSection(def Definition) Section {
	return Section{
		Number:        def.Number,
		ID:            def.ID,
		LabelEn:       def.LabelEn,
		LabelKh:       def.LabelKh,
		DetailScripts: def.DetailScripts,
	}
}

// Build assembles a report for one site. Only an unknown site fails the
// call; a failing definition becomes a single error row.
func (a *Assembler) Build(ctx context.Context, name, siteCode string, defs []Definition, p query.Params) ([]Section, error) {
	s, err := a.resolver.Site(ctx, siteCode)
	if err != nil {
		return nil, err
	}
	sections := a.buildSite(ctx, s, defs, p)
	a.notify(name, []string{s.Code}, p, countErrors(sections))
	return sections, nil
}

func (a *Assembler) buildSite(ctx context.Context, s *site.Site, defs []Definition, p query.Params) []Section {
	sections := make([]Section, 0, len(defs))
	for _, def := range defs {
		sec := newSection(def)
		rows, err := a.runDefinition(ctx, s, def, p)
		if err != nil {
			a.logger.Warn().Err(err).Str("site", s.Code).Str("section", def.ID).Msg("report section failed")
			sec.Rows = []Row{ErrorRow(err.Error())}
			sec.Error = err.Error()
		} else {
			sec.Rows = rows
		}
		sections = append(sections, sec)
	}
	return sections
}

func (a *Assembler) runDefinition(ctx context.Context, s *site.Site, def Definition, p query.Params) ([]Row, error) {
	if def.Normalize == nil {
		return nil, fmt.Errorf("section %s has no normalizer", def.ID)
	}
	sets := make([][]query.Record, len(def.Scripts))
	for i, id := range def.Scripts {
		t, err := a.catalog.Get(id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		sql, args := query.Bind(t.SQL, p, s.Placeholder())
		records, err := a.resolver.Query(ctx, s, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		sets[i] = records
	}
	return def.Normalize(sets), nil
}

// zeroSections is the report of a site that could not be reached: every
// section has its normal shape with zero counts.
func zeroSections(defs []Definition) []Section {
	sections := make([]Section, len(defs))
	for i, def := range defs {
		sections[i] = newSection(def)
		if def.Normalize != nil {
			sections[i].Rows = def.Normalize(make([][]query.Record, len(def.Scripts)))
		}
	}
	return sections
}

func countErrors(sections []Section) int {
	n := 0
	for _, s := range sections {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// BuildAllSites assembles the report on one site or "all" and sums the
// sections across sites.
func (a *Assembler) BuildAllSites(ctx context.Context, name, selector string, defs []Definition, p query.Params) (*MultiSiteReport, error) {
	sites, err := site.Select(ctx, a.resolver, selector)
	if err != nil {
		return nil, err
	}

	perSite := make([][]Section, len(sites))
	summaries := make([]SiteSummary, len(sites))
	workers.Each(len(sites), a.sites, func(i int) {
		s := &sites[i]
		summaries[i] = SiteSummary{SiteCode: s.Code, SiteName: s.Name}
		if err := a.resolver.Ping(ctx, s); err != nil {
			a.logger.Warn().Err(err).Str("site", s.Code).Msg("site unreachable")
			perSite[i] = zeroSections(defs)
			summaries[i].ErrorCount = 1
			summaries[i].Error = err.Error()
			return
		}
		perSite[i] = a.buildSite(ctx, s, defs, p)
		summaries[i].ErrorCount = countErrors(perSite[i])
	})

	out := &MultiSiteReport{
		Sections:  mergeSections(defs, summaries, perSite),
		Sites:     summaries,
		SiteCount: len(sites),
		Period:    p,
	}
	codes := make([]string, len(sites))
	for i, s := range summaries {
		out.ErrorCount += s.ErrorCount
		codes[i] = s.SiteCode
	}
	a.notify(name, codes, p, out.ErrorCount)
	return out, nil
}

// mergeSections sums rows with the same label within each section. Rows
// keep the order they were first seen in, and rows new to a section go
// ahead of its trailing subtotal. Failed sections are skipped; a section
// that failed on every site becomes a single error row naming each site.
func mergeSections(defs []Definition, summaries []SiteSummary, perSite [][]Section) []Section {
	merged := make([]Section, len(defs))
	for i, def := range defs {
		merged[i] = newSection(def)
		merged[i].Rows = []Row{}
		index := map[string]int{}
		contributed := false
		var failures []string
		for k, sections := range perSite {
			if i >= len(sections) {
				continue
			}
			if sections[i].Error != "" {
				failures = append(failures, summaries[k].SiteCode+": "+sections[i].Error)
				continue
			}
			contributed = true
			for _, row := range sections[i].Rows {
				if row.Error != "" {
					continue
				}
				if j, ok := index[row.LabelEn]; ok {
					merged[i].Rows[j].add(row)
					continue
				}
				merged[i].Rows = insertRow(merged[i].Rows, row.clone(), index)
			}
		}
		if !contributed && len(failures) > 0 {
			msg := strings.Join(failures, "; ")
			merged[i].Rows = []Row{ErrorRow(msg)}
			merged[i].Error = msg
		}
	}
	return merged
}

func insertRow(rows []Row, row Row, index map[string]int) []Row {
	n := len(rows)
	if row.IsSubtotal || n == 0 || !rows[n-1].IsSubtotal {
		index[row.LabelEn] = n
		return append(rows, row)
	}
	rows = append(rows, Row{})
	copy(rows[n:], rows[n-1:n])
	rows[n-1] = row
	index[row.LabelEn] = n - 1
	index[rows[n].LabelEn] = n
	return rows
}

func (a *Assembler) notify(name string, sites []string, p query.Params, failed int) {
	events.Notify(a.publisher, a.logger, events.NewEvent(events.TypeReportGenerated, map[string]interface{}{
		"report":      name,
		"sites":       sites,
		"startDate":   p.StartDate,
		"endDate":     p.EndDate,
		"errorCount":  failed,
		"generatedAt": time.Now().UTC(),
	}))
}

// IsNotFound reports whether err means the site does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, site.ErrSiteNotFound)
}
