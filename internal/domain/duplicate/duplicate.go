package duplicate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/workers"
	"github.com/dara-tech/preartweb/pkg/pagination"
)

// Column names of a duplicate row.
const (
	FieldSiteCode       = "site_code"
	FieldSiteName       = "site_name"
	FieldARTNumber      = "art_number"
	FieldDuplicateCount = "duplicate_count"
)

var searchFields = []string{
	FieldARTNumber, "clinic_id", "patient_name", "idpoor_number", FieldSiteCode, FieldSiteName,
}

// Report is one page of patients whose ART number appears more than once.
type Report struct {
	Data        []query.Record `json:"data"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	TotalPages  int            `json:"totalPages"`
	Period      query.Params   `json:"period"`
	SiteID      string         `json:"siteId"`
	FailedSites []string       `json:"failedSites,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type Service struct {
	resolver site.Resolver
	sites    int
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(resolver site.Resolver, limits workers.Limits, logger zerolog.Logger) *Service {
	return &Service{
		resolver: resolver,
		sites:    limits.Normalized().Sites,
		logger:   logger,
		now:      time.Now,
	}
}

// Report collects active IDpoor patients from every selected site, keeps
// those sharing an ART number, then searches and pages the result. A site
// that fails is skipped.
func (s *Service) Report(ctx context.Context, selector string, p query.Params, page pagination.Params, search string) (*Report, error) {
	sites, err := site.Select(ctx, s.resolver, selector)
	if err != nil {
		return nil, err
	}

	perSite := make([][]query.Record, len(sites))
	var mu sync.Mutex
	var failed []string
	workers.Each(len(sites), s.sites, func(i int) {
		records, err := s.collect(ctx, &sites[i], p)
		if err != nil {
			s.logger.Warn().Err(err).Str("site", sites[i].Code).Msg("duplicate scan skipped site")
			mu.Lock()
			failed = append(failed, sites[i].Code)
			mu.Unlock()
			return
		}
		perSite[i] = records
	})

	var all []query.Record
	for _, records := range perSite {
		all = append(all, records...)
	}
	dups := Search(Group(all), search)
	data, info := pagination.Slice(dups, page)
	sort.Strings(failed)

	siteID := selector
	if siteID == "" {
		siteID = site.AllSites
	}
	return &Report{
		Data:        data,
		Total:       info.Total,
		Page:        info.Page,
		PageSize:    info.PageSize,
		TotalPages:  info.TotalPages,
		Period:      p,
		SiteID:      siteID,
		FailedSites: failed,
		Timestamp:   s.now().UTC(),
	}, nil
}

func (s *Service) collect(ctx context.Context, st *site.Site, p query.Params) ([]query.Record, error) {
	if err := s.resolver.Ping(ctx, st); err != nil {
		return nil, err
	}
	sql, args := query.Bind(activeIDPoorSQL, p.With("siteCode", st.Code), st.Placeholder())
	records, err := s.resolver.Query(ctx, st, sql, args...)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec[FieldSiteCode] = st.Code
		rec[FieldSiteName] = st.Name
	}
	return records, nil
}

func artNumber(rec query.Record) string {
	return strings.TrimSpace(query.Text(rec[FieldARTNumber]))
}

// Group keeps every record whose ART number is shared with another record
// and annotates it with the group size. Records without an ART number are
// dropped. The result is ordered by ART number, then site code.
func Group(records []query.Record) []query.Record {
	counts := make(map[string]int, len(records))
	for _, rec := range records {
		if n := artNumber(rec); n != "" {
			counts[n]++
		}
	}

	out := make([]query.Record, 0)
	for _, rec := range records {
		n := artNumber(rec)
		if n == "" || counts[n] < 2 {
			continue
		}
		rec[FieldDuplicateCount] = counts[n]
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := artNumber(out[i]), artNumber(out[j])
		if a != b {
			return a < b
		}
		return query.Text(out[i][FieldSiteCode]) < query.Text(out[j][FieldSiteCode])
	})
	return out
}

// Search keeps records with term in any searchable column, ignoring case.
func Search(records []query.Record, term string) []query.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}
	out := make([]query.Record, 0, len(records))
	for _, rec := range records {
		for _, f := range searchFields {
			if strings.Contains(strings.ToLower(query.Text(rec[f])), term) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
