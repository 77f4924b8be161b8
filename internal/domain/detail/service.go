package detail

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/pkg/pagination"
)

// ShortCodes maps the indicator numbers shown on reports onto their
// detail templates.
var ShortCodes = map[string]string{
	"1":     "01_active_art_previous_details",
	"2":     "02_active_pre_art_previous_details",
	"3":     "03_newly_enrolled_details",
	"4":     "04_retested_positive_details",
	"5":     "05_newly_initiated_details",
	"5.1.1": "5.1.1_new_art_same_day_details",
	"5.1.2": "5.1.2_new_art_1_7_days_details",
	"5.1.3": "5.1.3_new_art_over_7_days_details",
	"6":     "06_transfer_in_details",
	"7":     "07_lost_and_return_details",
	"8.1":   "8.1_dead_details",
	"8.2":   "8.2_lost_to_followup_details",
	"8.3":   "8.3_transfer_out_details",
	"9":     "09_active_art_current_details",
	"10.1":  "10.1_eligible_mmd_details",
	"10.2":  "10.2_mmd_details",
	"10.3":  "10.3_tld_details",
	"10.4":  "10.4_tpt_start_details",
	"10.5":  "10.5_tpt_complete_details",
	"10.6":  "10.6_eligible_vl_test_details",
	"10.7":  "10.7_vl_tested_12m_details",
	"10.8":  "10.8_vl_suppression_details",
}

// ResolveID turns a short code or full id into a detail template id.
func ResolveID(catalog *query.Catalog, id string) (string, error) {
	id = strings.TrimSpace(id)
	if full, ok := ShortCodes[id]; ok && catalog.Has(full) {
		return full, nil
	}
	if catalog.Has(id) {
		return id, nil
	}
	if !strings.HasSuffix(id, "_details") && catalog.Has(id+"_details") {
		return id + "_details", nil
	}
	return "", fmt.Errorf("%w: %s", query.ErrTemplateNotFound, id)
}

// Page is one page of detail records.
type Page struct {
	IndicatorID string          `json:"indicatorId"`
	SiteCode    string          `json:"siteCode"`
	Data        []query.Record  `json:"data"`
	Pagination  pagination.Info `json:"pagination"`
}

// Service runs detail templates and pages through their rows.
type Service struct {
	catalog  *query.Catalog
	resolver site.Resolver
	logger   zerolog.Logger
}

func NewService(catalog *query.Catalog, resolver site.Resolver, logger zerolog.Logger) *Service {
	return &Service{catalog: catalog, resolver: resolver, logger: logger}
}

// Details runs the whole detail query once, then aliases, filters and
// pages the rows in memory. Totals count the filtered rows.
func (s *Service) Details(ctx context.Context, st *site.Site, id string, p query.Params, page pagination.Params, f Filter) (*Page, error) {
	full, err := ResolveID(s.catalog, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.catalog.Get(full)
	if err != nil {
		return nil, err
	}

	sql, args := query.Bind(tmpl.SQL, p, st.Placeholder())
	records, err := s.resolver.Query(ctx, st, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("detail %s on site %s: %w", full, st.Code, err)
	}

	ApplyAliases(records, aliasesFor(full))
	filtered := Apply(records, f)
	data, info := pagination.Slice(filtered, page)

	s.logger.Debug().
		Str("site", st.Code).
		Str("indicator", full).
		Int("rows", len(records)).
		Int("matched", len(filtered)).
		Msg("detail query")

	return &Page{
		IndicatorID: full,
		SiteCode:    st.Code,
		Data:        data,
		Pagination:  info,
	}, nil
}
