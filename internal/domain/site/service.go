package site

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/platform/db"
)

// Resolver maps site codes to metadata and runs SQL on a site's database.
type Resolver interface {
	Site(ctx context.Context, code string) (*Site, error)
	Sites(ctx context.Context) ([]Site, error)
	// Query runs sql against the site and returns the first result set.
	Query(ctx context.Context, s *Site, sql string, args ...any) ([]query.Record, error)
	// Ping opens the site connection, failing fast when the database is down.
	Ping(ctx context.Context, s *Site) error
}

// Service resolves sites from a Registry and routes queries through
// per-site connection pools.
type Service struct {
	registry      Registry
	conns         *db.SiteConnections
	defaultDriver string
	dsnTemplate   string
	logger        zerolog.Logger
}

func NewService(registry Registry, conns *db.SiteConnections, defaultDriver, dsnTemplate string, logger zerolog.Logger) *Service {
	return &Service{
		registry:      registry,
		conns:         conns,
		defaultDriver: defaultDriver,
		dsnTemplate:   dsnTemplate,
		logger:        logger,
	}
}

// withDefaults fills the driver and DSN a site inherits from configuration.
func (s *Service) withDefaults(site Site) Site {
	if site.Driver == "" {
		site.Driver = s.defaultDriver
	}
	if site.DSN == "" {
		site.DSN = db.ExpandDSN(s.dsnTemplate, site.DatabaseName())
	}
	return site
}

func (s *Service) Site(ctx context.Context, code string) (*Site, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	site, err := s.registry.GetSite(ctx, code)
	if err != nil {
		return nil, err
	}
	resolved := s.withDefaults(*site)
	return &resolved, nil
}

func (s *Service) Sites(ctx context.Context) ([]Site, error) {
	sites, err := s.registry.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		sites[i] = s.withDefaults(sites[i])
	}
	return sites, nil
}

func (s *Service) Query(ctx context.Context, site *Site, sql string, args ...any) ([]query.Record, error) {
	conn, err := s.conns.DB(ctx, site.Code, site.Driver, site.DSN)
	if err != nil {
		return nil, err
	}
	records, err := db.QueryRecords(ctx, conn, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Code, err)
	}
	return records, nil
}

func (s *Service) Ping(ctx context.Context, site *Site) error {
	_, err := s.conns.DB(ctx, site.Code, site.Driver, site.DSN)
	return err
}

// Select expands a site selector: "all" or empty means every registered
// site, anything else is a single code that must exist.
func Select(ctx context.Context, r Resolver, selector string) ([]Site, error) {
	if selector == "" || selector == AllSites {
		return r.Sites(ctx)
	}
	s, err := r.Site(ctx, selector)
	if err != nil {
		return nil, err
	}
	return []Site{*s}, nil
}
