package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"
)

// DatabasePlaceholder is replaced by a site's database name in a DSN template.
const DatabasePlaceholder = "{database}"

var (
	// ErrUnsupportedDriver is returned for a driver name that is not registered.
	ErrUnsupportedDriver = errors.New("unsupported site database driver")
	// ErrConnectionsClosed is returned by DB after Close.
	ErrConnectionsClosed = errors.New("site connections closed")
)

// SitePoolConfig tunes the *sql.DB opened for each site.
type SitePoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PingTimeout bounds the first ping of a newly opened site pool.
	PingTimeout time.Duration
	// RetryAfter is how long a site that failed to open keeps failing fast.
	// Zero retries on every call.
	RetryAfter time.Duration
}

// DefaultSitePoolConfig keeps a handful of warm connections per site.
func DefaultSitePoolConfig() SitePoolConfig {
	return SitePoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 60 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
		RetryAfter:      30 * time.Second,
	}
}

// ExpandDSN substitutes the database name into a DSN template. A template
// without the placeholder is returned unchanged.
func ExpandDSN(template, database string) string {
	return strings.ReplaceAll(template, DatabasePlaceholder, database)
}

// DriverName maps configuration aliases onto registered database/sql drivers.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql", "mariadb":
		return "mysql", nil
	case "pgx", "postgres", "postgresql":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// normalizeDSN forces options every site connection relies on. MySQL DATE
// columns must scan as time.Time so dates survive into JSON unchanged.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != "mysql" {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// SiteConnections lazily opens and caches one *sql.DB per site. Opening a
// site never holds the lock, so a dead site cannot stall lookups of sites
// that are already open.
type SiteConnections struct {
	cfg    SitePoolConfig
	mu     sync.RWMutex
	dbs    map[string]*sql.DB
	failed map[string]openFailure
	closed bool
	group  singleflight.Group
	open   func(driver, dsn string) (*sql.DB, error)
	now    func() time.Time
}

type openFailure struct {
	err   error
	until time.Time
}

func NewSiteConnections(cfg SitePoolConfig) *SiteConnections {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &SiteConnections{
		cfg:    cfg,
		dbs:    make(map[string]*sql.DB),
		failed: make(map[string]openFailure),
		open:   sql.Open,
		now:    time.Now,
	}
}

// DB returns the pool for key, opening it on first use. Concurrent callers
// for the same key share one open attempt. A failed open is remembered for
// RetryAfter so later calls fail without dialing again.
func (s *SiteConnections) DB(ctx context.Context, key, driver, dsn string) (*sql.DB, error) {
	s.mu.RLock()
	db, ok := s.dbs[key]
	f, failed := s.failed[key]
	closed := s.closed
	s.mu.RUnlock()

	switch {
	case ok:
		return db, nil
	case closed:
		return nil, ErrConnectionsClosed
	case failed && s.now().Before(f.until):
		return nil, f.err
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		db, ok := s.dbs[key]
		s.mu.RUnlock()
		if ok {
			return db, nil
		}

		db, err := s.connect(ctx, key, driver, dsn)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if ctx.Err() == nil && s.cfg.RetryAfter > 0 {
				s.failed[key] = openFailure{err: err, until: s.now().Add(s.cfg.RetryAfter)}
			}
			return nil, err
		}
		if s.closed {
			db.Close()
			return nil, ErrConnectionsClosed
		}
		delete(s.failed, key)
		s.dbs[key] = db
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (s *SiteConnections) connect(ctx context.Context, key, driver, dsn string) (*sql.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = normalizeDSN(name, dsn)
	if err != nil {
		return nil, err
	}
	db, err := s.open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open site database %s: %w", key, err)
	}
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(s.cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping site database %s: %w", key, err)
	}
	return db, nil
}

// Forget closes and drops the pool for key so the next call reconnects.
func (s *SiteConnections) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok {
		db.Close()
		delete(s.dbs, key)
	}
	delete(s.failed, key)
}

// Close closes every open site pool. Later calls to DB fail.
func (s *SiteConnections) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	for key, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		delete(s.dbs, key)
	}
	return errors.Join(errs...)
}

// SitePoolStats is the connection usage of one site pool.
type SitePoolStats struct {
	Site            string `json:"site"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
}

// Stats reports every open pool, ordered by key.
func (s *SiteConnections) Stats() []SitePoolStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SitePoolStats, 0, len(s.dbs))
	for key, db := range s.dbs {
		st := db.Stats()
		out = append(out, SitePoolStats{
			Site:            key,
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// QueryRecords runs a query and returns each row as a column-name map.
// Driver byte slices are converted to strings.
func QueryRecords(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if records == nil {
		records = []map[string]any{}
	}
	return records, nil
}
