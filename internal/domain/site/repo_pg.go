package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type registryPG struct{ db queryable }

// NewRegistryPG reads sites from the registry database. db is usually a
// *pgxpool.Pool.
func NewRegistryPG(db queryable) Store {
	return &registryPG{db: db}
}

const siteCols = `code, name, province, type, driver, database_name, dsn`

func scanSite(row pgx.Row) (*Site, error) {
	var s Site
	err := row.Scan(&s.Code, &s.Name, &s.Province, &s.Type, &s.Driver, &s.Database, &s.DSN)
	return &s, err
}

func (r *registryPG) GetSite(ctx context.Context, code string) (*Site, error) {
	s, err := scanSite(r.db.QueryRow(ctx, `SELECT `+siteCols+` FROM sites WHERE code = $1 AND active`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("get site %s: %w", code, err)
	}
	return s, nil
}

func (r *registryPG) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := r.db.Query(ctx, `SELECT `+siteCols+` FROM sites WHERE active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *s)
	}
	return sites, rows.Err()
}

func (r *registryPG) UpsertSite(ctx context.Context, s *Site) error {
	if err := ValidateCode(s.Code); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO sites (code, name, province, type, driver, database_name, dsn, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE)
		ON CONFLICT (code) DO UPDATE SET name=EXCLUDED.name, province=EXCLUDED.province,
			type=EXCLUDED.type, driver=EXCLUDED.driver, database_name=EXCLUDED.database_name,
			dsn=EXCLUDED.dsn, active=TRUE, updated_at=NOW()`,
		s.Code, s.Name, s.Province, s.Type, s.Driver, s.Database, s.DSN)
	if err != nil {
		return fmt.Errorf("upsert site %s: %w", s.Code, err)
	}
	return nil
}
