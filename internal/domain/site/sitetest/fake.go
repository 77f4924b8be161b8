// Package sitetest provides an in-memory site.Resolver for tests.
package sitetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
)

type rule struct {
	site     string
	contains string
	records  []query.Record
	err      error
}

// Resolver answers queries from canned rules and counts executions.
type Resolver struct {
	mu      sync.Mutex
	sites   []site.Site
	rules   []rule
	pingErr map[string]error
	queries []string
	args    [][]any
}

func NewResolver(sites ...site.Site) *Resolver {
	return &Resolver{sites: sites, pingErr: map[string]error{}}
}

// Respond returns records for any query containing substr, on every site.
func (r *Resolver) Respond(substr string, records ...query.Record) *Resolver {
	return r.RespondFor("", substr, records...)
}

// RespondFor returns records for queries containing substr on one site.
func (r *Resolver) RespondFor(code, substr string, records ...query.Record) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	if records == nil {
		records = []query.Record{}
	}
	r.rules = append(r.rules, rule{site: code, contains: substr, records: records})
	return r
}

// Fail makes queries containing substr return err.
func (r *Resolver) Fail(code, substr string, err error) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{site: code, contains: substr, err: err})
	return r
}

// Unreachable makes Ping fail for a site.
func (r *Resolver) Unreachable(code string, err error) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingErr[code] = err
	return r
}

func (r *Resolver) Site(_ context.Context, code string) (*site.Site, error) {
	if err := site.ValidateCode(code); err != nil {
		return nil, err
	}
	for _, s := range r.sites {
		if s.Code == code {
			found := s
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", site.ErrSiteNotFound, code)
}

func (r *Resolver) Sites(context.Context) ([]site.Site, error) {
	out := make([]site.Site, len(r.sites))
	copy(out, r.sites)
	return out, nil
}

func (r *Resolver) Query(_ context.Context, s *site.Site, sql string, args ...any) ([]query.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, sql)
	r.args = append(r.args, args)
	for _, rl := range r.rules {
		if rl.site != "" && rl.site != s.Code {
			continue
		}
		if !strings.Contains(sql, rl.contains) {
			continue
		}
		if rl.err != nil {
			return nil, rl.err
		}
		out := make([]query.Record, len(rl.records))
		for i, rec := range rl.records {
			cp := make(query.Record, len(rec))
			for k, v := range rec {
				cp[k] = v
			}
			out[i] = cp
		}
		return out, nil
	}
	return []query.Record{}, nil
}

func (r *Resolver) Ping(_ context.Context, s *site.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr[s.Code]
}

// Calls is the number of queries executed so far.
func (r *Resolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// LastArgs returns the bound arguments of the most recent query.
func (r *Resolver) LastArgs() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.args) == 0 {
		return nil
	}
	return r.args[len(r.args)-1]
}
