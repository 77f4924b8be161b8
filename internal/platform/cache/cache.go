// Package cache holds report results between requests. Entries are opaque
// byte slices with a TTL; keys are namespaced per site so one site's
// results can be purged without touching the others.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an indicator result stays fresh.
const DefaultTTL = 300 * time.Second

// Store is a cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) int
	Clear(ctx context.Context)
}

// IndicatorKey builds the key of one (site, indicator, parameters) result.
func IndicatorKey(siteCode, indicatorID, paramsHash string) string {
	return fmt.Sprintf("site_%s_%s_%s", siteCode, indicatorID, paramsHash)
}

// SitePrefix is the prefix shared by every key of one site. The trailing
// separator keeps site "12" from matching site "120"; site codes never
// contain "_", so no other site's keys start with it.
func SitePrefix(siteCode string) string {
	return "site_" + siteCode + "_"
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store with lazy expiration.
type MemoryStore struct {
	entries map[string]*entry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get returns a live entry. Expired entries are deleted and reported as a miss.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores value under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{
		data:      value,
		expiresAt: s.now().Add(ttl),
	}
}

// DeletePrefix removes all keys beginning with prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Len returns the number of stored entries, live or not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup sweeps expired entries every interval until ctx is done.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.entries {
		if !now.Before(v.expiresAt) {
			delete(s.entries, k)
		}
	}
}
