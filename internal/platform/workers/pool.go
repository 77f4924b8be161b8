// Package workers bounds how many site queries a report has in flight.
package workers

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Limits bound concurrent work per report.
type Limits struct {
	Indicators     int
	SlowIndicators int
	Sites          int
}

// DefaultLimits matches the configuration defaults.
func DefaultLimits() Limits {
	return Limits{Indicators: 8, SlowIndicators: 2, Sites: 4}
}

// Normalized clamps every limit to at least one and keeps the slow limit
// within the overall one.
func (l Limits) Normalized() Limits {
	if l.Indicators < 1 {
		l.Indicators = 1
	}
	if l.SlowIndicators < 1 {
		l.SlowIndicators = 1
	}
	if l.SlowIndicators > l.Indicators {
		l.SlowIndicators = l.Indicators
	}
	if l.Sites < 1 {
		l.Sites = 1
	}
	return l
}

// Costed calls fn(i) for every task with at most limit running and at most
// slowLimit of the tasks flagged slow. Fast tasks are started first so
// cheap queries are not stuck behind long scans. fn writes its own result
// slot, so callers keep input order.
func Costed(ctx context.Context, slow []bool, limit, slowLimit int, fn func(ctx context.Context, i int)) {
	order := make([]int, len(slow))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return !slow[order[a]] && slow[order[b]]
	})

	gate := make(chan struct{}, max(slowLimit, 1))
	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for _, i := range order {
		i := i
		g.Go(func() error {
			if slow[i] {
				select {
				case gate <- struct{}{}:
					defer func() { <-gate }()
				case <-ctx.Done():
				}
			}
			fn(ctx, i)
			return nil
		})
	}
	g.Wait()
}

// Each calls fn(i) for i in [0,n) with at most limit in flight.
func Each(n, limit int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	g.Wait()
}
