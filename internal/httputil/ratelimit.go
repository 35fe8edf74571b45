// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRates is the canonical calls-per-second table for the external
// APIs. arXiv is strict: one call every ten seconds.
var DefaultRates = map[string]float64{
	"arxiv":    0.1,
	"crossref": 1.0,
	"openalex": 5.0,
	"epmc":     2.0,
	"pubmed":   3.0,
	"s2":       5.0,
	"unpaywall": 5.0,
	"preprints": 2.0,
}

// defaultRate applies to sources absent from the table.
const defaultRate = 1.0

// Limiters is a registry of per-source token buckets. Each limiter enforces
// a minimum interval between acquisitions; two callers hitting the same
// source observe that source's rate regardless of concurrency. A single OS
// mutex guards lazy creation, which is sufficient in a thread-parallel
// runtime.
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]float64
}

// NewLimiters builds a registry from the rate table. Passing nil selects
// DefaultRates; entries in overrides replace table values.
func NewLimiters(overrides map[string]float64) *Limiters {
	rates := make(map[string]float64, len(DefaultRates))
	for k, v := range DefaultRates {
		rates[k] = v
	}
	for k, v := range overrides {
		rates[k] = v
	}
	return &Limiters{
		limiters: make(map[string]*rate.Limiter),
		rates:    rates,
	}
}

// Acquire blocks until the named source's bucket permits a call, or until
// ctx is done. Unknown sources share the conservative default rate under
// their own name.
func (l *Limiters) Acquire(ctx context.Context, source string) error {
	return l.get(source).Wait(ctx)
}

func (l *Limiters) get(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[source]; ok {
		return lim
	}
	cps, ok := l.rates[source]
	if !ok {
		cps = defaultRate
	}
	lim := rate.NewLimiter(rate.Limit(cps), 1)
	l.limiters[source] = lim
	return lim
}
