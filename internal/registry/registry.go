// Package registry resolves the configured ticker set into per-ticker
// ingestion policy: effective first-run lookback and a provider rate
// limiter. Entries are immutable once built; a run works off one registry.
package registry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/lmendes/stock-etl/internal/config"
)

// Entry is one configured ticker with its resolved policy. Overrides from
// the ticker block win over provider and pipeline defaults.
type Entry struct {
	Symbol   string
	Lookback time.Duration

	limiter *rate.Limiter
}

// Wait blocks until the provider request budget for this ticker allows
// another call.
func (e *Entry) Wait(ctx context.Context) error {
	return e.limiter.Wait(ctx)
}

// Registry is the resolved ticker set for a run, in configuration order.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

// New builds a registry from validated configuration.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		entries: make(map[string]*Entry, len(cfg.Tickers)),
		order:   make([]string, 0, len(cfg.Tickers)),
	}

	for _, tc := range cfg.Tickers {
		lookback := time.Duration(tc.Lookback)
		if lookback == 0 {
			lookback = time.Duration(cfg.Pipeline.DefaultLookback)
		}
		rps := tc.MaxRPS
		if rps == 0 {
			rps = cfg.Provider.MaxRPS
		}

		r.entries[tc.Symbol] = &Entry{
			Symbol:   tc.Symbol,
			Lookback: lookback,
			limiter:  rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
		}
		r.order = append(r.order, tc.Symbol)
	}

	return r
}

// burstFor sizes the limiter burst so sub-1 RPS budgets still admit a
// single request immediately.
func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Get returns the entry for a symbol.
func (r *Registry) Get(symbol string) (*Entry, bool) {
	e, ok := r.entries[symbol]
	return e, ok
}

// List returns all entries in configuration order.
func (r *Registry) List() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, symbol := range r.order {
		out = append(out, r.entries[symbol])
	}
	return out
}

// Len returns the number of configured tickers.
func (r *Registry) Len() int {
	return len(r.order)
}
