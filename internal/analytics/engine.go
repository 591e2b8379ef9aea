// Package analytics derives per-bar metrics from committed bars: the
// percent daily return and a rolling sample volatility of those returns.
// It runs after a load commits and rewrites metrics only for the bars
// the load covered, reading back just enough history to seed the window.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
)

// DefaultWindow is the rolling volatility window, in bars.
const DefaultWindow = 30

// MetricStore is the slice of the bar store the engine reads and writes.
type MetricStore interface {
	BarsBetween(ctx context.Context, ticker string, r model.TimeRange) ([]model.Bar, error)
	BarsBefore(ctx context.Context, ticker string, t time.Time, limit int) ([]model.Bar, error)
	UpsertMetrics(ctx context.Context, metrics []model.BarMetric) error
}

// Engine recomputes derived metrics over freshly loaded ranges.
type Engine struct {
	store  MetricStore
	window int
	logger *slog.Logger
}

// NewEngine creates an Engine. A window below 2 cannot produce a sample
// deviation and falls back to DefaultWindow.
func NewEngine(store MetricStore, window int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if window < 2 {
		window = DefaultWindow
	}
	return &Engine{store: store, window: window, logger: logger}
}

// EnrichRange recomputes metrics for every bar inside covered. Bars before
// the range are read back as warm-up so the first in-range bar sees the
// same history it would in a full recomputation, which keeps the metrics
// identical whether the range arrived incrementally or as a backfill.
func (e *Engine) EnrichRange(ctx context.Context, ticker string, covered model.TimeRange) error {
	if covered.IsEmpty() {
		return nil
	}

	// One extra bar beyond the window so the oldest warm-up return has
	// the predecessor it is computed against.
	warm, err := e.store.BarsBefore(ctx, ticker, covered.Start, e.window+1)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", ticker, err)
	}
	inRange, err := e.store.BarsBetween(ctx, ticker, covered)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", ticker, err)
	}
	if len(inRange) == 0 {
		return nil
	}

	bars := make([]model.Bar, 0, len(warm)+len(inRange))
	bars = append(bars, warm...)
	bars = append(bars, inRange...)

	metrics := computeMetrics(bars, e.window)[len(warm):]
	if err := e.store.UpsertMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("enrich %s: %w", ticker, err)
	}

	e.logger.Debug("metrics enriched",
		"ticker", ticker,
		"rows", len(metrics),
		"warmup", len(warm),
	)
	return nil
}

// computeMetrics walks bars in timestamp order and derives, per bar, the
// percent return against the previous close and the sample deviation of
// the non-nil returns in the trailing window. A metric that cannot be
// computed finitely stays nil rather than poisoning the row.
func computeMetrics(bars []model.Bar, window int) []model.BarMetric {
	metrics := make([]model.BarMetric, len(bars))
	returns := make([]*float64, len(bars))

	for i, b := range bars {
		metrics[i] = model.BarMetric{Ticker: b.Ticker, TS: b.TS}

		if i > 0 {
			if prev := bars[i-1].Close; prev != 0 {
				r := 100 * (b.Close - prev) / prev
				if !math.IsNaN(r) && !math.IsInf(r, 0) {
					returns[i] = &r
					metrics[i].DailyReturn = &r
				}
			}
		}

		if v, ok := trailingStddev(returns, i, window); ok {
			metrics[i].RollingVol = &v
		}
	}
	return metrics
}

// trailingStddev computes the sample standard deviation of the known
// returns in the window of bars ending at index i. It needs at least two
// observations.
func trailingStddev(returns []*float64, i, window int) (float64, bool) {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}

	var xs []float64
	for j := lo; j <= i; j++ {
		if returns[j] != nil {
			xs = append(xs, *returns[j])
		}
	}
	if len(xs) < 2 {
		return 0, false
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)-1))
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0, false
	}
	return sd, true
}
