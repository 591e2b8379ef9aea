package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
)

// Storage is the slice of the durable store the pipeline touches.
type Storage interface {
	Watermark(ctx context.Context, ticker string) (time.Time, bool, error)
	CommitBars(ctx context.Context, ticker string, bars []model.Bar, advanceTo *time.Time) error
}

// Resolver computes the time range one ticker should ingest.
type Resolver struct {
	store    Storage
	boundary time.Duration
}

// NewResolver creates a Resolver. boundary is the scheduling granularity:
// range ends are floored to it so a window whose bars are still forming is
// never requested.
func NewResolver(store Storage, boundary time.Duration) *Resolver {
	return &Resolver{store: store, boundary: boundary}
}

// Resolve returns the half-open range to ingest for one ticker. An empty
// range means the ticker is already up to date and the caller should treat
// the run as a successful no-op.
//
// Incremental mode resolves [watermark, now_floor), falling back to
// [now_floor-lookback, now_floor) when the ticker has never committed.
// Backfill mode returns the requested range verbatim; the loader's
// advancement rules keep it from regressing the live watermark.
func (r *Resolver) Resolve(ctx context.Context, ticker string, req model.RunRequest, now time.Time, lookback time.Duration) (model.TimeRange, error) {
	if req.Mode == model.ModeBackfill {
		b := req.Backfill
		return model.TimeRange{Start: b.Start.UTC(), End: b.End.UTC()}, nil
	}

	nowFloor := now.UTC().Truncate(r.boundary)

	start, ok, err := r.store.Watermark(ctx, ticker)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	if !ok {
		start = nowFloor.Add(-lookback)
	}

	return model.TimeRange{Start: start, End: nowFloor}, nil
}
