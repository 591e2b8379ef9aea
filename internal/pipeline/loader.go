package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
)

// LoadResult reports what one load committed.
type LoadResult struct {
	Loaded    int
	Advanced  bool
	Watermark time.Time // Final watermark target; meaningful when Advanced
}

// Loader commits canonical bars in bounded chunks. Every chunk is an
// atomic upsert-plus-watermark transaction, so a crash between chunks
// leaves the watermark at a point from which the remainder is refetched
// rather than skipped.
type Loader struct {
	store     Storage
	chunkSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader committing at most chunkSize rows per
// transaction.
func NewLoader(store Storage, chunkSize int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Loader{store: store, chunkSize: chunkSize, logger: logger}
}

// Load upserts bars and advances the ticker's watermark to covered.End.
//
// The watermark moves only when this load's coverage connects to the
// current watermark and extends beyond it. A first commit always advances;
// a covered range starting past the watermark would leave a hole, so the
// watermark stays put and the gap is retried next run. Backfills entirely
// behind the watermark upsert without touching it.
func (l *Loader) Load(ctx context.Context, ticker string, bars []model.Bar, covered model.TimeRange) (LoadResult, error) {
	var res LoadResult

	wm, ok, err := l.store.Watermark(ctx, ticker)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", ticker, err)
	}

	advance := !covered.IsEmpty() &&
		(!ok || (!covered.Start.After(wm) && covered.End.After(wm)))

	bars = sortAndDedupe(bars)

	if len(bars) == 0 {
		// Nothing to store, but covered time was still served; committing
		// the watermark alone keeps the range from being refetched forever.
		if advance {
			if err := l.store.CommitBars(ctx, ticker, nil, &covered.End); err != nil {
				return res, fmt.Errorf("load %s: %w", ticker, err)
			}
			res.Advanced = true
			res.Watermark = covered.End
		}
		return res, nil
	}

	for start := 0; start < len(bars); start += l.chunkSize {
		end := min(start+l.chunkSize, len(bars))
		chunk := bars[start:end]

		// A non-final chunk claims time only up to the next known bar.
		var target time.Time
		if end < len(bars) && bars[end].TS.Before(covered.End) {
			target = bars[end].TS
		} else {
			target = covered.End
		}

		var advanceTo *time.Time
		if advance {
			advanceTo = &target
		}

		if err := l.store.CommitBars(ctx, ticker, chunk, advanceTo); err != nil {
			return res, fmt.Errorf("load %s: %w", ticker, err)
		}
		res.Loaded += len(chunk)
	}

	if advance {
		res.Advanced = true
		res.Watermark = covered.End
	}

	l.logger.Debug("load committed",
		"ticker", ticker,
		"records", res.Loaded,
		"advanced", res.Advanced,
	)

	return res, nil
}

// sortAndDedupe orders bars by timestamp and collapses duplicate
// timestamps to the last occurrence, matching the upsert's last-write-wins
// behavior.
func sortAndDedupe(bars []model.Bar) []model.Bar {
	if len(bars) < 2 {
		return bars
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })

	out := make([]model.Bar, 0, len(bars))
	for i, b := range bars {
		if i+1 < len(bars) && bars[i+1].TS.Equal(b.TS) {
			continue
		}
		out = append(out, b)
	}
	return out
}
