package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/provider"
)

// BarSource is the provider surface the extractor consumes.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, opts provider.GetBarsOptions) (*provider.BarsResponse, error)
}

// Gate bounds the provider request rate. Wait blocks until the next call
// may proceed.
type Gate interface {
	Wait(ctx context.Context) error
}

// Extraction is everything one extraction pass produced: the raw records in
// provider order and the sub-range of the request the provider actually
// covered. Watermarks must advance no further than Covered.End.
type Extraction struct {
	Raw     []model.RawBar
	Covered model.TimeRange
}

// Extractor pulls raw observations from the provider, traversing all pages
// before signaling completion. It keeps no state across calls, so a failed
// extraction is simply re-run.
type Extractor struct {
	source   BarSource
	pageSize int
	logger   *slog.Logger
}

// NewExtractor creates an Extractor requesting pageSize records per page.
func NewExtractor(source BarSource, pageSize int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, pageSize: pageSize, logger: logger}
}

// Extract fetches all raw records for ticker in r. gate is consulted before
// every page request; it may be nil. The returned coverage defaults to the
// full requested range and narrows to whatever the provider reports.
func (e *Extractor) Extract(ctx context.Context, ticker string, r model.TimeRange, gate Gate) (*Extraction, error) {
	start := time.Now()

	ext := &Extraction{Covered: r}
	cursor := ""
	pages := 0

	for {
		if gate != nil {
			if err := gate.Wait(ctx); err != nil {
				return nil, fmt.Errorf("extract %s: %w", ticker, err)
			}
		}

		resp, err := e.source.GetBars(ctx, ticker, provider.GetBarsOptions{
			Start:  r.Start,
			End:    r.End,
			Limit:  e.pageSize,
			Cursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", ticker, err)
		}
		pages++

		for i := range resp.Bars {
			ext.Raw = append(ext.Raw, resp.Bars[i].ToRaw(ticker))
		}

		// A page that reports coverage speaks for the whole query; the
		// last report wins, clamped to what was requested.
		if resp.Covered != nil {
			rep, err := resp.Covered.ToRange()
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", ticker, err)
			}
			ext.Covered = r.Intersect(rep)
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	e.logger.Debug("extraction complete",
		"ticker", ticker,
		"records", len(ext.Raw),
		"pages", pages,
		"covered", ext.Covered.String(),
		"duration", time.Since(start),
	)

	return ext, nil
}
