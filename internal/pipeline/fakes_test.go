package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/provider"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func canonBar(ticker string, ts time.Time, close float64) model.Bar {
	return model.Bar{
		Ticker:     ticker,
		TS:         ts,
		Open:       close - 1,
		High:       close + 2,
		Low:        close - 2,
		Close:      close,
		Volume:     1000,
		IngestedAt: mustTime("2024-01-02T00:00:00Z"),
	}
}

// fakeStore is an in-memory Storage whose commits are all-or-nothing and
// can be made to fail on a chosen commit.
type fakeStore struct {
	mu         sync.Mutex
	bars       map[string]map[int64]model.Bar
	watermarks map[string]time.Time
	commits    int
	failOn     int // fail the Nth commit (1-based); 0 = never
	wmErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bars:       make(map[string]map[int64]model.Bar),
		watermarks: make(map[string]time.Time),
	}
}

func (f *fakeStore) Watermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wmErr != nil {
		return time.Time{}, false, f.wmErr
	}
	wm, ok := f.watermarks[ticker]
	return wm, ok, nil
}

func (f *fakeStore) CommitBars(ctx context.Context, ticker string, bars []model.Bar, advanceTo *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commits++
	if f.failOn > 0 && f.commits == f.failOn {
		return errors.New("store unavailable")
	}

	m := f.bars[ticker]
	if m == nil {
		m = make(map[int64]model.Bar)
		f.bars[ticker] = m
	}
	for _, b := range bars {
		m[b.TS.UnixMicro()] = b
	}

	if advanceTo != nil {
		if cur, ok := f.watermarks[ticker]; !ok || cur.Before(*advanceTo) {
			f.watermarks[ticker] = *advanceTo
		}
	}
	return nil
}

func (f *fakeStore) setWatermark(ticker string, wm time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks[ticker] = wm
}

func (f *fakeStore) watermark(ticker string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wm, ok := f.watermarks[ticker]
	return wm, ok
}

func (f *fakeStore) count(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bars[ticker])
}

func (f *fakeStore) bar(ticker string, ts time.Time) (model.Bar, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bars[ticker][ts.UnixMicro()]
	return b, ok
}

// fakeSource serves canned provider pages per ticker, in order, and
// records every request it got.
type fakeSource struct {
	mu    sync.Mutex
	pages map[string][]*provider.BarsResponse
	errs  map[string]error
	calls map[string]int
	opts  []provider.GetBarsOptions
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages: make(map[string][]*provider.BarsResponse),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) GetBars(ctx context.Context, symbol string, opts provider.GetBarsOptions) (*provider.BarsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[symbol]++
	f.opts = append(f.opts, opts)

	if err := f.errs[symbol]; err != nil {
		return nil, err
	}

	i := f.calls[symbol] - 1
	pages := f.pages[symbol]
	if i >= len(pages) {
		return &provider.BarsResponse{}, nil
	}
	return pages[i], nil
}

func (f *fakeSource) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type fakeGate struct {
	waits int
	err   error
}

func (g *fakeGate) Wait(ctx context.Context) error {
	g.waits++
	return g.err
}

type fakeEnricher struct {
	mu     sync.Mutex
	ranges map[string][]model.TimeRange
	err    error
}

func (e *fakeEnricher) EnrichRange(ctx context.Context, ticker string, covered model.TimeRange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ranges == nil {
		e.ranges = make(map[string][]model.TimeRange)
	}
	e.ranges[ticker] = append(e.ranges[ticker], covered)
	return e.err
}
