package analytics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
)

type fakeMetricStore struct {
	bars     []model.Bar // ascending by TS
	upserted []model.BarMetric
	readErr  error
	writeErr error
}

func (f *fakeMetricStore) BarsBetween(ctx context.Context, ticker string, r model.TimeRange) ([]model.Bar, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []model.Bar
	for _, b := range f.bars {
		if r.Contains(b.TS) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeMetricStore) BarsBefore(ctx context.Context, ticker string, t time.Time, limit int) ([]model.Bar, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []model.Bar
	for _, b := range f.bars {
		if b.TS.Before(t) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMetricStore) UpsertMetrics(ctx context.Context, metrics []model.BarMetric) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.upserted = append(f.upserted, metrics...)
	return nil
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func closeBar(ts time.Time, close float64) model.Bar {
	return model.Bar{Ticker: "AAPL", TS: ts, Close: close}
}

func dailyBars(start time.Time, closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = closeBar(start.Add(time.Duration(i)*24*time.Hour), c)
	}
	return bars
}

func wholeRange(bars []model.Bar) model.TimeRange {
	return model.TimeRange{
		Start: bars[0].TS,
		End:   bars[len(bars)-1].TS.Add(time.Second),
	}
}

func TestEnrichReturns(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	store := &fakeMetricStore{bars: dailyBars(base, 100, 102, 99.96)}
	eng := NewEngine(store, 30, nil)

	if err := eng.EnrichRange(context.Background(), "AAPL", wholeRange(store.bars)); err != nil {
		t.Fatalf("EnrichRange: %v", err)
	}
	if len(store.upserted) != 3 {
		t.Fatalf("upserted %d rows, want 3", len(store.upserted))
	}

	m0, m1, m2 := store.upserted[0], store.upserted[1], store.upserted[2]

	if m0.DailyReturn != nil {
		t.Errorf("first bar return = %v, want nil (no predecessor)", *m0.DailyReturn)
	}
	if m1.DailyReturn == nil || math.Abs(*m1.DailyReturn-2.0) > 1e-9 {
		t.Errorf("second bar return = %v, want 2.0", m1.DailyReturn)
	}
	if m2.DailyReturn == nil || math.Abs(*m2.DailyReturn-(-2.0)) > 1e-9 {
		t.Errorf("third bar return = %v, want -2.0", m2.DailyReturn)
	}

	// Volatility needs two returns: nil, nil, then stddev({2, -2}).
	if m0.RollingVol != nil || m1.RollingVol != nil {
		t.Errorf("early vols = %v, %v, want nil", m0.RollingVol, m1.RollingVol)
	}
	want := math.Sqrt(8) // mean 0, squared deviations 4+4, ddof 1
	if m2.RollingVol == nil || math.Abs(*m2.RollingVol-want) > 1e-9 {
		t.Errorf("third bar vol = %v, want %v", m2.RollingVol, want)
	}
}

func TestEnrichWarmup(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	store := &fakeMetricStore{bars: dailyBars(base, 100, 110, 99, 108.9)}
	eng := NewEngine(store, 30, nil)

	// Cover only the last two bars; the first two are prior history.
	covered := model.TimeRange{
		Start: store.bars[2].TS,
		End:   store.bars[3].TS.Add(time.Second),
	}
	if err := eng.EnrichRange(context.Background(), "AAPL", covered); err != nil {
		t.Fatalf("EnrichRange: %v", err)
	}

	// Only covered bars are rewritten.
	if len(store.upserted) != 2 {
		t.Fatalf("upserted %d rows, want 2", len(store.upserted))
	}
	if !store.upserted[0].TS.Equal(store.bars[2].TS) {
		t.Errorf("first upserted TS = %v, want %v", store.upserted[0].TS, store.bars[2].TS)
	}

	// The first covered bar's return is computed against warm-up history.
	r := store.upserted[0].DailyReturn
	if r == nil || math.Abs(*r-(-10.0)) > 1e-9 {
		t.Errorf("return = %v, want -10 (99 vs 110)", r)
	}

	// Its volatility sees the warm-up return too: stddev({10, -10}).
	v := store.upserted[0].RollingVol
	want := math.Sqrt(200)
	if v == nil || math.Abs(*v-want) > 1e-9 {
		t.Errorf("vol = %v, want %v", v, want)
	}
}

func TestEnrichWindowSlides(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	store := &fakeMetricStore{bars: dailyBars(base, 100, 110, 99, 108.9)}
	eng := NewEngine(store, 2, nil)

	if err := eng.EnrichRange(context.Background(), "AAPL", wholeRange(store.bars)); err != nil {
		t.Fatalf("EnrichRange: %v", err)
	}

	// Returns are 10, -10, 10. With a window of 2 the last bar sees only
	// {-10, 10}, not all three.
	v := store.upserted[3].RollingVol
	want := math.Sqrt(200)
	if v == nil || math.Abs(*v-want) > 1e-9 {
		t.Errorf("windowed vol = %v, want %v", v, want)
	}
}

func TestEnrichZeroClose(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	store := &fakeMetricStore{bars: dailyBars(base, 0, 100)}
	eng := NewEngine(store, 30, nil)

	if err := eng.EnrichRange(context.Background(), "AAPL", wholeRange(store.bars)); err != nil {
		t.Fatalf("EnrichRange: %v", err)
	}

	// A zero predecessor close has no defined return.
	if r := store.upserted[1].DailyReturn; r != nil {
		t.Errorf("return after zero close = %v, want nil", *r)
	}
}

func TestEnrichDeterministic(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	bars := dailyBars(base, 100, 110, 99, 108.9, 103.4)

	full := &fakeMetricStore{bars: bars}
	if err := NewEngine(full, 30, nil).EnrichRange(context.Background(), "AAPL", wholeRange(bars)); err != nil {
		t.Fatalf("full EnrichRange: %v", err)
	}

	// Enrich the same data as two consecutive covered ranges.
	split := &fakeMetricStore{bars: bars}
	eng := NewEngine(split, 30, nil)
	firstHalf := model.TimeRange{Start: bars[0].TS, End: bars[3].TS}
	secondHalf := model.TimeRange{Start: bars[3].TS, End: bars[4].TS.Add(time.Second)}
	if err := eng.EnrichRange(context.Background(), "AAPL", firstHalf); err != nil {
		t.Fatalf("first EnrichRange: %v", err)
	}
	if err := eng.EnrichRange(context.Background(), "AAPL", secondHalf); err != nil {
		t.Fatalf("second EnrichRange: %v", err)
	}

	if len(full.upserted) != len(split.upserted) {
		t.Fatalf("row counts differ: %d vs %d", len(full.upserted), len(split.upserted))
	}
	for i := range full.upserted {
		a, b := full.upserted[i], split.upserted[i]
		if !metricEqual(a.DailyReturn, b.DailyReturn) || !metricEqual(a.RollingVol, b.RollingVol) {
			t.Errorf("row %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func metricEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return math.Abs(*a-*b) < 1e-9
}

func TestEnrichEmpty(t *testing.T) {
	store := &fakeMetricStore{}
	eng := NewEngine(store, 30, nil)

	if err := eng.EnrichRange(context.Background(), "AAPL", model.TimeRange{}); err != nil {
		t.Fatalf("empty range: %v", err)
	}
	covered := model.TimeRange{
		Start: mustTime("2024-01-01T00:00:00Z"),
		End:   mustTime("2024-01-02T00:00:00Z"),
	}
	if err := eng.EnrichRange(context.Background(), "AAPL", covered); err != nil {
		t.Fatalf("no bars in range: %v", err)
	}
	if len(store.upserted) != 0 {
		t.Errorf("upserted %d rows, want 0", len(store.upserted))
	}
}

func TestEnrichStoreErrors(t *testing.T) {
	base := mustTime("2024-01-01T00:00:00Z")
	covered := model.TimeRange{Start: base, End: base.Add(48 * time.Hour)}

	readBroken := &fakeMetricStore{readErr: errors.New("pool exhausted")}
	if err := NewEngine(readBroken, 30, nil).EnrichRange(context.Background(), "AAPL", covered); err == nil {
		t.Error("read failure should propagate")
	}

	writeBroken := &fakeMetricStore{
		bars:     dailyBars(base, 100, 101),
		writeErr: errors.New("pool exhausted"),
	}
	if err := NewEngine(writeBroken, 30, nil).EnrichRange(context.Background(), "AAPL", covered); err == nil {
		t.Error("write failure should propagate")
	}
}
