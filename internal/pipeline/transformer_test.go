package pipeline

import (
	"reflect"
	"testing"

	"github.com/lmendes/stock-etl/internal/model"
)

func rawBar(ts string, open, high, low, close, volume any) model.RawBar {
	return model.RawBar{
		Ticker: "X",
		TS:     ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
		Source: "rest",
	}
}

func TestTransformValid(t *testing.T) {
	tr := NewTransformer(false)
	ingested := mustTime("2024-01-05T00:00:00Z")

	bars, rejects := tr.Transform([]model.RawBar{
		rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, 11.0, 500.0),
	}, ingested)
	if len(rejects) != 0 {
		t.Fatalf("rejects = %v, want none", rejects)
	}
	if len(bars) != 1 {
		t.Fatalf("len(bars) = %d, want 1", len(bars))
	}

	b := bars[0]
	if b.Ticker != "X" {
		t.Errorf("Ticker = %q, want X", b.Ticker)
	}
	if !b.TS.Equal(mustTime("2024-01-02T09:30:00Z")) {
		t.Errorf("TS = %v, want 2024-01-02T09:30:00Z", b.TS)
	}
	if b.Open != 10 || b.High != 12 || b.Low != 9 || b.Close != 11 || b.Volume != 500 {
		t.Errorf("values = %+v, want them unchanged", b)
	}
	if !b.IngestedAt.Equal(ingested) {
		t.Errorf("IngestedAt = %v, want %v", b.IngestedAt, ingested)
	}
}

func TestTransformCoercion(t *testing.T) {
	tr := NewTransformer(false)

	t.Run("quoted numerics", func(t *testing.T) {
		bars, rejects := tr.Transform([]model.RawBar{
			rawBar("2024-01-02T09:30:00Z", "10.5", 12.0, 9.0, "11.25", "500"),
		}, mustTime("2024-01-05T00:00:00Z"))
		if len(rejects) != 0 {
			t.Fatalf("rejects = %v, want none", rejects)
		}
		if bars[0].Open != 10.5 || bars[0].Close != 11.25 || bars[0].Volume != 500 {
			t.Errorf("coerced values wrong: %+v", bars[0])
		}
	})

	t.Run("offset timestamp normalizes to UTC", func(t *testing.T) {
		bars, rejects := tr.Transform([]model.RawBar{
			rawBar("2024-01-02T04:30:00-05:00", 10.0, 12.0, 9.0, 11.0, 500.0),
		}, mustTime("2024-01-05T00:00:00Z"))
		if len(rejects) != 0 {
			t.Fatalf("rejects = %v, want none", rejects)
		}
		if !bars[0].TS.Equal(mustTime("2024-01-02T09:30:00Z")) {
			t.Errorf("TS = %v, want 09:30Z", bars[0].TS)
		}
		if bars[0].TS.Location().String() != "UTC" {
			t.Errorf("location = %v, want UTC", bars[0].TS.Location())
		}
	})
}

func TestTransformRejections(t *testing.T) {
	tr := NewTransformer(false)

	tests := []struct {
		name   string
		raw    model.RawBar
		reason string
	}{
		{
			name:   "open above high",
			raw:    rawBar("2024-01-02T09:30:00Z", 10.0, 9.0, 8.0, 9.0, 100.0),
			reason: "open outside [low, high]",
		},
		{
			name:   "high below low",
			raw:    rawBar("2024-01-02T09:30:00Z", 8.5, 8.0, 9.0, 8.5, 100.0),
			reason: "high < low",
		},
		{
			name:   "close below low",
			raw:    rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, 8.0, 100.0),
			reason: "close outside [low, high]",
		},
		{
			name:   "unparseable timestamp",
			raw:    rawBar("yesterday-ish", 10.0, 12.0, 9.0, 11.0, 100.0),
			reason: "unparseable timestamp",
		},
		{
			name:   "missing close",
			raw:    rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, nil, 100.0),
			reason: "close missing",
		},
		{
			name:   "non-numeric open",
			raw:    rawBar("2024-01-02T09:30:00Z", "ten", 12.0, 9.0, 11.0, 100.0),
			reason: "open non-numeric",
		},
		{
			name:   "boolean volume",
			raw:    rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, 11.0, true),
			reason: "volume non-numeric",
		},
		{
			name:   "negative volume",
			raw:    rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, 11.0, -5.0),
			reason: "negative volume",
		},
		{
			name:   "non-finite price",
			raw:    rawBar("2024-01-02T09:30:00Z", "NaN", 12.0, 9.0, 11.0, 100.0),
			reason: "open not finite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, rejects := tr.Transform([]model.RawBar{tt.raw}, mustTime("2024-01-05T00:00:00Z"))
			if len(bars) != 0 {
				t.Fatalf("bars = %v, want none", bars)
			}
			if len(rejects) != 1 {
				t.Fatalf("len(rejects) = %d, want 1", len(rejects))
			}
			if rejects[0].Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", rejects[0].Reason, tt.reason)
			}
		})
	}
}

func TestTransformDeterministic(t *testing.T) {
	tr := NewTransformer(false)
	raw := []model.RawBar{
		rawBar("2024-01-02T09:30:00Z", 10.0, 9.0, 8.0, 9.0, 100.0),
		rawBar("2024-01-02T10:30:00Z", 10.0, 12.0, 9.0, 11.0, 500.0),
	}

	ingested := mustTime("2024-01-05T00:00:00Z")
	first, firstRejects := tr.Transform(raw, ingested)
	second, secondRejects := tr.Transform(raw, ingested)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("bars differ between runs: %v vs %v", first, second)
	}

	if !reflect.DeepEqual(firstRejects, secondRejects) {
		t.Errorf("rejections differ between runs: %v vs %v", firstRejects, secondRejects)
	}
	if len(firstRejects) != 1 || firstRejects[0].Reason != "open outside [low, high]" {
		t.Errorf("rejects = %v, want exactly the invalid record", firstRejects)
	}
}

func TestTransformMixedBatch(t *testing.T) {
	tr := NewTransformer(false)

	bars, rejects := tr.Transform([]model.RawBar{
		rawBar("2024-01-02T09:30:00Z", 10.0, 12.0, 9.0, 11.0, 100.0),
		rawBar("bad", 10.0, 12.0, 9.0, 11.0, 100.0),
		rawBar("2024-01-02T11:30:00Z", 11.0, 13.0, 10.0, 12.0, 200.0),
	}, mustTime("2024-01-05T00:00:00Z"))

	// One rejection does not abort the batch.
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	if len(rejects) != 1 {
		t.Fatalf("len(rejects) = %d, want 1", len(rejects))
	}
	if rejects[0].TS != "bad" {
		t.Errorf("rejected TS = %q, want the malformed record", rejects[0].TS)
	}
}

func TestTransformSessionValidation(t *testing.T) {
	tr := NewTransformer(true)

	mk := func(ts string) model.RawBar {
		r := rawBar(ts, 10.0, 12.0, 9.0, 11.0, 100.0)
		r.Ticker = "AAPL"
		return r
	}

	// 14:30 ET on a regular trading Wednesday vs. the same clock time on
	// New Year's Day.
	bars, rejects := tr.Transform([]model.RawBar{
		mk("2024-01-03T19:30:00Z"),
		mk("2024-01-01T19:30:00Z"),
	}, mustTime("2024-01-05T00:00:00Z"))

	if len(bars) != 1 || !bars[0].TS.Equal(mustTime("2024-01-03T19:30:00Z")) {
		t.Fatalf("bars = %v, want only the in-session record", bars)
	}
	if len(rejects) != 1 || rejects[0].Reason != "outside trading session" {
		t.Fatalf("rejects = %v, want the holiday record", rejects)
	}
}

func TestTransformEmpty(t *testing.T) {
	tr := NewTransformer(false)
	bars, rejects := tr.Transform(nil, mustTime("2024-01-05T00:00:00Z"))
	if bars != nil || rejects != nil {
		t.Errorf("Transform(nil) = (%v, %v), want (nil, nil)", bars, rejects)
	}
}
