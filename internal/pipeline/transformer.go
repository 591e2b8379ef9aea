package pipeline

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/trading"
)

// Rejection records one discarded raw record and why. Rejections are
// reported, never fatal: a batch that loses every record is still a
// successful no-op.
type Rejection struct {
	TS     string
	Reason string
}

// Transformer validates raw observations into canonical bars. It is
// deterministic: the same raw record always validates the same way, so a
// backfill reproduces exactly what the scheduled run produced. Records are
// rejected rather than repaired; a silently corrected value could diverge
// between a scheduled run and a later backfill of the same timestamp.
type Transformer struct {
	validateSessions bool
}

// NewTransformer creates a Transformer. When validateSessions is set,
// records timestamped outside the ticker's exchange session are rejected.
func NewTransformer(validateSessions bool) *Transformer {
	return &Transformer{validateSessions: validateSessions}
}

// Transform validates a batch of raw records for a single ticker. Valid
// bars come back in input order next to the rejections that were dropped,
// each stamped with the caller's ingestion time.
func (t *Transformer) Transform(raw []model.RawBar, ingested time.Time) ([]model.Bar, []Rejection) {
	if len(raw) == 0 {
		return nil, nil
	}

	var cal *trading.Calendar
	if t.validateSessions {
		cal = trading.ForSymbol(raw[0].Ticker)
	}

	ingested = ingested.UTC()
	bars := make([]model.Bar, 0, len(raw))
	var rejects []Rejection

	for _, rec := range raw {
		bar, reason := transformOne(rec, cal)
		if reason != "" {
			rejects = append(rejects, Rejection{TS: rec.TS, Reason: reason})
			continue
		}
		bar.IngestedAt = ingested
		bars = append(bars, bar)
	}

	return bars, rejects
}

// transformOne validates a single record. The validation order is fixed:
// timestamp first, then numeric coercion, then price bounds, then the
// optional session check. An empty reason means the record passed.
func transformOne(rec model.RawBar, cal *trading.Calendar) (model.Bar, string) {
	ts, err := time.Parse(time.RFC3339, rec.TS)
	if err != nil {
		return model.Bar{}, "unparseable timestamp"
	}
	ts = ts.UTC()

	open, err := coerceFloat(rec.Open)
	if err != nil {
		return model.Bar{}, "open " + err.Error()
	}
	high, err := coerceFloat(rec.High)
	if err != nil {
		return model.Bar{}, "high " + err.Error()
	}
	low, err := coerceFloat(rec.Low)
	if err != nil {
		return model.Bar{}, "low " + err.Error()
	}
	closePx, err := coerceFloat(rec.Close)
	if err != nil {
		return model.Bar{}, "close " + err.Error()
	}
	volume, err := coerceVolume(rec.Volume)
	if err != nil {
		return model.Bar{}, "volume " + err.Error()
	}
	if volume < 0 {
		return model.Bar{}, "negative volume"
	}

	if high < low {
		return model.Bar{}, "high < low"
	}
	if open < low || open > high {
		return model.Bar{}, "open outside [low, high]"
	}
	if closePx < low || closePx > high {
		return model.Bar{}, "close outside [low, high]"
	}

	if cal != nil && !cal.IsOpenAt(ts) {
		return model.Bar{}, "outside trading session"
	}

	return model.Bar{
		Ticker: rec.Ticker,
		TS:     ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}, ""
}

// coerceFloat accepts the numeric shapes providers actually send: JSON
// numbers and quoted numbers. Everything else, including non-finite
// values, is an error.
func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, errors.New("not finite")
		}
		return x, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.New("non-numeric")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errors.New("not finite")
		}
		return f, nil
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, errors.New("non-numeric")
	}
}

func coerceVolume(v any) (int64, error) {
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
