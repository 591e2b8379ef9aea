package model

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Time Ranges
// -----------------------------------------------------------------------------

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsEmpty reports whether the range contains no time at all (Start >= End).
func (r TimeRange) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// Intersect returns the overlap of r and other. The result is empty when the
// two ranges do not overlap.
func (r TimeRange) Intersect(other TimeRange) TimeRange {
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

// Contains reports whether t falls inside the half-open range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
}

// -----------------------------------------------------------------------------
// Observations
// -----------------------------------------------------------------------------

// RawBar is a provider-native price observation before validation. Price and
// volume fields hold whatever JSON value the provider sent (number, quoted
// number, or nothing); the transformer is the only consumer and coerces them
// into the strict Bar type, rejecting what it cannot.
type RawBar struct {
	Ticker string
	TS     string // Provider timestamp, expected RFC 3339
	Open   any
	High   any
	Low    any
	Close  any
	Volume any
	Source string // Provider identifier, carried for diagnostics only
}

// Bar is the canonical validated observation stored durably.
//
// Invariants (enforced by the transformer, assumed everywhere else):
//   - TS is UTC
//   - High >= Low, and Open, Close lie within [Low, High]
//   - Volume >= 0
type Bar struct {
	Ticker     string
	TS         time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	IngestedAt time.Time
}

// BarMetric holds derived per-bar statistics. Nil fields mean the metric is
// undefined at that bar (e.g. no prior close for a return).
type BarMetric struct {
	Ticker      string
	TS          time.Time
	DailyReturn *float64 // Percent change of close vs. the previous bar
	RollingVol  *float64 // Sample stddev of returns over the trailing window
}
