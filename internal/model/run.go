package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunMode selects how the time range for a run is determined.
type RunMode string

const (
	// ModeIncremental resolves each ticker's range from its watermark.
	ModeIncremental RunMode = "incremental"

	// ModeBackfill uses the explicit range given in the RunRequest.
	ModeBackfill RunMode = "backfill"
)

// ParseMode converts a mode string (e.g. from a CLI flag) to a RunMode.
func ParseMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModeIncremental, ModeBackfill:
		return RunMode(s), nil
	}
	return "", fmt.Errorf("unknown run mode %q (want %q or %q)", s, ModeIncremental, ModeBackfill)
}

// RunRequest describes one pipeline invocation.
type RunRequest struct {
	Mode RunMode `json:"mode"`

	// Backfill is the explicit range for ModeBackfill; ignored otherwise.
	Backfill TimeRange `json:"backfill,omitzero"`
}

// TickerState tracks a ticker's progress through the pipeline stages.
type TickerState string

const (
	StatePending      TickerState = "pending"
	StateResolving    TickerState = "resolving"
	StateExtracting   TickerState = "extracting"
	StateTransforming TickerState = "transforming"
	StateLoading      TickerState = "loading"
	StateSucceeded    TickerState = "succeeded"
	StateFailed       TickerState = "failed"
)

// TickerResult is the outcome of one ticker's pass through the pipeline.
type TickerResult struct {
	Ticker   string      `json:"ticker"`
	Range    TimeRange   `json:"range"`
	State    TickerState `json:"state"`
	Loaded   int         `json:"records_loaded"`
	Rejected int         `json:"records_rejected,omitempty"`
	Warning  string      `json:"warning,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// RunReport aggregates the per-ticker outcomes of a single run. It is the
// only surface the external driver sees; nothing in it outlives the run.
type RunReport struct {
	RunID      uuid.UUID      `json:"run_id"`
	Mode       RunMode        `json:"mode"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Tickers    []TickerResult `json:"tickers"`
}

// Succeeded reports whether every ticker reached StateSucceeded.
func (r *RunReport) Succeeded() bool {
	for _, t := range r.Tickers {
		if t.State != StateSucceeded {
			return false
		}
	}
	return true
}

// TotalLoaded returns the number of records committed across all tickers.
func (r *RunReport) TotalLoaded() int {
	n := 0
	for _, t := range r.Tickers {
		n += t.Loaded
	}
	return n
}

// FailedTickers lists the symbols that did not succeed.
func (r *RunReport) FailedTickers() []string {
	var out []string
	for _, t := range r.Tickers {
		if t.State != StateSucceeded {
			out = append(out, t.Ticker)
		}
	}
	return out
}
