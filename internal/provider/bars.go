package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// GetBarsOptions configures a GetBars request.
type GetBarsOptions struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Cursor string
}

// BarsResponse from GET /bars/{symbol}.
type BarsResponse struct {
	Bars   []APIBar `json:"bars"`
	Cursor string   `json:"cursor"`

	// Covered is the sub-range of the request the provider actually served.
	// Absent means the full requested range was served.
	Covered *APIRange `json:"covered"`
}

// APIBar represents one raw observation from the provider. Price and volume
// fields are decoded loosely: providers have been seen sending numbers,
// quoted numbers, and nulls, and one malformed field must not fail the whole
// page. The transformer owns coercion and rejection per record.
type APIBar struct {
	TS     string `json:"ts"`
	Open   any    `json:"open"`
	High   any    `json:"high"`
	Low    any    `json:"low"`
	Close  any    `json:"close"`
	Volume any    `json:"volume"`
}

// APIRange is a provider-reported half-open time interval.
type APIRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GetBars fetches a single page of bars for a symbol. Callers paginate by
// passing the returned cursor back until it comes back empty.
func (c *Client) GetBars(ctx context.Context, symbol string, opts GetBarsOptions) (*BarsResponse, error) {
	query := url.Values{}

	if !opts.Start.IsZero() {
		query.Set("start", opts.Start.UTC().Format(time.RFC3339))
	}
	if !opts.End.IsZero() {
		query.Set("end", opts.End.UTC().Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp BarsResponse
	if err := c.get(ctx, "/bars/"+symbol, query, &resp); err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	return &resp, nil
}
