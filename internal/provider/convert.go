package provider

import (
	"fmt"
	"time"

	"github.com/lmendes/stock-etl/internal/model"
)

// SourceREST identifies observations fetched through this client.
const SourceREST = "rest"

// ToRaw converts an APIBar to a model.RawBar for the given symbol. No
// validation happens here; the transformer owns that boundary.
func (b *APIBar) ToRaw(symbol string) model.RawBar {
	return model.RawBar{
		Ticker: symbol,
		TS:     b.TS,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
		Source: SourceREST,
	}
}

// ToRange parses the provider-reported coverage into a model.TimeRange.
func (r *APIRange) ToRange() (model.TimeRange, error) {
	start, err := time.Parse(time.RFC3339, r.Start)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("parse covered start %q: %w", r.Start, err)
	}
	end, err := time.Parse(time.RFC3339, r.End)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("parse covered end %q: %w", r.End, err)
	}
	return model.TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}
