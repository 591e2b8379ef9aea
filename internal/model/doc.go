// Package model defines shared data types used across the ingestion pipeline.
//
// Conventions:
//   - Timestamps: time.Time, normalized to UTC at the validation boundary
//   - Time ranges: half-open [Start, End)
//   - Prices: float64 in the instrument's quote currency
//   - Volume: int64 share count
//   - Natural key for stored observations: (ticker, timestamp)
package model
