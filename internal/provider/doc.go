// Package provider implements the client for the market-data bars API.
//
// The provider exposes one time-ranged query per symbol:
//
//	GET /bars/{symbol}?start=...&end=...&limit=...&cursor=...
//
// Responses are paginated via an opaque cursor and report the sub-range of
// the request the provider could actually serve, which callers must honor
// when recording ingestion progress.
package provider
