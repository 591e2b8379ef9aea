// Package pipeline implements the incremental ingestion pipeline: per
// ticker, resolve the time range to fetch, extract raw observations from
// the provider, validate them into canonical bars, and commit them together
// with a watermark advancement in one atomic unit.
//
// The watermark rules carry the correctness load. A ticker's watermark is
// the exclusive upper bound of durably loaded time; it advances only to the
// end of the range the provider actually covered, never past data that was
// not served, and never backward. Re-running any range is safe because
// loads are upserts keyed on (ticker, ts).
//
// Tickers are independent units of work: the orchestrator fans them out
// under a concurrency bound, and one ticker's failure never touches
// another's progress.
package pipeline
