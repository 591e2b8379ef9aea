// Package store persists canonical bars, per-ticker watermarks and derived
// metrics behind one interface, with PostgreSQL and SQLite backends.
//
// The contract that keeps ingestion idempotent lives here: a batch of bars
// and the watermark advancement for the range they came from commit as a
// single transaction, and a watermark never moves backward. PostgreSQL
// table creation belongs to the deployment's migration tooling; the SQLite
// backend bootstraps its own schema since an embedded file database has no
// external migrator.
package store
