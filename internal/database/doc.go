// Package database opens the PostgreSQL connection pool backing the bar
// store. Bars, watermarks and derived metrics all live in one database;
// SQLite deployments skip this package entirely because the store owns
// that driver directly.
package database
