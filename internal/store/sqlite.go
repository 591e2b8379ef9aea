package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lmendes/stock-etl/internal/model"
)

// SQLite is the embedded Store used for single-host deployments and tests.
// The driver is pure Go, so builds stay CGO-free. Timestamps are stored as
// Unix microseconds.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and bootstraps the
// schema. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection only: ":memory:" databases are per-connection, and the
	// file case serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			ticker      TEXT NOT NULL,
			ts          INTEGER NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      INTEGER NOT NULL,
			ingested_at INTEGER NOT NULL,
			PRIMARY KEY (ticker, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS watermarks (
			ticker             TEXT PRIMARY KEY,
			last_committed_end INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bar_metrics (
			ticker          TEXT NOT NULL,
			ts              INTEGER NOT NULL,
			daily_return    REAL,
			rolling_vol_30d REAL,
			PRIMARY KEY (ticker, ts)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Watermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var us int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_committed_end FROM watermarks WHERE ticker = ?`, ticker,
	).Scan(&us)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark %s: %w", ticker, err)
	}
	return time.UnixMicro(us).UTC(), true, nil
}

func (s *SQLite) CommitBars(ctx context.Context, ticker string, bars []model.Bar, advanceTo *time.Time) error {
	if len(bars) == 0 && advanceTo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit %s: %w", ticker, err)
	}
	defer tx.Rollback()

	for _, b := range bars {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bars (ticker, ts, open, high, low, close, volume, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (ticker, ts) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume,
				ingested_at = excluded.ingested_at
		`, b.Ticker, b.TS.UnixMicro(), b.Open, b.High, b.Low, b.Close, b.Volume, b.IngestedAt.UnixMicro())
		if err != nil {
			return fmt.Errorf("upsert bars %s: %w", ticker, err)
		}
	}

	if advanceTo != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO watermarks (ticker, last_committed_end)
			VALUES (?, ?)
			ON CONFLICT (ticker) DO UPDATE SET
				last_committed_end = excluded.last_committed_end
			WHERE watermarks.last_committed_end < excluded.last_committed_end
		`, ticker, advanceTo.UnixMicro())
		if err != nil {
			return fmt.Errorf("advance watermark %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", ticker, err)
	}
	return nil
}

func (s *SQLite) BarsBetween(ctx context.Context, ticker string, r model.TimeRange) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, ts, open, high, low, close, volume, ingested_at
		FROM bars
		WHERE ticker = ? AND ts >= ? AND ts < ?
		ORDER BY ts
	`, ticker, r.Start.UnixMicro(), r.End.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", ticker, err)
	}
	defer rows.Close()

	return scanSQLiteBars(rows)
}

func (s *SQLite) BarsBefore(ctx context.Context, ticker string, t time.Time, limit int) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, ts, open, high, low, close, volume, ingested_at
		FROM bars
		WHERE ticker = ? AND ts < ?
		ORDER BY ts DESC
		LIMIT ?
	`, ticker, t.UnixMicro(), limit)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", ticker, err)
	}
	defer rows.Close()

	bars, err := scanSQLiteBars(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(bars)
	return bars, nil
}

func (s *SQLite) UpsertMetrics(ctx context.Context, metrics []model.BarMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metrics: %w", err)
	}
	defer tx.Rollback()

	for _, m := range metrics {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bar_metrics (ticker, ts, daily_return, rolling_vol_30d)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (ticker, ts) DO UPDATE SET
				daily_return = excluded.daily_return,
				rolling_vol_30d = excluded.rolling_vol_30d
		`, m.Ticker, m.TS.UnixMicro(), m.DailyReturn, m.RollingVol)
		if err != nil {
			return fmt.Errorf("upsert metrics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metrics: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanSQLiteBars(rows *sql.Rows) ([]model.Bar, error) {
	var out []model.Bar
	for rows.Next() {
		var (
			b            model.Bar
			ts, ingested int64
		)
		if err := rows.Scan(&b.Ticker, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &ingested); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.TS = time.UnixMicro(ts).UTC()
		b.IngestedAt = time.UnixMicro(ingested).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
