package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lmendes/stock-etl/internal/model"
)

const barColumns = `ticker, ts, open, high, low, close, volume, ingested_at`

// Postgres is the pgx-backed Store used in shared deployments.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool. Tables are expected to
// exist already.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Watermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	var wm time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT last_committed_end FROM watermarks WHERE ticker = $1`, ticker,
	).Scan(&wm)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark %s: %w", ticker, err)
	}
	return wm.UTC(), true, nil
}

func (p *Postgres) CommitBars(ctx context.Context, ticker string, bars []model.Bar, advanceTo *time.Time) error {
	if len(bars) == 0 && advanceTo == nil {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit %s: %w", ticker, err)
	}
	defer tx.Rollback(ctx)

	if len(bars) > 0 {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(`
				INSERT INTO bars (`+barColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (ticker, ts) DO UPDATE SET
					open = excluded.open,
					high = excluded.high,
					low = excluded.low,
					close = excluded.close,
					volume = excluded.volume,
					ingested_at = excluded.ingested_at
			`, b.Ticker, b.TS, b.Open, b.High, b.Low, b.Close, b.Volume, b.IngestedAt)
		}

		// Batch results must be drained and closed before the transaction
		// accepts further statements.
		results := tx.SendBatch(ctx, batch)
		for range bars {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upsert bars %s: %w", ticker, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close bar batch %s: %w", ticker, err)
		}
	}

	if advanceTo != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO watermarks (ticker, last_committed_end)
			VALUES ($1, $2)
			ON CONFLICT (ticker) DO UPDATE SET
				last_committed_end = excluded.last_committed_end
			WHERE watermarks.last_committed_end < excluded.last_committed_end
		`, ticker, advanceTo.UTC())
		if err != nil {
			return fmt.Errorf("advance watermark %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", ticker, err)
	}
	return nil
}

func (p *Postgres) BarsBetween(ctx context.Context, ticker string, r model.TimeRange) ([]model.Bar, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM bars
		WHERE ticker = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts
	`, ticker, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", ticker, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func (p *Postgres) BarsBefore(ctx context.Context, ticker string, t time.Time, limit int) ([]model.Bar, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM bars
		WHERE ticker = $1 AND ts < $2
		ORDER BY ts DESC
		LIMIT $3
	`, ticker, t, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", ticker, err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(bars)
	return bars, nil
}

func (p *Postgres) UpsertMetrics(ctx context.Context, metrics []model.BarMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO bar_metrics (ticker, ts, daily_return, rolling_vol_30d)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (ticker, ts) DO UPDATE SET
				daily_return = excluded.daily_return,
				rolling_vol_30d = excluded.rolling_vol_30d
		`, m.Ticker, m.TS, m.DailyReturn, m.RollingVol)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range metrics {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert metrics: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanBars(rows pgx.Rows) ([]model.Bar, error) {
	var out []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Ticker, &b.TS, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.TS = b.TS.UTC()
		b.IngestedAt = b.IngestedAt.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
