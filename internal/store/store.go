package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lmendes/stock-etl/internal/config"
	"github.com/lmendes/stock-etl/internal/database"
	"github.com/lmendes/stock-etl/internal/model"
)

// Store is the durable home of bars, watermarks and derived metrics.
type Store interface {
	// Watermark returns the exclusive upper bound of durably loaded time
	// for a ticker. ok is false when the ticker has never committed.
	Watermark(ctx context.Context, ticker string) (time.Time, bool, error)

	// CommitBars upserts a batch keyed on (ticker, ts) and advances the
	// ticker's watermark in one transaction. advanceTo may be nil to
	// commit bars without touching the watermark; bars may be empty to
	// move the watermark alone. The watermark never moves backward.
	CommitBars(ctx context.Context, ticker string, bars []model.Bar, advanceTo *time.Time) error

	// BarsBetween returns bars with ts in [r.Start, r.End), ascending.
	BarsBetween(ctx context.Context, ticker string, r model.TimeRange) ([]model.Bar, error)

	// BarsBefore returns up to limit bars with ts < t, ascending.
	BarsBefore(ctx context.Context, ticker string, t time.Time, limit int) ([]model.Bar, error)

	// UpsertMetrics writes derived per-bar metrics keyed on (ticker, ts).
	UpsertMetrics(ctx context.Context, metrics []model.BarMetric) error

	Close() error
}

// Open connects the backend selected by configuration.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return NewPostgres(pool), nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
