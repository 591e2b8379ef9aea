package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.Provider.PageSize < 1 {
		return errors.New("provider.page_size must be >= 1")
	}
	if c.Provider.MaxRPS <= 0 {
		return errors.New("provider.max_rps must be > 0")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	if len(c.Tickers) == 0 {
		return errors.New("at least one ticker is required")
	}
	seen := make(map[string]bool, len(c.Tickers))
	for i, t := range c.Tickers {
		if t.Symbol == "" {
			return fmt.Errorf("tickers[%d].symbol is required", i)
		}
		if seen[t.Symbol] {
			return fmt.Errorf("duplicate ticker %q", t.Symbol)
		}
		seen[t.Symbol] = true
		if t.Lookback < 0 {
			return fmt.Errorf("tickers[%d].lookback must be >= 0", i)
		}
		if t.MaxRPS < 0 {
			return fmt.Errorf("tickers[%d].max_rps must be >= 0", i)
		}
	}

	if c.Pipeline.Boundary <= 0 {
		return errors.New("pipeline.boundary must be > 0")
	}
	if c.Pipeline.DefaultLookback <= 0 {
		return errors.New("pipeline.default_lookback must be > 0")
	}
	if c.Pipeline.ChunkSize < 1 {
		return errors.New("pipeline.chunk_size must be >= 1")
	}
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}

	if !c.Analytics.Disabled && c.Analytics.Window < 2 {
		return errors.New("analytics.window must be >= 2")
	}

	if c.Schedule.RunTimeout <= 0 {
		return errors.New("schedule.run_timeout must be > 0")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
