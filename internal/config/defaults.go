package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProviderTimeout = Duration(30 * time.Second)
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = Duration(1 * time.Second)
	DefaultPageSize        = 500
	DefaultMaxRPS          = 5

	DefaultDBDriver  = DriverPostgres
	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultBoundary    = Duration(24 * time.Hour)
	DefaultLookback    = Duration(720 * time.Hour) // 30 days
	DefaultChunkSize   = 500
	DefaultConcurrency = 4

	DefaultAnalyticsWindow = 30

	DefaultCron       = "0 9-17 * * 1-5"
	DefaultRunTimeout = Duration(30 * time.Minute)
	DefaultMarket     = "xnys"
)

func (c *Config) applyDefaults() {
	// Provider defaults
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultMaxRetries
	}
	if c.Provider.RetryBackoff == 0 {
		c.Provider.RetryBackoff = DefaultRetryBackoff
	}
	if c.Provider.PageSize == 0 {
		c.Provider.PageSize = DefaultPageSize
	}
	if c.Provider.MaxRPS == 0 {
		c.Provider.MaxRPS = DefaultMaxRPS
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDBDriver
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultDBPort
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultDBSSLMode
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultMinConns
	}

	// Pipeline defaults
	if c.Pipeline.Boundary == 0 {
		c.Pipeline.Boundary = DefaultBoundary
	}
	if c.Pipeline.DefaultLookback == 0 {
		c.Pipeline.DefaultLookback = DefaultLookback
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = DefaultChunkSize
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}

	// Analytics defaults
	if c.Analytics.Window == 0 {
		c.Analytics.Window = DefaultAnalyticsWindow
	}

	// Schedule defaults
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Schedule.RunTimeout == 0 {
		c.Schedule.RunTimeout = DefaultRunTimeout
	}
	if c.Schedule.Market == "" {
		c.Schedule.Market = DefaultMarket
	}
}
