package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Database driver selectors.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "720h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\", got %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config is the root configuration for the ingestion pipeline.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Database  DatabaseConfig  `yaml:"database"`
	Tickers   []TickerConfig  `yaml:"tickers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// ProviderConfig holds market-data provider API settings.
type ProviderConfig struct {
	BaseURL      string   `yaml:"base_url"`
	APIKey       string   `yaml:"api_key"`
	Timeout      Duration `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	PageSize     int      `yaml:"page_size"`
	MaxRPS       float64  `yaml:"max_rps"` // Default per-ticker request budget
}

// DatabaseConfig selects and configures the durable store backend.
type DatabaseConfig struct {
	Driver   string       `yaml:"driver"` // "postgres" or "sqlite"
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// DBConfig holds a PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig holds the embedded store location. ":memory:" is accepted.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// TickerConfig is one registry entry with optional per-ticker overrides.
type TickerConfig struct {
	Symbol   string   `yaml:"symbol"`
	Lookback Duration `yaml:"lookback"` // First-run lookback; 0 = pipeline default
	MaxRPS   float64  `yaml:"max_rps"`  // Provider request budget; 0 = provider default
}

// PipelineConfig tunes the per-run pipeline behavior.
type PipelineConfig struct {
	Boundary         Duration `yaml:"boundary"`          // Scheduling boundary for range ends
	DefaultLookback  Duration `yaml:"default_lookback"`  // First-run window when no watermark exists
	ChunkSize        int      `yaml:"chunk_size"`        // Max rows per commit transaction
	Concurrency      int      `yaml:"concurrency"`       // Max tickers processed in parallel
	ValidateSessions bool     `yaml:"validate_sessions"` // Reject bars outside exchange trading sessions
}

// AnalyticsConfig controls post-load metric enrichment.
type AnalyticsConfig struct {
	Disabled bool `yaml:"disabled"`
	Window   int  `yaml:"window"` // Rolling volatility window, in bars
}

// ScheduleConfig drives the ingestd daemon.
type ScheduleConfig struct {
	Cron            string   `yaml:"cron"`
	RunTimeout      Duration `yaml:"run_timeout"`
	TradingDaysOnly bool     `yaml:"trading_days_only"`
	Market          string   `yaml:"market"` // MIC used for the trading-day check
}
