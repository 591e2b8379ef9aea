package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/registry"
)

// Enricher runs post-load metric updates over freshly covered time.
// Enrichment failures degrade a ticker to a warning, never to failed.
type Enricher interface {
	EnrichRange(ctx context.Context, ticker string, covered model.TimeRange) error
}

// Config holds pipeline tuning for one orchestrator.
type Config struct {
	Boundary         time.Duration // Scheduling granularity for range ends
	ChunkSize        int           // Rows per commit transaction
	Concurrency      int           // Tickers processed in parallel
	PageSize         int           // Provider records per page
	ValidateSessions bool          // Reject bars outside exchange sessions

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Boundary:    24 * time.Hour,
		ChunkSize:   500,
		Concurrency: 4,
		PageSize:    500,
	}
}

// Orchestrator drives the pipeline across all registered tickers. Each
// ticker moves through resolve, extract, transform and load in strict
// sequence; tickers themselves run concurrently and fail independently.
type Orchestrator struct {
	cfg         Config
	registry    *registry.Registry
	resolver    *Resolver
	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
	enricher    Enricher
	logger      *slog.Logger
	now         func() time.Time
}

// New wires the pipeline components. enricher may be nil; logger defaults
// to slog.Default().
func New(cfg Config, reg *registry.Registry, store Storage, source BarSource, enricher Enricher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		cfg:         cfg,
		registry:    reg,
		resolver:    NewResolver(store, cfg.Boundary),
		extractor:   NewExtractor(source, cfg.PageSize, logger),
		transformer: NewTransformer(cfg.ValidateSessions),
		loader:      NewLoader(store, cfg.ChunkSize, logger),
		enricher:    enricher,
		logger:      logger,
		now:         now,
	}
}

// Run executes one pipeline pass over every registered ticker and returns
// the per-ticker outcomes. The report is the only surface the caller gets;
// per-ticker failures live there, not in the error return.
func (o *Orchestrator) Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error) {
	if req.Mode != model.ModeIncremental && req.Mode != model.ModeBackfill {
		return nil, fmt.Errorf("unknown run mode %q", req.Mode)
	}

	report := &model.RunReport{
		RunID:     uuid.New(),
		Mode:      req.Mode,
		StartedAt: o.now().UTC(),
	}

	entries := o.registry.List()
	results := make([]model.TickerResult, len(entries))

	o.logger.Info("run started",
		"run_id", report.RunID,
		"mode", req.Mode,
		"tickers", len(entries),
	)

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	var succeeded, failed atomic.Int64

	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry *registry.Entry) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = model.TickerResult{
					Ticker: entry.Symbol,
					State:  model.StateFailed,
					Error:  ctx.Err().Error(),
				}
				failed.Add(1)
				return
			}

			results[i] = o.runTicker(ctx, entry, req)
			if results[i].State == model.StateSucceeded {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}(i, entry)
	}

	wg.Wait()

	report.Tickers = results
	report.FinishedAt = o.now().UTC()

	o.logger.Info("run complete",
		"run_id", report.RunID,
		"succeeded", succeeded.Load(),
		"failed", failed.Load(),
		"records_loaded", report.TotalLoaded(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	return report, nil
}

// runTicker walks one ticker through the pipeline stages.
func (o *Orchestrator) runTicker(ctx context.Context, entry *registry.Entry, req model.RunRequest) model.TickerResult {
	res := model.TickerResult{Ticker: entry.Symbol, State: model.StatePending}
	logger := o.logger.With("ticker", entry.Symbol)

	fail := func(stage string, err error) model.TickerResult {
		logger.Error("ticker failed", "stage", stage, "err", err)
		res.State = model.StateFailed
		res.Error = err.Error()
		return res
	}

	res.State = model.StateResolving
	r, err := o.resolver.Resolve(ctx, entry.Symbol, req, o.now(), entry.Lookback)
	if err != nil {
		return fail("resolve", err)
	}
	res.Range = r

	if r.IsEmpty() {
		res.State = model.StateSucceeded
		logger.Info("already up to date")
		return res
	}

	res.State = model.StateExtracting
	ext, err := o.extractor.Extract(ctx, entry.Symbol, r, entry)
	if err != nil {
		return fail("extract", err)
	}

	res.State = model.StateTransforming
	bars, rejects := o.transformer.Transform(ext.Raw, o.now())
	res.Rejected = len(rejects)
	for _, rej := range rejects {
		logger.Warn("record rejected", "ts", rej.TS, "reason", rej.Reason)
	}

	res.State = model.StateLoading
	lr, err := o.loader.Load(ctx, entry.Symbol, bars, ext.Covered)
	if err != nil {
		return fail("load", err)
	}
	res.Loaded = lr.Loaded

	if o.enricher != nil && lr.Loaded > 0 {
		if err := o.enricher.EnrichRange(ctx, entry.Symbol, ext.Covered); err != nil {
			res.Warning = fmt.Sprintf("enrichment failed: %v", err)
			logger.Warn("enrichment failed", "err", err)
		}
	}

	res.State = model.StateSucceeded
	logger.Info("ticker complete",
		"range", r.String(),
		"loaded", res.Loaded,
		"rejected", res.Rejected,
		"watermark_advanced", lr.Advanced,
	)
	return res
}
