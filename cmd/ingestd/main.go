package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmendes/stock-etl/internal/analytics"
	"github.com/lmendes/stock-etl/internal/config"
	"github.com/lmendes/stock-etl/internal/pipeline"
	"github.com/lmendes/stock-etl/internal/provider"
	"github.com/lmendes/stock-etl/internal/registry"
	"github.com/lmendes/stock-etl/internal/schedule"
	"github.com/lmendes/stock-etl/internal/store"
	"github.com/lmendes/stock-etl/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingest.local.yaml", "path to config file")
	runOnStart := flag.Bool("run-on-start", false, "run one pass immediately on startup")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"provider_url", cfg.Provider.BaseURL,
		"database_driver", cfg.Database.Driver,
		"tickers", len(cfg.Tickers),
		"cron", cfg.Schedule.Cron,
		"trading_days_only", cfg.Schedule.TradingDaysOnly,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store opened", "driver", cfg.Database.Driver)

	client := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		provider.WithLogger(logger),
		provider.WithTimeout(time.Duration(cfg.Provider.Timeout)),
		provider.WithRetries(cfg.Provider.MaxRetries, time.Duration(cfg.Provider.RetryBackoff)),
	)

	var enricher pipeline.Enricher
	if !cfg.Analytics.Disabled {
		enricher = analytics.NewEngine(st, cfg.Analytics.Window, logger)
	}

	orch := pipeline.New(pipeline.Config{
		Boundary:         time.Duration(cfg.Pipeline.Boundary),
		ChunkSize:        cfg.Pipeline.ChunkSize,
		Concurrency:      cfg.Pipeline.Concurrency,
		PageSize:         cfg.Provider.PageSize,
		ValidateSessions: cfg.Pipeline.ValidateSessions,
	}, registry.New(cfg), st, client, enricher, logger)

	sched, err := schedule.New(cfg.Schedule, orch, logger)
	if err != nil {
		logger.Error("failed to build schedule", "error", err)
		os.Exit(1)
	}

	// The startup pass finishes before the cron starts so it cannot
	// overlap the first scheduled tick.
	if *runOnStart {
		sched.RunNow()
	}
	sched.Start()

	logger.Info("ingestd running", "cron", cfg.Schedule.Cron)

	<-ctx.Done()
	logger.Info("shutting down...")
	sched.Stop()
	logger.Info("ingestd stopped")
}
