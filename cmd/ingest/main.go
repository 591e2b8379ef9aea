package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmendes/stock-etl/internal/analytics"
	"github.com/lmendes/stock-etl/internal/config"
	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/pipeline"
	"github.com/lmendes/stock-etl/internal/provider"
	"github.com/lmendes/stock-etl/internal/registry"
	"github.com/lmendes/stock-etl/internal/store"
	"github.com/lmendes/stock-etl/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingest.local.yaml", "path to config file")
	mode := flag.String("mode", "incremental", "run mode: incremental or backfill")
	start := flag.String("start", "", "backfill range start (RFC 3339)")
	end := flag.String("end", "", "backfill range end (RFC 3339, exclusive)")
	flag.Parse()

	// Logs go to stderr; stdout carries the run report.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingest",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	req, err := buildRequest(*mode, *start, *end)
	if err != nil {
		logger.Error("invalid run request", "error", err)
		os.Exit(2)
	}

	logger.Info("configuration loaded",
		"provider_url", cfg.Provider.BaseURL,
		"database_driver", cfg.Database.Driver,
		"tickers", len(cfg.Tickers),
		"mode", req.Mode,
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

	report, err := orch.Run(ctx, req)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	if !report.Succeeded() {
		logger.Error("run finished with failures", "failed", report.FailedTickers())
		os.Exit(1)
	}
	logger.Info("run finished", "records_loaded", report.TotalLoaded())
}

// buildRequest turns CLI flags into a run request. Backfills need an
// explicit range; incremental runs reject one so a typo'd mode cannot
// silently ignore it.
func buildRequest(mode, start, end string) (model.RunRequest, error) {
	m, err := model.ParseMode(mode)
	if err != nil {
		return model.RunRequest{}, err
	}
	req := model.RunRequest{Mode: m}

	if m != model.ModeBackfill {
		if start != "" || end != "" {
			return model.RunRequest{}, errors.New("-start/-end only apply to backfill mode")
		}
		return req, nil
	}

	if start == "" || end == "" {
		return model.RunRequest{}, errors.New("backfill mode requires -start and -end")
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return model.RunRequest{}, fmt.Errorf("parse -start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return model.RunRequest{}, fmt.Errorf("parse -end: %w", err)
	}
	req.Backfill = model.TimeRange{Start: s.UTC(), End: e.UTC()}
	if req.Backfill.IsEmpty() {
		return model.RunRequest{}, fmt.Errorf("backfill range %s is empty", req.Backfill)
	}
	return req, nil
}
