// Package schedule runs the ingestion pipeline on a cron cadence. A tick
// that fires while the previous run is still going is skipped, and ticks
// on non-trading days can be skipped against an exchange calendar.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lmendes/stock-etl/internal/config"
	"github.com/lmendes/stock-etl/internal/model"
	"github.com/lmendes/stock-etl/internal/trading"
)

// Runner executes one pipeline pass. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req model.RunRequest) (*model.RunReport, error)
}

// Scheduler owns the cron loop around a Runner.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	cal     *trading.Calendar
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a scheduler from configuration. The cron spec is validated
// here so a bad schedule fails startup instead of never firing.
func New(cfg config.ScheduleConfig, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		runner:  runner,
		timeout: time.Duration(cfg.RunTimeout),
		logger:  logger,
		now:     time.Now,
	}
	if cfg.TradingDaysOnly {
		s.cal = trading.New(cfg.Market)
	}

	cl := cronLogger{logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cl),
		cron.Recover(cl),
	))
	if _, err := s.cron.AddFunc(cfg.Cron, s.runOnce); err != nil {
		return nil, fmt.Errorf("register schedule %q: %w", cfg.Cron, err)
	}

	return s, nil
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers one run outside the schedule, with the same skip and
// timeout rules as a scheduled tick.
func (s *Scheduler) RunNow() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	if s.cal != nil && !s.cal.IsTradingDay(s.now()) {
		s.logger.Info("skipping run, market closed")
		return
	}

	ctx := context.Background()
	cancel := func() {}
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	report, err := s.runner.Run(ctx, model.RunRequest{Mode: model.ModeIncremental})
	if err != nil {
		s.logger.Error("scheduled run failed", "err", err)
		return
	}
	if !report.Succeeded() {
		s.logger.Error("scheduled run finished with failures",
			"run_id", report.RunID,
			"failed", report.FailedTickers(),
			"records_loaded", report.TotalLoaded(),
		)
		return
	}
	s.logger.Info("scheduled run complete",
		"run_id", report.RunID,
		"records_loaded", report.TotalLoaded(),
	)
}

// cronLogger adapts slog to the cron library's logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Info(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
