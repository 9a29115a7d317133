package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoopsight/bankguard/internal/application/perf"
	"github.com/hoopsight/bankguard/internal/application/pipeline"
	"github.com/hoopsight/bankguard/internal/ports"
)

// Config holds the cron specs (6-field, with seconds).
type Config struct {
	SweepSpec     string // periodic resolution sweep
	AggregateSpec string // daily aggregation of the prior date
}

// DefaultConfig runs the sweep every ten minutes and aggregates the prior
// day shortly after midnight UTC.
func DefaultConfig() Config {
	return Config{
		SweepSpec:     "0 */10 * * * *",
		AggregateSpec: "0 5 0 * * *",
	}
}

// Scheduler drives the periodic engine tasks: settling pending bets whose
// outcomes are known and recomputing the prior day's performance summary.
type Scheduler struct {
	cfg      Config
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
	perf     *perf.Aggregator
	outcomes ports.OutcomeSource
	ctx      context.Context
}

// New builds the scheduler. The context bounds every task invocation.
func New(ctx context.Context, cfg Config, p *pipeline.Pipeline, agg *perf.Aggregator, outcomes ports.OutcomeSource) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		pipeline: p,
		perf:     agg,
		outcomes: outcomes,
		ctx:      ctx,
	}
}

// Register wires the tasks into the cron table.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.cfg.SweepSpec, s.sweep); err != nil {
		return fmt.Errorf("scheduler.Register: sweep task: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.AggregateSpec, s.aggregatePriorDay); err != nil {
		return fmt.Errorf("scheduler.Register: aggregation task: %w", err)
	}
	return nil
}

// Start begins task execution in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "sweep", s.cfg.SweepSpec, "aggregate", s.cfg.AggregateSpec)
}

// Stop stops the cron table and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunOnce executes both tasks immediately, for manual triggers.
func (s *Scheduler) RunOnce() {
	s.sweep()
	s.aggregatePriorDay()
}

func (s *Scheduler) sweep() {
	settled, err := s.pipeline.ResolvePending(s.ctx, s.outcomes)
	if err != nil {
		slog.Error("resolution sweep failed", "err", err)
		return
	}
	if settled > 0 {
		slog.Info("resolution sweep settled bets", "count", settled)
	}
}

func (s *Scheduler) aggregatePriorDay() {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := s.perf.RunDate(s.ctx, day); err != nil {
		slog.Error("daily aggregation failed", "err", err)
	}
}
