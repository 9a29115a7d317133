package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoopsight/bankguard/config"
	"github.com/hoopsight/bankguard/internal/adapters/notify"
	"github.com/hoopsight/bankguard/internal/adapters/storage"
	"github.com/hoopsight/bankguard/internal/application/perf"
	"github.com/hoopsight/bankguard/internal/application/pipeline"
	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/risk"
	"github.com/hoopsight/bankguard/internal/scheduler"
	"github.com/hoopsight/bankguard/internal/stake"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	evaluateFile := flag.String("evaluate", "", "JSON file with candidates to evaluate")
	resolveFile := flag.String("resolve", "", "JSON file with game outcomes to settle and exit")
	outcomesFile := flag.String("outcomes", "", "JSON outcome file polled by the scheduler sweep")
	report := flag.Bool("report", false, "print bankroll, recent decisions and daily performance")
	backfill := flag.Int("backfill", 0, "recompute performance for the last N days and exit")
	reset := flag.Float64("reset", 0, "reset the bankroll to N units and exit")
	adjust := flag.Float64("adjust", 0, "book a signed manual capital adjustment and exit")
	note := flag.String("note", "", "note recorded with -adjust")
	live := flag.Bool("live", false, "run in live mode (default: shadow)")
	resume := flag.Bool("resume", false, "resume a paused bankroll and exit")
	once := flag.Bool("once", false, "run one sweep + aggregation cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg := loadConfig(*configPath)
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("bankguard starting",
		"config", *configPath,
		"dsn", cfg.Storage.DSN,
		"live", *live || cfg.Engine.Live,
		"once", *once,
	)

	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Ledger.Init(ctx, cfg.Engine.InitialUnits, cfg.Engine.KellyFraction); err != nil {
		slog.Error("failed to seed bankroll", "err", err)
		os.Exit(1)
	}

	p := pipeline.New(pipelineConfig(cfg), store.Ledger, store.Bets, store.Audit)
	if *live || cfg.Engine.Live {
		if err := p.SetLive(ctx, true); err != nil {
			slog.Error("failed to enter live mode", "err", err)
			os.Exit(1)
		}
	}

	agg := perf.New(perf.Config{
		Mode:             p.Mode(),
		BackfillInterval: cfg.BackfillInterval(),
	}, store.Ledger, store.Bets, store.Snapshots)

	if done := runActions(ctx, p, agg, store, actionFlags{
		evaluateFile: *evaluateFile,
		resolveFile:  *resolveFile,
		report:       *report,
		reset:        *reset,
		adjust:       *adjust,
		note:         *note,
		resume:       *resume,
		backfillDays: *backfill,
	}); done {
		return
	}

	outcomes := outcomeSource(*outcomesFile)
	sched := scheduler.New(ctx, scheduler.Config{
		SweepSpec:     cfg.Scheduler.SweepSpec,
		AggregateSpec: cfg.Scheduler.AggregateSpec,
	}, p, agg, outcomes)

	if *once {
		sched.RunOnce()
		slog.Info("bankguard cycle complete")
		return
	}

	if err := sched.Register(); err != nil {
		slog.Error("failed to register tasks", "err", err)
		os.Exit(1)
	}
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	slog.Info("bankguard stopped cleanly")
}

type actionFlags struct {
	evaluateFile string
	resolveFile  string
	report       bool
	reset        float64
	adjust       float64
	note         string
	resume       bool
	backfillDays int
}

// runActions executes the explicit operator subcommands. It reports whether
// the process should exit instead of entering the scheduler loop.
func runActions(ctx context.Context, p *pipeline.Pipeline, agg *perf.Aggregator, store *storage.Store, a actionFlags) bool {
	ran := false

	if a.reset > 0 {
		if err := p.Reset(ctx, a.reset); err != nil {
			slog.Error("reset failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	if a.adjust != 0 {
		if err := p.Adjust(ctx, a.adjust, a.note); err != nil {
			slog.Error("adjustment failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	if a.resume {
		if err := p.ResumeFromPause(ctx); err != nil {
			slog.Error("resume failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	if a.evaluateFile != "" {
		if err := evaluateBatch(ctx, p, a.evaluateFile); err != nil {
			slog.Error("evaluation batch failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	if a.resolveFile != "" {
		if err := resolveBatch(ctx, p, a.resolveFile); err != nil {
			slog.Error("resolution batch failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	if a.backfillDays > 0 {
		now := time.Now().UTC()
		n, err := agg.Backfill(ctx, now.AddDate(0, 0, -a.backfillDays), now)
		if err != nil {
			slog.Error("backfill failed", "err", err)
			os.Exit(1)
		}
		slog.Info("backfill complete", "dates", n)
		ran = true
	}
	if a.report {
		if err := printReport(ctx, p, store); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		ran = true
	}
	return ran
}

func evaluateBatch(ctx context.Context, p *pipeline.Pipeline, path string) error {
	candidates, err := readCandidates(path)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		bet, err := p.Evaluate(ctx, c)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidOdds) {
				slog.Warn("candidate rejected", "game", c.GameID, "err", err)
				continue
			}
			return err
		}
		slog.Info("decision recorded",
			"game", bet.GameID, "decision", bet.Decision, "stake", bet.StakeUnits, "reason", bet.Reason)
	}
	return nil
}

func resolveBatch(ctx context.Context, p *pipeline.Pipeline, path string) error {
	results, err := readOutcomes(path)
	if err != nil {
		return err
	}
	for gameID, outcome := range results {
		bet, err := p.Resolve(ctx, gameID, outcome)
		if err != nil {
			if errors.Is(err, domain.ErrBetNotFound) {
				slog.Warn("no pending bet for game", "game", gameID)
				continue
			}
			return err
		}
		slog.Info("settlement recorded", "game", gameID, "status", bet.Status, "pnl", bet.PnL)
	}
	return nil
}

func printReport(ctx context.Context, p *pipeline.Pipeline, store *storage.Store) error {
	state, err := store.Ledger.State(ctx)
	if err != nil {
		return err
	}
	bets, err := store.Bets.Recent(ctx, p.Mode(), 20)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	snaps, err := store.Snapshots.Range(ctx, now.AddDate(0, 0, -30), now)
	if err != nil {
		return err
	}
	return notify.NewConsole(false).Report(ctx, state, bets, snaps)
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Risk: risk.Config{
			EVFloor:              cfg.Risk.EVFloor,
			DrawdownThreshold:    cfg.Risk.DrawdownThreshold,
			DrawdownFraction:     cfg.Risk.DrawdownFraction,
			MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
			EarlySeasonCutoff:    cfg.Risk.EarlySeasonCutoff,
		},
		Stake: stake.Config{
			MaxStakePct: cfg.Stake.MaxStakePct,
			MinUnit:     cfg.Stake.MinUnit,
		},
		StreakLookback: cfg.Engine.StreakLookback,
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			slog.Warn("config file not found, using defaults", "path", path)
			return config.Default()
		}
		slog.Error("failed to load config", "err", err, "path", path)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
