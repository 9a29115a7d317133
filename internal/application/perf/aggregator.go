package perf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/ports"
)

// Config holds the aggregator knobs.
type Config struct {
	// Mode selects which decision trail feeds the bet-derived fields.
	Mode domain.Mode

	// BackfillInterval paces date recomputes during a backfill so report
	// readers are not starved on the single-writer database handle.
	BackfillInterval time.Duration
}

// DefaultConfig returns the production aggregator configuration.
func DefaultConfig() Config {
	return Config{
		Mode:             domain.ModeShadow,
		BackfillInterval: 100 * time.Millisecond,
	}
}

// Aggregator recomputes daily performance summaries from the ledger and
// the decision trail. Recomputes are idempotent: one date-keyed row,
// overwritten on every run.
type Aggregator struct {
	cfg     Config
	ledger  ports.Ledger
	bets    ports.BetStore
	snaps   ports.SnapshotStore
	limiter *rate.Limiter
}

// New builds the aggregator with its stores injected.
func New(cfg Config, ledger ports.Ledger, bets ports.BetStore, snaps ports.SnapshotStore) *Aggregator {
	if cfg.BackfillInterval <= 0 {
		cfg.BackfillInterval = 100 * time.Millisecond
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeShadow
	}
	return &Aggregator{
		cfg:     cfg,
		ledger:  ledger,
		bets:    bets,
		snaps:   snaps,
		limiter: rate.NewLimiter(rate.Every(cfg.BackfillInterval), 1),
	}
}

// RunDate recomputes and stores the summary for one UTC date.
func (a *Aggregator) RunDate(ctx context.Context, day time.Time) (domain.PerformanceSnapshot, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	resolved, err := a.bets.ResolvedOn(ctx, a.cfg.Mode, start)
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}

	var (
		wins, losses int
		profit       float64
		expected     float64
	)
	for _, b := range resolved {
		profit += b.PnL
		expected += b.EV * b.StakeUnits
		switch b.Status {
		case domain.BetWon:
			wins++
		case domain.BetLost:
			losses++
		}
	}

	state, err := a.ledger.State(ctx)
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}
	opening, err := a.ledger.BalanceAsOf(ctx, start)
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}
	closing, err := a.ledger.BalanceAsOf(ctx, end)
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}
	peak, err := a.ledger.PeakAsOf(ctx, end)
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}

	snap := domain.PerformanceSnapshot{
		Date:                start,
		TotalBets:           len(resolved),
		ProfitUnits:         profit,
		ExpectedProfitUnits: expected,
		ClosingBalance:      closing,
		BankrollGrowth:      1,
		Drawdown:            domain.DrawdownPct(peak, closing),
	}
	if wins+losses > 0 {
		snap.WinRate = float64(wins) / float64(wins+losses)
	}
	if state.InitialUnits > 0 {
		snap.ROIPercent = profit / state.InitialUnits * 100
	}
	if opening > 0 {
		snap.BankrollGrowth = closing / opening
	}

	if err := a.snaps.Upsert(ctx, snap); err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("perf.RunDate: %w", err)
	}
	slog.Debug("performance snapshot stored",
		"date", start.Format("2006-01-02"), "bets", snap.TotalBets, "profit", snap.ProfitUnits)
	return snap, nil
}

// Backfill recomputes every date in [from, to], paced by the limiter.
// It returns how many dates were written.
func (a *Aggregator) Backfill(ctx context.Context, from, to time.Time) (int, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if to.Before(from) {
		return 0, fmt.Errorf("perf.Backfill: range %s after %s: %w",
			from.Format("2006-01-02"), to.Format("2006-01-02"), domain.ErrInvalidInput)
	}

	n := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := a.limiter.Wait(ctx); err != nil {
			return n, fmt.Errorf("perf.Backfill: %w", err)
		}
		if _, err := a.RunDate(ctx, day); err != nil {
			return n, err
		}
		n++
	}
	slog.Info("performance backfill complete",
		"from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"), "dates", n)
	return n, nil
}
