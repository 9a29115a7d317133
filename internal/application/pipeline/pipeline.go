package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/ports"
	"github.com/hoopsight/bankguard/internal/risk"
	"github.com/hoopsight/bankguard/internal/stake"
)

// ReasonZeroStake annotates a PASS whose sized stake rounded below the
// minimum ledger unit.
const ReasonZeroStake = "zero_stake"

// Config holds the pipeline knobs.
type Config struct {
	Risk  risk.Config
	Stake stake.Config

	// StreakLookback bounds how many settled shadow bets are scanned to
	// derive the shadow loss streak.
	StreakLookback int

	// SweepLimit bounds how many pending bets one resolution sweep loads.
	SweepLimit int
}

// DefaultConfig returns the production pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Risk:           risk.DefaultConfig(),
		Stake:          stake.DefaultConfig(),
		StreakLookback: 50,
		SweepLimit:     500,
	}
}

// Pipeline is the single logical writer over bankroll state. Every
// candidate flows EV check, risk guard, stake sizing, one bet row, audit;
// every resolution flows check-and-set, ledger append, audit. The mutex
// serializes all mutations; reads elsewhere see committed snapshots.
type Pipeline struct {
	cfg    Config
	ledger ports.Ledger
	bets   ports.BetStore
	audit  ports.AuditLog
	guard  *risk.Guard

	mu     sync.Mutex
	live   bool
	halted bool
}

// New builds the pipeline with all dependencies injected. It starts in
// shadow mode; promotion to live is an explicit operator action.
func New(cfg Config, ledger ports.Ledger, bets ports.BetStore, audit ports.AuditLog) *Pipeline {
	if cfg.StreakLookback <= 0 {
		cfg.StreakLookback = 50
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 500
	}
	return &Pipeline{
		cfg:    cfg,
		ledger: ledger,
		bets:   bets,
		audit:  audit,
		guard:  risk.New(cfg.Risk),
	}
}

// Mode returns the active execution mode.
func (p *Pipeline) Mode() domain.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode()
}

// Halted reports whether a ledger integrity violation has latched the
// pipeline shut.
func (p *Pipeline) Halted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}

func (p *Pipeline) mode() domain.Mode {
	if p.live {
		return domain.ModeLive
	}
	return domain.ModeShadow
}

// Evaluate runs one candidate through the full decision flow and records
// exactly one bet row: BET, PASS, or BLOCKED. Malformed input fails fast
// before anything is written.
func (p *Pipeline) Evaluate(ctx context.Context, c domain.Candidate) (domain.Bet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", domain.ErrHalted)
	}
	if err := c.Validate(); err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", err)
	}

	state, err := p.ledger.State(ctx)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", err)
	}
	losses, err := p.lossStreak(ctx, state)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", err)
	}

	in := risk.Input{
		Probability:       c.Probability,
		Odds:              c.Odds,
		EV:                domain.ExpectedValue(c.Probability, c.Odds),
		SeasonProgress:    c.SeasonProgress,
		ConsecutiveLosses: losses,
	}
	verdict := p.guard.Evaluate(state, in)

	now := time.Now().UTC()
	bet := domain.Bet{
		ID:          uuid.NewString(),
		GameID:      c.GameID,
		Mode:        p.mode(),
		Probability: c.Probability,
		Odds:        c.Odds,
		EV:          in.EV,
		Status:      domain.BetNone,
		CreatedAt:   now,
	}

	if !verdict.Allowed {
		bet.Decision = domain.DecisionBlocked
		bet.Reason = verdict.Reason
		return bet, p.recordBlocked(ctx, bet, state, verdict, in, now)
	}

	sized, err := stake.Calculate(c.Probability, c.Odds, verdict.Fraction, state.CurrentUnits, p.cfg.Stake)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", err)
	}
	bet.KellyFractionUsed = verdict.Fraction

	if sized.Zeroed {
		bet.Decision = domain.DecisionPass
		bet.Reason = ReasonZeroStake
	} else {
		bet.Decision = domain.DecisionBet
		bet.Status = domain.BetPending
		bet.StakeUnits = sized.StakeUnits
		if verdict.Override {
			bet.Reason = verdict.Reason
		}
	}

	if err := p.bets.Create(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Evaluate: %w", err)
	}
	if verdict.Override {
		p.auditEntry(ctx, domain.AuditRiskTrigger, bet.GameID, verdict.Describe(in), stateLabel(state), stateLabel(state))
	}
	if bet.Decision == domain.DecisionBet {
		p.auditEntry(ctx, domain.AuditBetTaken, bet.GameID,
			fmt.Sprintf("stake=%.2f %s", bet.StakeUnits, verdict.Describe(in)), "", "")
	}

	slog.Info("candidate evaluated",
		"game", bet.GameID, "mode", bet.Mode, "decision", bet.Decision,
		"ev", bet.EV, "stake", bet.StakeUnits, "reason", bet.Reason)
	return bet, nil
}

// recordBlocked writes the BLOCKED row and its audit trail, applying the
// pause transition when the circuit breaker fired in live mode.
func (p *Pipeline) recordBlocked(ctx context.Context, bet domain.Bet, state domain.BankrollState, verdict risk.Verdict, in risk.Input, now time.Time) error {
	if err := p.bets.Create(ctx, bet); err != nil {
		return fmt.Errorf("pipeline.Evaluate: %w", err)
	}
	p.auditEntry(ctx, domain.AuditRiskTrigger, bet.GameID, verdict.Describe(in), stateLabel(state), stateLabel(state))
	p.auditEntry(ctx, domain.AuditBetBlocked, bet.GameID, verdict.Reason, "", "")

	// The breaker demands PAUSED. Shadow mode never touches bankroll
	// state, so the transition is live-only.
	if verdict.Pause && p.live && state.Status == domain.StatusActive {
		next := state
		next.Status = domain.StatusPaused
		next.LastUpdated = now
		if err := p.ledger.UpdateState(ctx, next); err != nil {
			return fmt.Errorf("pipeline.Evaluate: pause transition: %w", err)
		}
		p.auditEntry(ctx, domain.AuditStateChange, bet.GameID,
			"circuit breaker tripped", stateLabel(state), stateLabel(next))
		slog.Warn("circuit breaker tripped, bankroll paused", "losses", in.ConsecutiveLosses)
	}

	slog.Info("candidate blocked", "game", bet.GameID, "mode", bet.Mode, "reason", bet.Reason)
	return nil
}

// lossStreak supplies the guard's consecutive-loss input. Live mode reads
// the persisted counter; shadow mode derives it from the tail of settled
// shadow bets so shadow breakers work without bankroll writes.
func (p *Pipeline) lossStreak(ctx context.Context, state domain.BankrollState) (int, error) {
	if p.live {
		return state.ConsecutiveLosses, nil
	}
	settled, err := p.bets.LastSettled(ctx, domain.ModeShadow, p.cfg.StreakLookback)
	if err != nil {
		return 0, err
	}
	streak := 0
	for _, b := range settled {
		if b.Status != domain.BetLost {
			break
		}
		streak++
	}
	return streak, nil
}

// Resolve settles the pending bet for a game with the actual outcome. In
// live mode it also books the capital transaction and updates the bankroll
// under the single-writer lock. Resolving an already-terminal bet is an
// idempotent no-op.
func (p *Pipeline) Resolve(ctx context.Context, gameID string, outcome domain.Outcome) (domain.Bet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(ctx, gameID, outcome)
}

func (p *Pipeline) resolve(ctx context.Context, gameID string, outcome domain.Outcome) (domain.Bet, error) {
	if p.halted {
		return domain.Bet{}, fmt.Errorf("pipeline.Resolve: %w", domain.ErrHalted)
	}

	mode := p.mode()
	bet, err := p.bets.PendingByGame(ctx, mode, gameID)
	if errors.Is(err, domain.ErrBetNotFound) {
		// A settled row for the game means a duplicate resolution, which
		// is a no-op, not a failure.
		if settled, ok := p.settledBet(ctx, mode, gameID); ok {
			slog.Info("bet already resolved, skipping", "game", gameID, "mode", mode)
			return settled, nil
		}
		return domain.Bet{}, fmt.Errorf("pipeline.Resolve: %w", err)
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("pipeline.Resolve: %w", err)
	}

	var (
		status domain.BetStatus
		pnl    float64
	)
	switch outcome {
	case domain.OutcomeWin:
		status, pnl = domain.BetWon, bet.StakeUnits*(bet.Odds-1)
	case domain.OutcomeLoss:
		status, pnl = domain.BetLost, -bet.StakeUnits
	case domain.OutcomePush:
		status, pnl = domain.BetPushed, 0
	default:
		return domain.Bet{}, fmt.Errorf("pipeline.Resolve: outcome %q: %w", outcome, domain.ErrInvalidInput)
	}

	now := time.Now().UTC()

	// The check-and-set is the concurrency gate: losing it means another
	// writer settled first and the books already reflect the outcome.
	if err := p.bets.Settle(ctx, mode, bet.ID, status, pnl, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			slog.Info("bet already resolved, skipping", "game", gameID, "mode", mode)
			return bet, nil
		}
		return domain.Bet{}, fmt.Errorf("pipeline.Resolve: %w", err)
	}
	bet.Status = status
	bet.PnL = pnl
	bet.ResolvedAt = &now

	if mode == domain.ModeLive {
		if err := p.book(ctx, bet, status, pnl, now); err != nil {
			return domain.Bet{}, err
		}
	}

	slog.Info("bet resolved",
		"game", gameID, "mode", mode, "status", status, "pnl", pnl)
	return bet, nil
}

// book applies one live settlement to the ledger: transaction, state
// mutation, streak counters, bankruptcy check, audit. An integrity
// violation halts the pipeline until an operator reset.
func (p *Pipeline) book(ctx context.Context, bet domain.Bet, status domain.BetStatus, pnl float64, now time.Time) error {
	state, err := p.ledger.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline.Resolve: %w", err)
	}

	next := state.Applied(pnl, now)
	txType := domain.TxAdjustment
	switch status {
	case domain.BetWon:
		txType = domain.TxBetWin
		next.ConsecutiveWins = state.ConsecutiveWins + 1
		next.ConsecutiveLosses = 0
	case domain.BetLost:
		txType = domain.TxBetLoss
		next.ConsecutiveLosses = state.ConsecutiveLosses + 1
		next.ConsecutiveWins = 0
	}
	if next.CurrentUnits <= 0 {
		next.Status = domain.StatusBankrupt
	}

	_, err = p.ledger.Append(ctx, domain.Transaction{
		Timestamp:     now,
		Type:          txType,
		Amount:        pnl,
		BalanceAfter:  next.CurrentUnits,
		ExpectedValue: bet.EV,
		Note:          fmt.Sprintf("game %s %s", bet.GameID, status),
	}, next)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerIntegrity) {
			p.halted = true
			p.auditEntry(ctx, domain.AuditRiskTrigger, bet.GameID,
				"ledger integrity violation, pipeline halted", stateLabel(state), stateLabel(state))
			slog.Error("ledger integrity violation, halting pipeline", "game", bet.GameID, "err", err)
		}
		return fmt.Errorf("pipeline.Resolve: %w", err)
	}

	p.auditEntry(ctx, domain.AuditStateChange, bet.GameID,
		fmt.Sprintf("settlement %s pnl=%.2f", status, pnl), stateLabel(state), stateLabel(next))
	if next.Status == domain.StatusBankrupt {
		slog.Error("bankroll exhausted", "game", bet.GameID)
	}
	return nil
}

// ResolvePending sweeps pending bets in the active mode, asks the outcome
// source for finished games and settles what it can. It returns how many
// bets were settled; per-game failures are logged and skipped, a halt
// aborts the sweep.
func (p *Pipeline) ResolvePending(ctx context.Context, src ports.OutcomeSource) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := p.mode()
	rows, err := p.bets.ByStatus(ctx, mode, domain.BetPending, p.cfg.SweepLimit)
	if err != nil {
		return 0, fmt.Errorf("pipeline.ResolvePending: %w", err)
	}

	var gameIDs []string
	for _, b := range rows {
		if b.Decision == domain.DecisionBet {
			gameIDs = append(gameIDs, b.GameID)
		}
	}
	if len(gameIDs) == 0 {
		return 0, nil
	}

	outcomes, err := src.Outcomes(ctx, gameIDs)
	if err != nil {
		return 0, fmt.Errorf("pipeline.ResolvePending: %w", err)
	}

	settled := 0
	for _, gameID := range gameIDs {
		outcome, ok := outcomes[gameID]
		if !ok {
			continue
		}
		if _, err := p.resolve(ctx, gameID, outcome); err != nil {
			if errors.Is(err, domain.ErrHalted) || errors.Is(err, domain.ErrLedgerIntegrity) {
				return settled, err
			}
			slog.Warn("resolution failed", "game", gameID, "err", err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (p *Pipeline) settledBet(ctx context.Context, mode domain.Mode, gameID string) (domain.Bet, bool) {
	rows, err := p.bets.ByGame(ctx, mode, gameID)
	if err != nil {
		return domain.Bet{}, false
	}
	for _, b := range rows {
		if b.Decision == domain.DecisionBet && b.Status.Terminal() {
			return b, true
		}
	}
	return domain.Bet{}, false
}

func (p *Pipeline) auditEntry(ctx context.Context, et domain.AuditEventType, gameID, details, oldState, newState string) {
	err := p.audit.Append(ctx, domain.AuditEntry{
		Timestamp: time.Now().UTC(),
		EventType: et,
		GameID:    gameID,
		Details:   details,
		OldState:  oldState,
		NewState:  newState,
	})
	if err != nil {
		slog.Warn("audit write failed", "event", et, "err", err)
	}
}

func stateLabel(s domain.BankrollState) string {
	return fmt.Sprintf("%s units=%.2f peak=%.2f dd=%.4f losses=%d",
		s.Status, s.CurrentUnits, s.PeakUnits, s.MaxDrawdownPct, s.ConsecutiveLosses)
}
