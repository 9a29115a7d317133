package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// Operator surface: explicit, audited actions that are allowed even while
// the pipeline is halted. Everything here holds the writer lock.

// Reset re-seeds the bankroll at initialUnits, clears drawdown, streaks and
// any halt latch, and reactivates the engine. The reset is itself a ledger
// entry whose amount bridges from the ledger tail, so full replay still
// reproduces the balance across resets.
func (p *Pipeline) Reset(ctx context.Context, initialUnits float64) error {
	if initialUnits <= 0 {
		return fmt.Errorf("pipeline.Reset: initial units %v: %w", initialUnits, domain.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.ledger.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline.Reset: %w", err)
	}
	now := time.Now().UTC()
	tail, err := p.ledger.BalanceAsOf(ctx, now.Add(time.Second))
	if err != nil {
		return fmt.Errorf("pipeline.Reset: %w", err)
	}

	next := domain.BankrollState{
		CurrentUnits:  initialUnits,
		InitialUnits:  initialUnits,
		PeakUnits:     initialUnits,
		KellyFraction: state.KellyFraction,
		Status:        domain.StatusActive,
		LastUpdated:   now,
	}
	_, err = p.ledger.Append(ctx, domain.Transaction{
		Timestamp:    now,
		Type:         domain.TxReset,
		Amount:       initialUnits - tail,
		BalanceAfter: initialUnits,
		Note:         "operator reset",
	}, next)
	if err != nil {
		return fmt.Errorf("pipeline.Reset: %w", err)
	}

	p.halted = false
	p.auditEntry(ctx, domain.AuditStateChange, "",
		fmt.Sprintf("operator reset to %.2f units", initialUnits),
		stateLabel(state), stateLabel(next))
	slog.Info("bankroll reset", "units", initialUnits)
	return nil
}

// SetLive toggles between shadow and live execution. The switch is audited;
// pending bets keep the mode they were created in.
func (p *Pipeline) SetLive(ctx context.Context, live bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live == live {
		return nil
	}
	old := p.mode()
	p.live = live
	p.auditEntry(ctx, domain.AuditStateChange, "",
		fmt.Sprintf("mode %s -> %s", old, p.mode()), string(old), string(p.mode()))
	slog.Info("execution mode changed", "mode", p.mode())
	return nil
}

// ResumeFromPause undoes a circuit-breaker pause: PAUSED back to ACTIVE
// with the loss streak cleared, so the breaker does not re-trip on the
// next candidate.
func (p *Pipeline) ResumeFromPause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.ledger.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline.ResumeFromPause: %w", err)
	}
	if state.Status != domain.StatusPaused {
		return fmt.Errorf("pipeline.ResumeFromPause: status %s: %w", state.Status, domain.ErrInvalidInput)
	}

	next := state
	next.Status = domain.StatusActive
	next.ConsecutiveLosses = 0
	next.LastUpdated = time.Now().UTC()
	if err := p.ledger.UpdateState(ctx, next); err != nil {
		return fmt.Errorf("pipeline.ResumeFromPause: %w", err)
	}

	p.auditEntry(ctx, domain.AuditStateChange, "",
		"operator resume from pause", stateLabel(state), stateLabel(next))
	slog.Info("bankroll resumed")
	return nil
}

// Adjust books a manual signed capital correction as an ADJUSTMENT entry.
func (p *Pipeline) Adjust(ctx context.Context, amount float64, note string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.ledger.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline.Adjust: %w", err)
	}
	now := time.Now().UTC()
	next := state.Applied(amount, now)
	if next.CurrentUnits < 0 {
		return fmt.Errorf("pipeline.Adjust: %+.2f would overdraw %.2f units: %w",
			amount, state.CurrentUnits, domain.ErrInvalidInput)
	}
	if next.CurrentUnits == 0 {
		next.Status = domain.StatusBankrupt
	}

	_, err = p.ledger.Append(ctx, domain.Transaction{
		Timestamp:    now,
		Type:         domain.TxAdjustment,
		Amount:       amount,
		BalanceAfter: next.CurrentUnits,
		Note:         note,
	}, next)
	if err != nil {
		return fmt.Errorf("pipeline.Adjust: %w", err)
	}

	p.auditEntry(ctx, domain.AuditStateChange, "",
		fmt.Sprintf("manual adjustment %+.2f: %s", amount, note),
		stateLabel(state), stateLabel(next))
	slog.Info("manual adjustment booked", "amount", amount, "note", note)
	return nil
}
