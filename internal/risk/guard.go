package risk

import (
	"fmt"

	"github.com/hoopsight/bankguard/internal/domain"
)

// Block reasons, recorded verbatim on bet rows and audit entries.
const (
	ReasonEarlySeason    = "early_season"
	ReasonLowEV          = "low_ev"
	ReasonCircuitBreaker = "circuit_breaker"
	ReasonPaused         = "paused"
	ReasonBankrupt       = "bankrupt"

	// ReasonDrawdownDerisk annotates an allowed bet whose fraction was
	// forced down by the drawdown rule.
	ReasonDrawdownDerisk = "drawdown_derisk"
)

// Config holds the guard thresholds. Comparisons against EVFloor and
// DrawdownThreshold are inclusive: ev equal to the floor blocks, drawdown
// equal to the threshold de-risks.
type Config struct {
	EVFloor              float64
	DrawdownThreshold    float64
	DrawdownFraction     float64
	MaxConsecutiveLosses int
	EarlySeasonCutoff    float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		EVFloor:              0.03,
		DrawdownThreshold:    0.20,
		DrawdownFraction:     0.10,
		MaxConsecutiveLosses: 10,
		EarlySeasonCutoff:    0.25,
	}
}

// Input is one candidate as seen by the guard. The loss streak is supplied
// by the caller so the guard itself stays pure and mode-agnostic.
type Input struct {
	Probability       float64
	Odds              float64
	EV                float64
	SeasonProgress    float64
	ConsecutiveLosses int
}

// Verdict is the guard's decision for one candidate.
type Verdict struct {
	Allowed  bool
	Reason   string  // block reason, or ReasonDrawdownDerisk on an override
	Fraction float64 // effective kelly fraction when allowed
	Override bool    // fraction was forced by the drawdown rule
	Pause    bool    // caller must transition the bankroll to PAUSED
}

// rule inspects one candidate. A non-nil verdict terminates the chain.
type rule func(state domain.BankrollState, in Input) *Verdict

// Guard is the ordered veto chain in front of stake sizing. It is pure:
// re-evaluated from a fresh state snapshot per candidate, with no memory
// between calls.
type Guard struct {
	cfg   Config
	rules []rule
}

// New builds the guard with its rules in fixed order. First veto wins.
func New(cfg Config) *Guard {
	g := &Guard{cfg: cfg}
	g.rules = []rule{
		g.statusGate,
		g.earlySeason,
		g.lowEV,
		g.circuitBreaker,
		g.drawdownDerisk,
	}
	return g
}

// Evaluate runs the chain. When no rule fires the candidate is allowed at
// the bankroll's configured default fraction.
func (g *Guard) Evaluate(state domain.BankrollState, in Input) Verdict {
	for _, r := range g.rules {
		if v := r(state, in); v != nil {
			return *v
		}
	}
	return Verdict{Allowed: true, Fraction: state.KellyFraction}
}

// statusGate blocks everything while the bankroll is not ACTIVE. A paused
// engine stays paused until the operator resets the breaker.
func (g *Guard) statusGate(state domain.BankrollState, _ Input) *Verdict {
	switch state.Status {
	case domain.StatusPaused:
		return &Verdict{Reason: ReasonPaused}
	case domain.StatusBankrupt:
		return &Verdict{Reason: ReasonBankrupt}
	}
	return nil
}

// earlySeason blocks candidates before enough of the season has elapsed
// for win probabilities to stabilize.
func (g *Guard) earlySeason(_ domain.BankrollState, in Input) *Verdict {
	if in.SeasonProgress < g.cfg.EarlySeasonCutoff {
		return &Verdict{Reason: ReasonEarlySeason}
	}
	return nil
}

// lowEV blocks candidates at or below the expected-value floor.
func (g *Guard) lowEV(_ domain.BankrollState, in Input) *Verdict {
	if in.EV <= g.cfg.EVFloor {
		return &Verdict{Reason: ReasonLowEV}
	}
	return nil
}

// circuitBreaker blocks after a run of consecutive losses and demands a
// transition to PAUSED, which only an operator can undo.
func (g *Guard) circuitBreaker(_ domain.BankrollState, in Input) *Verdict {
	if in.ConsecutiveLosses >= g.cfg.MaxConsecutiveLosses {
		return &Verdict{Reason: ReasonCircuitBreaker, Pause: true}
	}
	return nil
}

// drawdownDerisk allows the bet but forces the reduced fraction while the
// bankroll sits at or past the drawdown threshold. No stickiness: the rule
// re-reads the threshold condition from state on every candidate.
func (g *Guard) drawdownDerisk(state domain.BankrollState, _ Input) *Verdict {
	if state.MaxDrawdownPct >= g.cfg.DrawdownThreshold {
		return &Verdict{
			Allowed:  true,
			Reason:   ReasonDrawdownDerisk,
			Fraction: g.cfg.DrawdownFraction,
			Override: true,
		}
	}
	return nil
}

// Describe renders a verdict for audit details.
func (v Verdict) Describe(in Input) string {
	if v.Allowed {
		return fmt.Sprintf("allowed fraction=%.2f override=%t ev=%.4f", v.Fraction, v.Override, in.EV)
	}
	return fmt.Sprintf("blocked reason=%s ev=%.4f losses=%d progress=%.2f",
		v.Reason, in.EV, in.ConsecutiveLosses, in.SeasonProgress)
}
