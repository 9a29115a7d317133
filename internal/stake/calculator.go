package stake

import (
	"fmt"
	"math"

	"github.com/hoopsight/bankguard/internal/domain"
)

// Config holds the sizing limits.
type Config struct {
	MaxStakePct float64 // hard cap as a fraction of the bankroll
	MinUnit     float64 // ledger minimum unit; stakes are floored to it
}

// DefaultConfig returns the production sizing limits.
func DefaultConfig() Config {
	return Config{
		MaxStakePct: 0.05,
		MinUnit:     0.01,
	}
}

// Result carries the stake and how it was derived.
type Result struct {
	FullKelly       float64 // f* = (p*o - 1) / (o - 1), clamped to [0, 1]
	AppliedFraction float64 // f* scaled by the effective kelly fraction
	StakeUnits      float64
	Capped          bool // the hard cap bound
	Zeroed          bool // rounded below the minimum unit; equivalent to PASS
}

// Calculate sizes a bet with the fractional Kelly criterion.
//
// The [0, 1] clamp on f* is a floor under the upstream EV check: a guard
// bug upstream must degrade to a zero stake, never a negative or
// over-bankroll one.
func Calculate(probability, odds, kellyFraction, bankroll float64, cfg Config) (Result, error) {
	if odds <= 1.0 {
		return Result{}, fmt.Errorf("stake.Calculate: odds %.4f: %w", odds, domain.ErrInvalidOdds)
	}

	full := (probability*odds - 1) / (odds - 1)
	full = math.Max(0, math.Min(full, 1))

	applied := full * kellyFraction

	stakeUnits := applied * bankroll
	capUnits := cfg.MaxStakePct * bankroll
	capped := false
	if stakeUnits > capUnits {
		stakeUnits = capUnits
		capped = true
	}

	// Floor to the ledger's minimum unit.
	if cfg.MinUnit > 0 {
		stakeUnits = math.Floor(stakeUnits/cfg.MinUnit) * cfg.MinUnit
	}

	zeroed := false
	if stakeUnits < cfg.MinUnit || stakeUnits <= 0 {
		stakeUnits = 0
		zeroed = true
	}

	return Result{
		FullKelly:       full,
		AppliedFraction: applied,
		StakeUnits:      stakeUnits,
		Capped:          capped,
		Zeroed:          zeroed,
	}, nil
}
