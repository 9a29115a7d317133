package domain

import (
	"fmt"
	"time"
)

// Mode separates the shadow ledger from the live one. Rows never cross:
// a live resolution must not touch shadow rows and vice versa.
type Mode string

const (
	ModeShadow Mode = "SHADOW"
	ModeLive   Mode = "LIVE"
)

// Decision is the terminal verdict of the pipeline for one candidate.
type Decision string

const (
	DecisionBet     Decision = "BET"
	DecisionPass    Decision = "PASS"
	DecisionBlocked Decision = "BLOCKED"
)

// BetStatus is the settlement lifecycle of a bet row. Only BET decisions
// enter the lifecycle at PENDING; PASS and BLOCKED rows carry NONE and
// never settle.
type BetStatus string

const (
	BetNone    BetStatus = "NONE"
	BetPending BetStatus = "PENDING"
	BetWon     BetStatus = "WON"
	BetLost    BetStatus = "LOST"
	BetPushed  BetStatus = "PUSHED"
)

// Terminal reports whether the status is a settled one.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetPushed
}

// Bet is one row of the decision trail. One row is written per evaluated
// candidate, including passes and blocks, so the full opportunity set is
// always recorded.
type Bet struct {
	ID                string
	GameID            string
	Mode              Mode
	Decision          Decision
	Probability       float64
	Odds              float64
	EV                float64
	StakeUnits        float64
	KellyFractionUsed float64
	Status            BetStatus
	PnL               float64
	Reason            string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Outcome is the actual result of a game, supplied by the outcome collaborator.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomePush Outcome = "PUSH"
)

// Candidate is one probability/price pair offered to the pipeline.
type Candidate struct {
	GameID         string
	Probability    float64 // predicted win probability, (0, 1]
	Odds           float64 // decimal odds
	SeasonProgress float64 // fraction of the season elapsed, [0, 1]
}

// Validate rejects missing or malformed input before anything is written.
func (c Candidate) Validate() error {
	if c.GameID == "" {
		return fmt.Errorf("candidate without game id: %w", ErrInvalidInput)
	}
	if c.Probability <= 0 || c.Probability > 1 {
		return fmt.Errorf("probability %v out of (0, 1]: %w", c.Probability, ErrInvalidInput)
	}
	if c.Odds <= 0 {
		return fmt.Errorf("odds %v missing or non-positive: %w", c.Odds, ErrInvalidInput)
	}
	return nil
}

// ExpectedValue is p*o - 1 for win probability p and decimal odds o.
func ExpectedValue(probability, odds float64) float64 {
	return probability*odds - 1
}
