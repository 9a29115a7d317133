package ports

import (
	"context"

	"github.com/hoopsight/bankguard/internal/domain"
)

// Notifier presents engine state to the operator.
type Notifier interface {
	// Report renders the current bankroll, recent decisions and the
	// performance series. The console implementation prints formatted
	// tables.
	Report(ctx context.Context, state domain.BankrollState, bets []domain.Bet, snaps []domain.PerformanceSnapshot) error
}

// OutcomeSource yields final results for games with pending bets.
// It is the boundary to the scheduling/outcome collaborator.
type OutcomeSource interface {
	Outcomes(ctx context.Context, gameIDs []string) (map[string]domain.Outcome, error)
}
