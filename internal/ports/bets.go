package ports

import (
	"context"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// BetStore persists the decision trail. Rows are inserted once and only
// their settlement fields (status, pnl, resolved_at) ever change, through
// a check-and-set on status.
type BetStore interface {
	Create(ctx context.Context, bet domain.Bet) error

	// PendingByGame returns the unresolved BET row for a game in the given
	// mode, domain.ErrBetNotFound when none exists.
	PendingByGame(ctx context.Context, mode domain.Mode, gameID string) (domain.Bet, error)

	// ByGame returns all rows for a game in the given mode, newest first.
	ByGame(ctx context.Context, mode domain.Mode, gameID string) ([]domain.Bet, error)

	// Settle moves a bet from PENDING to a terminal status. A second
	// concurrent attempt loses the check-and-set and gets
	// domain.ErrAlreadyResolved.
	Settle(ctx context.Context, mode domain.Mode, id string, status domain.BetStatus, pnl float64, at time.Time) error

	// ByStatus returns up to limit rows in the given mode and status,
	// newest first.
	ByStatus(ctx context.Context, mode domain.Mode, status domain.BetStatus, limit int) ([]domain.Bet, error)

	// Recent returns up to limit rows in the given mode, newest first.
	Recent(ctx context.Context, mode domain.Mode, limit int) ([]domain.Bet, error)

	// ResolvedOn returns BET rows resolved on the given UTC date.
	ResolvedOn(ctx context.Context, mode domain.Mode, day time.Time) ([]domain.Bet, error)

	// LastSettled returns up to limit settled BET rows (WON or LOST),
	// most recently resolved first. Used to derive loss streaks in
	// shadow mode without touching bankroll state.
	LastSettled(ctx context.Context, mode domain.Mode, limit int) ([]domain.Bet, error)
}
