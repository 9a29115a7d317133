package ports

import (
	"context"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// Ledger is the capital store: an append-only transaction log plus the
// singleton bankroll state row. The interface exposes no way to edit or
// delete a transaction; append-only is enforced at this boundary, not by
// convention.
type Ledger interface {
	// Init creates the singleton state and the opening RESET transaction
	// if the store is empty. Idempotent.
	Init(ctx context.Context, initialUnits, kellyFraction float64) error

	// State returns a snapshot of the current bankroll.
	State(ctx context.Context) (domain.BankrollState, error)

	// Append writes one transaction and the matching state update
	// atomically. It verifies that tx.BalanceAfter equals the previous
	// entry's balance plus tx.Amount and matches next.CurrentUnits,
	// returning domain.ErrLedgerIntegrity otherwise.
	Append(ctx context.Context, tx domain.Transaction, next domain.BankrollState) (domain.Transaction, error)

	// UpdateState persists a status-only mutation (pause, resume,
	// counter reset) without booking a transaction.
	UpdateState(ctx context.Context, next domain.BankrollState) error

	// Transactions returns entries with timestamp in [from, to), oldest first.
	Transactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)

	// BalanceAsOf returns the last balance_after strictly before t,
	// or the initial bankroll when no transaction precedes t.
	BalanceAsOf(ctx context.Context, t time.Time) (float64, error)

	// PeakAsOf returns the highest balance_after at or before t,
	// floored at the initial bankroll.
	PeakAsOf(ctx context.Context, t time.Time) (float64, error)
}
