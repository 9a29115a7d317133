package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// balanceEpsilon absorbs float noise when verifying the balance chain.
const balanceEpsilon = 1e-6

// LedgerRepo is the append-only transaction log plus the singleton state row.
type LedgerRepo struct {
	db *sql.DB
}

// Init ensures the singleton state row and the opening RESET transaction
// exist. A populated store is left untouched.
func (r *LedgerRepo) Init(ctx context.Context, initialUnits, kellyFraction float64) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bankroll_state`).Scan(&count); err != nil {
		return fmt.Errorf("storage.Init: count state: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Init: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bankroll_state
			(id, current_units, initial_units, peak_units, max_drawdown_pct,
			 kelly_fraction, status, consecutive_wins, consecutive_losses, last_updated)
		VALUES (1, ?, ?, ?, 0, ?, ?, 0, 0, ?)`,
		initialUnits, initialUnits, initialUnits, kellyFraction,
		string(domain.StatusActive), encodeTime(now),
	); err != nil {
		return fmt.Errorf("storage.Init: insert state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (timestamp, type, amount, balance_after, expected_value, note)
		VALUES (?, ?, ?, ?, 0, ?)`,
		encodeTime(now), string(domain.TxReset), initialUnits, initialUnits, "initial bankroll",
	); err != nil {
		return fmt.Errorf("storage.Init: insert opening transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Init: commit: %w", err)
	}
	return nil
}

// State returns the current bankroll snapshot.
func (r *LedgerRepo) State(ctx context.Context) (domain.BankrollState, error) {
	var (
		st          domain.BankrollState
		status      string
		lastUpdated string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT current_units, initial_units, peak_units, max_drawdown_pct,
		       kelly_fraction, status, consecutive_wins, consecutive_losses, last_updated
		FROM bankroll_state WHERE id = 1`,
	).Scan(
		&st.CurrentUnits, &st.InitialUnits, &st.PeakUnits, &st.MaxDrawdownPct,
		&st.KellyFraction, &status, &st.ConsecutiveWins, &st.ConsecutiveLosses, &lastUpdated,
	)
	if err != nil {
		return domain.BankrollState{}, fmt.Errorf("storage.State: %w", err)
	}
	st.Status = domain.BankrollStatus(status)
	st.LastUpdated = decodeTime(lastUpdated)
	return st, nil
}

// Append writes one transaction and the matching state update in a single
// database transaction, verifying the balance chain first. The chain check
// is the last line of defense against a corrupted ledger; a mismatch fails
// the whole operation with domain.ErrLedgerIntegrity and writes nothing.
func (r *LedgerRepo) Append(ctx context.Context, txn domain.Transaction, next domain.BankrollState) (domain.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("storage.Append: begin tx: %w", err)
	}
	defer dbTx.Rollback()

	var prev float64
	err = dbTx.QueryRowContext(ctx,
		`SELECT balance_after FROM transactions ORDER BY id DESC LIMIT 1`,
	).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		prev = 0
	} else if err != nil {
		return domain.Transaction{}, fmt.Errorf("storage.Append: read tail: %w", err)
	}

	if math.Abs(prev+txn.Amount-txn.BalanceAfter) > balanceEpsilon {
		return domain.Transaction{}, fmt.Errorf(
			"storage.Append: balance_after %.6f != prior %.6f + amount %.6f: %w",
			txn.BalanceAfter, prev, txn.Amount, domain.ErrLedgerIntegrity)
	}
	if math.Abs(txn.BalanceAfter-next.CurrentUnits) > balanceEpsilon {
		return domain.Transaction{}, fmt.Errorf(
			"storage.Append: balance_after %.6f != state current_units %.6f: %w",
			txn.BalanceAfter, next.CurrentUnits, domain.ErrLedgerIntegrity)
	}

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (timestamp, type, amount, balance_after, expected_value, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		encodeTime(txn.Timestamp), string(txn.Type), txn.Amount, txn.BalanceAfter,
		txn.ExpectedValue, txn.Note,
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("storage.Append: insert: %w", err)
	}

	if err := updateStateTx(ctx, dbTx, next); err != nil {
		return domain.Transaction{}, fmt.Errorf("storage.Append: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return domain.Transaction{}, fmt.Errorf("storage.Append: commit: %w", err)
	}

	txn.ID, _ = res.LastInsertId()
	return txn, nil
}

// UpdateState persists a status-only mutation, without a ledger entry.
func (r *LedgerRepo) UpdateState(ctx context.Context, next domain.BankrollState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpdateState: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateStateTx(ctx, tx, next); err != nil {
		return fmt.Errorf("storage.UpdateState: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.UpdateState: commit: %w", err)
	}
	return nil
}

func updateStateTx(ctx context.Context, tx *sql.Tx, next domain.BankrollState) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bankroll_state
		SET current_units      = ?,
		    initial_units      = ?,
		    peak_units         = ?,
		    max_drawdown_pct   = ?,
		    kelly_fraction     = ?,
		    status             = ?,
		    consecutive_wins   = ?,
		    consecutive_losses = ?,
		    last_updated       = ?
		WHERE id = 1`,
		next.CurrentUnits, next.InitialUnits, next.PeakUnits, next.MaxDrawdownPct,
		next.KellyFraction, string(next.Status), next.ConsecutiveWins,
		next.ConsecutiveLosses, encodeTime(next.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	return nil
}

// Transactions returns ledger entries with timestamp in [from, to), oldest first.
func (r *LedgerRepo) Transactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, type, amount, balance_after, expected_value, COALESCE(note, '')
		FROM transactions
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY id ASC`,
		encodeTime(from), encodeTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.Transactions: query: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			ts     string
			txType string
		)
		if err := rows.Scan(&t.ID, &ts, &txType, &t.Amount, &t.BalanceAfter, &t.ExpectedValue, &t.Note); err != nil {
			return nil, fmt.Errorf("storage.Transactions: scan row: %w", err)
		}
		t.Timestamp = decodeTime(ts)
		t.Type = domain.TransactionType(txType)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// BalanceAsOf returns the last balance strictly before t. With no prior
// entries the initial bankroll is the balance.
func (r *LedgerRepo) BalanceAsOf(ctx context.Context, t time.Time) (float64, error) {
	var balance float64
	err := r.db.QueryRowContext(ctx, `
		SELECT balance_after FROM transactions
		WHERE timestamp < ?
		ORDER BY id DESC LIMIT 1`,
		encodeTime(t),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		st, serr := r.State(ctx)
		if serr != nil {
			return 0, serr
		}
		return st.InitialUnits, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.BalanceAsOf: %w", err)
	}
	return balance, nil
}

// PeakAsOf returns the highest balance at or before t, floored at the
// initial bankroll.
func (r *LedgerRepo) PeakAsOf(ctx context.Context, t time.Time) (float64, error) {
	var peak sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(balance_after) FROM transactions WHERE timestamp <= ?`,
		encodeTime(t),
	).Scan(&peak)
	if err != nil {
		return 0, fmt.Errorf("storage.PeakAsOf: %w", err)
	}

	st, err := r.State(ctx)
	if err != nil {
		return 0, err
	}
	if !peak.Valid || peak.Float64 < st.InitialUnits {
		return st.InitialUnits, nil
	}
	return peak.Float64, nil
}
