package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

const betColumns = `id, game_id, mode, decision, probability, odds, ev,
	stake_units, kelly_used, status, pnl, COALESCE(reason, ''), created_at, resolved_at`

// BetRepo is the decision trail store.
type BetRepo struct {
	db *sql.DB
}

// Create inserts one decision row. Rows are never updated except through
// Settle.
func (r *BetRepo) Create(ctx context.Context, bet domain.Bet) error {
	var resolvedAt any
	if bet.ResolvedAt != nil {
		resolvedAt = encodeTime(*bet.ResolvedAt)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bets
			(id, game_id, mode, decision, probability, odds, ev,
			 stake_units, kelly_used, status, pnl, reason, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bet.ID, bet.GameID, string(bet.Mode), string(bet.Decision),
		bet.Probability, bet.Odds, bet.EV, bet.StakeUnits, bet.KellyFractionUsed,
		string(bet.Status), bet.PnL, bet.Reason, encodeTime(bet.CreatedAt), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.Create: insert bet %s: %w", bet.ID, err)
	}
	return nil
}

// PendingByGame finds the unresolved BET row for a game within one mode.
func (r *BetRepo) PendingByGame(ctx context.Context, mode domain.Mode, gameID string) (domain.Bet, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ? AND game_id = ? AND decision = 'BET' AND status = 'PENDING'
		ORDER BY created_at DESC LIMIT 1`,
		string(mode), gameID,
	)
	bet, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, fmt.Errorf("storage.PendingByGame: game %s mode %s: %w",
			gameID, mode, domain.ErrBetNotFound)
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("storage.PendingByGame: %w", err)
	}
	return bet, nil
}

// ByGame returns every row for a game within one mode, newest first.
func (r *BetRepo) ByGame(ctx context.Context, mode domain.Mode, gameID string) ([]domain.Bet, error) {
	return r.queryBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ? AND game_id = ?
		ORDER BY created_at DESC`,
		string(mode), gameID)
}

// Settle is the check-and-set from PENDING to a terminal status. Losing
// the race is reported as domain.ErrAlreadyResolved, not as a failure.
func (r *BetRepo) Settle(ctx context.Context, mode domain.Mode, id string, status domain.BetStatus, pnl float64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets SET status = ?, pnl = ?, resolved_at = ?
		WHERE id = ? AND mode = ? AND status = 'PENDING'`,
		string(status), pnl, encodeTime(at), id, string(mode),
	)
	if err != nil {
		return fmt.Errorf("storage.Settle: update bet %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.Settle: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.Settle: bet %s: %w", id, domain.ErrAlreadyResolved)
	}
	return nil
}

// ByStatus returns up to limit rows in one mode and status, newest first.
func (r *BetRepo) ByStatus(ctx context.Context, mode domain.Mode, status domain.BetStatus, limit int) ([]domain.Bet, error) {
	return r.queryBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ? AND status = ?
		ORDER BY created_at DESC LIMIT ?`,
		string(mode), string(status), limit)
}

// Recent returns up to limit rows in one mode, newest first.
func (r *BetRepo) Recent(ctx context.Context, mode domain.Mode, limit int) ([]domain.Bet, error) {
	return r.queryBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ?
		ORDER BY created_at DESC LIMIT ?`,
		string(mode), limit)
}

// ResolvedOn returns BET rows resolved on the given UTC date.
func (r *BetRepo) ResolvedOn(ctx context.Context, mode domain.Mode, day time.Time) ([]domain.Bet, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	return r.queryBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ? AND decision = 'BET'
		  AND resolved_at >= ? AND resolved_at < ?
		ORDER BY resolved_at ASC`,
		string(mode), encodeTime(start), encodeTime(end))
}

// LastSettled returns recently settled BET rows (WON or LOST), newest
// resolution first.
func (r *BetRepo) LastSettled(ctx context.Context, mode domain.Mode, limit int) ([]domain.Bet, error) {
	return r.queryBets(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE mode = ? AND decision = 'BET' AND status IN ('WON', 'LOST')
		ORDER BY resolved_at DESC, id DESC LIMIT ?`,
		string(mode), limit)
}

func (r *BetRepo) queryBets(ctx context.Context, query string, args ...any) ([]domain.Bet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan bet row: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(r rowScanner) (domain.Bet, error) {
	var (
		bet        domain.Bet
		mode       string
		decision   string
		status     string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := r.Scan(
		&bet.ID, &bet.GameID, &mode, &decision, &bet.Probability, &bet.Odds,
		&bet.EV, &bet.StakeUnits, &bet.KellyFractionUsed, &status, &bet.PnL,
		&bet.Reason, &createdAt, &resolvedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	bet.Mode = domain.Mode(mode)
	bet.Decision = domain.Decision(decision)
	bet.Status = domain.BetStatus(status)
	bet.CreatedAt = decodeTime(createdAt)
	if resolvedAt.Valid {
		t := decodeTime(resolvedAt.String)
		bet.ResolvedAt = &t
	}
	return bet, nil
}
