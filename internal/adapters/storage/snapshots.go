package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// SnapshotRepo stores one performance summary per date.
type SnapshotRepo struct {
	db *sql.DB
}

// Upsert writes a snapshot, overwriting any existing row for the date.
// Reruns and backfills are therefore idempotent.
func (r *SnapshotRepo) Upsert(ctx context.Context, snap domain.PerformanceSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO performance_snapshots
			(date, total_bets, win_rate, roi_percent, profit_units,
			 bankroll_growth, expected_profit_units, closing_balance, drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_bets            = excluded.total_bets,
			win_rate              = excluded.win_rate,
			roi_percent           = excluded.roi_percent,
			profit_units          = excluded.profit_units,
			bankroll_growth       = excluded.bankroll_growth,
			expected_profit_units = excluded.expected_profit_units,
			closing_balance       = excluded.closing_balance,
			drawdown              = excluded.drawdown`,
		encodeDate(snap.Date), snap.TotalBets, snap.WinRate, snap.ROIPercent,
		snap.ProfitUnits, snap.BankrollGrowth, snap.ExpectedProfitUnits,
		snap.ClosingBalance, snap.Drawdown,
	)
	if err != nil {
		return fmt.Errorf("storage.Upsert: snapshot %s: %w", encodeDate(snap.Date), err)
	}
	return nil
}

// Range returns snapshots with date in [from, to], oldest first.
func (r *SnapshotRepo) Range(ctx context.Context, from, to time.Time) ([]domain.PerformanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, total_bets, win_rate, roi_percent, profit_units,
		       bankroll_growth, expected_profit_units, closing_balance, drawdown
		FROM performance_snapshots
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		encodeDate(from), encodeDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.Range: query: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PerformanceSnapshot
	for rows.Next() {
		var (
			s    domain.PerformanceSnapshot
			date string
		)
		if err := rows.Scan(&date, &s.TotalBets, &s.WinRate, &s.ROIPercent,
			&s.ProfitUnits, &s.BankrollGrowth, &s.ExpectedProfitUnits,
			&s.ClosingBalance, &s.Drawdown); err != nil {
			return nil, fmt.Errorf("storage.Range: scan row: %w", err)
		}
		s.Date = decodeDate(date)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
