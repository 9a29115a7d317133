package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hoopsight/bankguard/internal/domain"
)

// AuditRepo is the immutable behavior log.
type AuditRepo struct {
	db *sql.DB
}

// Append writes one audit entry. There is no update or delete path.
func (r *AuditRepo) Append(ctx context.Context, entry domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, event_type, game_id, details, old_state, new_state)
		VALUES (?, ?, ?, ?, ?, ?)`,
		encodeTime(entry.Timestamp), string(entry.EventType),
		entry.GameID, entry.Details, entry.OldState, entry.NewState,
	)
	if err != nil {
		return fmt.Errorf("storage.Append: insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit audit entries, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, event_type, COALESCE(game_id, ''),
		       COALESCE(details, ''), COALESCE(old_state, ''), COALESCE(new_state, '')
		FROM audit_log
		ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.Recent: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			ts        string
			eventType string
		)
		if err := rows.Scan(&e.ID, &ts, &eventType, &e.GameID, &e.Details, &e.OldState, &e.NewState); err != nil {
			return nil, fmt.Errorf("storage.Recent: scan row: %w", err)
		}
		e.Timestamp = decodeTime(ts)
		e.EventType = domain.AuditEventType(eventType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
