package ports

import (
	"context"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
)

// SnapshotStore persists daily performance summaries, keyed by date.
// Upsert is idempotent so backfills can rerun safely.
type SnapshotStore interface {
	Upsert(ctx context.Context, snap domain.PerformanceSnapshot) error

	// Range returns snapshots with date in [from, to], oldest first.
	Range(ctx context.Context, from, to time.Time) ([]domain.PerformanceSnapshot, error)
}
