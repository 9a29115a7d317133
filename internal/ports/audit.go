package ports

import (
	"context"

	"github.com/hoopsight/bankguard/internal/domain"
)

// AuditLog is the immutable behavior log. Append-only: no update or delete
// is reachable from pipeline code.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
