package driven

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// AuditStore persists the append-only audit trail.
// Entries are never mutated or deleted.
type AuditStore interface {
	// Append stores a new entry.
	Append(ctx context.Context, entry *domain.AuditLogEntry) error

	// Query returns entries matching the query, newest first.
	Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLogEntry, error)
}
