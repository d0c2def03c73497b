package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// DocumentService exposes read and delete operations over ingested
// documents, permission-checked through the caller's visibility set.
type DocumentService interface {
	// List returns the documents the caller may see. Professionals can
	// scope to one patient with patientID; patients must leave it empty
	// or pass their own id.
	List(ctx context.Context, caller domain.Identity, patientID string) ([]domain.Document, error)

	// Get retrieves one document the caller may see.
	Get(ctx context.Context, caller domain.Identity, documentID string) (*domain.Document, error)

	// Download returns the original upload bytes. Requires a configured
	// BlobStore.
	Download(ctx context.Context, caller domain.Identity, documentID string) ([]byte, *domain.Document, error)

	// Delete removes a document with all derived state: chunk rows,
	// vector points and retained bytes. Only the owner may delete.
	Delete(ctx context.Context, caller domain.Identity, documentID string) error
}

// AuditReader exposes the audit trail to its subjects.
type AuditReader interface {
	// Summary aggregates who accessed a patient's records over the
	// window ending now. Patients may summarise themselves; a
	// professional needs an active, document-viewable relationship.
	Summary(ctx context.Context, caller domain.Identity, patientID string, window time.Duration) (*domain.AccessSummary, error)

	// Recent returns the caller's own recent audit entries.
	Recent(ctx context.Context, caller domain.Identity, limit int) ([]domain.AuditLogEntry, error)
}
