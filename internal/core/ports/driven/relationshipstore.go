package driven

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// RelationshipStore persists patient-professional relationships.
//
// Reads must reflect the latest committed state: the resolver recomputes
// visibility on every call, and a status change (e.g. termination) must
// be visible to the very next read. No caching layer may sit between
// this store and the resolver.
type RelationshipStore interface {
	// Create stores a new relationship. Returns domain.ErrAlreadyExists
	// when a relationship for the same (patient, professional) pair
	// exists in any status.
	Create(ctx context.Context, rel *domain.Relationship) error

	// Update rewrites a relationship's mutable fields (status,
	// permissions, type, notes, end date).
	Update(ctx context.Context, rel *domain.Relationship) error

	// Get retrieves a relationship by ID.
	Get(ctx context.Context, id string) (*domain.Relationship, error)

	// FindByPair retrieves the relationship for a (patient,
	// professional) pair regardless of status.
	FindByPair(ctx context.Context, patientID, professionalID string) (*domain.Relationship, error)

	// ListByPatient returns a patient's relationships, optionally
	// filtered by status ("" means all).
	ListByPatient(ctx context.Context, patientID string, status domain.RelationshipStatus) ([]domain.Relationship, error)

	// ListByProfessional returns a professional's relationships,
	// optionally filtered by status ("" means all).
	ListByProfessional(ctx context.Context, professionalID string, status domain.RelationshipStatus) ([]domain.Relationship, error)
}

// UserStore persists known accounts. Identity issuance belongs to the
// authentication collaborator; this store only backs role validation
// and display names.
type UserStore interface {
	// Save stores or updates a user.
	Save(ctx context.Context, user *domain.User) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (*domain.User, error)
}
