package driving

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// CreateRelationshipRequest describes a new patient-professional link.
type CreateRelationshipRequest struct {
	// PatientID and ProfessionalID are the two endpoints.
	PatientID      string
	ProfessionalID string

	// Type describes the clinical relationship; defaults to
	// "primary_care" when empty.
	Type string

	// Status is the initial lifecycle state; defaults to StatusPending
	// when empty.
	Status domain.RelationshipStatus

	// Permissions is the initial grant set.
	Permissions domain.Permissions

	// Notes is optional free text.
	Notes string
}

// RelationshipService manages patient-professional relationships.
// All mutations are audited. Relationships are never hard-deleted;
// termination is a status change that preserves audit history.
type RelationshipService interface {
	// Create validates both endpoints and stores a new relationship.
	Create(ctx context.Context, caller domain.Identity, req CreateRelationshipRequest) (*domain.Relationship, error)

	// SetStatus transitions a relationship's lifecycle state.
	SetStatus(ctx context.Context, caller domain.Identity, relationshipID string, status domain.RelationshipStatus) (*domain.Relationship, error)

	// SetPermissions replaces a relationship's grant set.
	SetPermissions(ctx context.Context, caller domain.Identity, relationshipID string, perms domain.Permissions) (*domain.Relationship, error)

	// Terminate permanently ends a relationship, recording the reason.
	Terminate(ctx context.Context, caller domain.Identity, relationshipID, reason string) error

	// Get retrieves a relationship the caller is party to.
	Get(ctx context.Context, caller domain.Identity, relationshipID string) (*domain.Relationship, error)

	// List returns the caller's relationships, optionally filtered by
	// status ("" means all).
	List(ctx context.Context, caller domain.Identity, status domain.RelationshipStatus) ([]domain.Relationship, error)
}
