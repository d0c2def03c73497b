package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/logger"
)

// VisibilityResolver computes, per request, the set of patient ids
// whose chunks a caller may retrieve. The set is never cached:
// relationship changes must take effect on the very next call, so each
// resolution reads relationship state fresh from the store.
type VisibilityResolver struct {
	relationships driven.RelationshipStore
}

// NewVisibilityResolver creates a visibility resolver.
func NewVisibilityResolver(relationships driven.RelationshipStore) *VisibilityResolver {
	return &VisibilityResolver{relationships: relationships}
}

// Resolve computes the caller's visibility set, optionally scoped to a
// single patient.
//
// Patients always see exactly themselves; a patientID naming anyone
// else is rejected. Professionals scoped to a patient get that patient
// iff an active relationship grants document access, and the rejection
// is a uniform domain.ErrForbidden so a professional cannot probe
// which patient ids exist. An unscoped professional gets every patient
// with a granting relationship, which may be the empty set.
func (r *VisibilityResolver) Resolve(
	ctx context.Context, caller domain.Identity, patientID string,
) (domain.VisibilitySet, error) {
	if caller.UserID == "" || !caller.Role.Valid() {
		return nil, fmt.Errorf("%w: missing or invalid caller identity", domain.ErrInvalidInput)
	}

	switch caller.Role {
	case domain.RolePatient:
		if patientID != "" && patientID != caller.UserID {
			logger.Debug("Visibility: patient %s asked for scope %s, denying", caller.UserID, patientID)
			return nil, domain.ErrForbidden
		}
		return domain.NewVisibilitySet(caller.UserID), nil

	case domain.RoleProfessional:
		if patientID != "" {
			return r.resolveScoped(ctx, caller.UserID, patientID)
		}
		return r.resolveUnscoped(ctx, caller.UserID)
	}

	return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, caller.Role)
}

// resolveScoped checks a single (patient, professional) pair.
func (r *VisibilityResolver) resolveScoped(
	ctx context.Context, professionalID, patientID string,
) (domain.VisibilitySet, error) {
	rel, err := r.relationships.FindByPair(ctx, patientID, professionalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Same rejection as an existing pair without access.
			return nil, domain.ErrForbidden
		}
		return nil, fmt.Errorf("resolve visibility: %w", err)
	}

	if !rel.GrantsDocumentAccess() {
		logger.Debug("Visibility: relationship %s does not grant access (status=%s)", rel.ID, rel.Status)
		return nil, domain.ErrForbidden
	}

	return domain.NewVisibilitySet(patientID), nil
}

// resolveUnscoped collects every patient the professional can see.
func (r *VisibilityResolver) resolveUnscoped(
	ctx context.Context, professionalID string,
) (domain.VisibilitySet, error) {
	rels, err := r.relationships.ListByProfessional(ctx, professionalID, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("resolve visibility: %w", err)
	}

	set := domain.NewVisibilitySet()
	for _, rel := range rels {
		if rel.GrantsDocumentAccess() {
			set[rel.PatientID] = struct{}{}
		}
	}

	logger.Debug("Visibility: professional %s sees %d patients", professionalID, len(set))
	return set, nil
}
