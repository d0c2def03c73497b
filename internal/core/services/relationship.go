package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure RelationshipService implements the interface.
var _ driving.RelationshipService = (*RelationshipService)(nil)

// DefaultRelationshipType is used when a create request leaves the
// clinical relationship type empty.
const DefaultRelationshipType = "primary_care"

// RelationshipService manages patient-professional links. Relationships
// are never hard-deleted; termination is a final status change, so the
// audit trail keeps referring to a real record.
type RelationshipService struct {
	relationships driven.RelationshipStore
	users         driven.UserStore
	audit         *AuditService
}

// NewRelationshipService creates a relationship service.
func NewRelationshipService(
	relationships driven.RelationshipStore,
	users driven.UserStore,
	audit *AuditService,
) *RelationshipService {
	return &RelationshipService{
		relationships: relationships,
		users:         users,
		audit:         audit,
	}
}

// Create validates both endpoints and stores a new relationship. The
// caller must be one of the endpoints.
func (s *RelationshipService) Create(
	ctx context.Context, caller domain.Identity, req driving.CreateRelationshipRequest,
) (*domain.Relationship, error) {
	if req.PatientID == "" || req.ProfessionalID == "" {
		return nil, fmt.Errorf("%w: both patient and professional ids are required", domain.ErrInvalidInput)
	}
	if req.PatientID == req.ProfessionalID {
		return nil, fmt.Errorf("%w: a user cannot have a relationship with themselves", domain.ErrInvalidInput)
	}
	if caller.UserID != req.PatientID && caller.UserID != req.ProfessionalID {
		return nil, domain.ErrForbidden
	}

	if err := s.checkRole(ctx, req.PatientID, domain.RolePatient); err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, req.ProfessionalID, domain.RoleProfessional); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	relType := req.Type
	if relType == "" {
		relType = DefaultRelationshipType
	}

	now := time.Now().UTC()
	rel := &domain.Relationship{
		ID:             uuid.NewString(),
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		Status:         status,
		Permissions:    req.Permissions,
		Type:           relType,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.relationships.Create(ctx, rel); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: relationship between %s and %s",
				domain.ErrAlreadyExists, req.PatientID, req.ProfessionalID)
		}
		return nil, fmt.Errorf("create relationship: %w", err)
	}

	logger.Info("Created relationship %s (%s <-> %s, status=%s)",
		rel.ID, rel.PatientID, rel.ProfessionalID, rel.Status)
	s.audit.Record(ctx, caller.UserID, domain.ActionRelationshipCreated,
		domain.ResourceRelationship, rel.ID, true, map[string]any{
			"patient_id":      rel.PatientID,
			"professional_id": rel.ProfessionalID,
			"status":          string(rel.Status),
		})

	return rel, nil
}

// SetStatus transitions a relationship's lifecycle state. Either party
// may change it, but a terminated relationship is final.
func (s *RelationshipService) SetStatus(
	ctx context.Context, caller domain.Identity, relationshipID string, status domain.RelationshipStatus,
) (*domain.Relationship, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	rel, err := s.getForParty(ctx, caller, relationshipID)
	if err != nil {
		return nil, err
	}
	if rel.Status == domain.StatusTerminated {
		return nil, fmt.Errorf("%w: relationship is terminated", domain.ErrInvalidInput)
	}
	if status == domain.StatusTerminated {
		return nil, fmt.Errorf("%w: use Terminate to end a relationship", domain.ErrInvalidInput)
	}

	rel.Status = status
	rel.UpdatedAt = time.Now().UTC()
	if err := s.relationships.Update(ctx, rel); err != nil {
		return nil, fmt.Errorf("update relationship: %w", err)
	}

	s.audit.Record(ctx, caller.UserID, domain.ActionRelationshipUpdated,
		domain.ResourceRelationship, rel.ID, true, map[string]any{"status": string(status)})
	return rel, nil
}

// SetPermissions replaces the grant set. Only the patient controls what
// their professional may do.
func (s *RelationshipService) SetPermissions(
	ctx context.Context, caller domain.Identity, relationshipID string, perms domain.Permissions,
) (*domain.Relationship, error) {
	rel, err := s.getForParty(ctx, caller, relationshipID)
	if err != nil {
		return nil, err
	}
	if caller.UserID != rel.PatientID {
		return nil, domain.ErrForbidden
	}
	if rel.Status == domain.StatusTerminated {
		return nil, fmt.Errorf("%w: relationship is terminated", domain.ErrInvalidInput)
	}

	rel.Permissions = perms
	rel.UpdatedAt = time.Now().UTC()
	if err := s.relationships.Update(ctx, rel); err != nil {
		return nil, fmt.Errorf("update relationship: %w", err)
	}

	s.audit.Record(ctx, caller.UserID, domain.ActionRelationshipUpdated,
		domain.ResourceRelationship, rel.ID, true, map[string]any{
			"view_documents": perms.ViewDocuments,
			"add_notes":      perms.AddNotes,
			"request_tests":  perms.RequestTests,
		})
	return rel, nil
}

// Terminate permanently ends a relationship. Either party may do it;
// the reason is appended to the notes so it survives with the record.
func (s *RelationshipService) Terminate(
	ctx context.Context, caller domain.Identity, relationshipID, reason string,
) error {
	rel, err := s.getForParty(ctx, caller, relationshipID)
	if err != nil {
		return err
	}
	if rel.Status == domain.StatusTerminated {
		return fmt.Errorf("%w: relationship is already terminated", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	rel.Status = domain.StatusTerminated
	rel.UpdatedAt = now
	rel.EndedAt = &now
	if reason != "" {
		note := fmt.Sprintf("Terminated: %s", reason)
		if rel.Notes != "" {
			rel.Notes = strings.TrimRight(rel.Notes, "\n") + "\n" + note
		} else {
			rel.Notes = note
		}
	}

	if err := s.relationships.Update(ctx, rel); err != nil {
		return fmt.Errorf("terminate relationship: %w", err)
	}

	logger.Info("Terminated relationship %s", rel.ID)
	s.audit.Record(ctx, caller.UserID, domain.ActionRelationshipTerminated,
		domain.ResourceRelationship, rel.ID, true, map[string]any{"reason": reason})
	return nil
}

// Get retrieves a relationship the caller is party to.
func (s *RelationshipService) Get(
	ctx context.Context, caller domain.Identity, relationshipID string,
) (*domain.Relationship, error) {
	return s.getForParty(ctx, caller, relationshipID)
}

// List returns the caller's relationships, optionally filtered by status.
func (s *RelationshipService) List(
	ctx context.Context, caller domain.Identity, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	switch caller.Role {
	case domain.RolePatient:
		return s.relationships.ListByPatient(ctx, caller.UserID, status)
	case domain.RoleProfessional:
		return s.relationships.ListByProfessional(ctx, caller.UserID, status)
	}
	return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, caller.Role)
}

// getForParty loads a relationship and rejects callers who are not one
// of its endpoints.
func (s *RelationshipService) getForParty(
	ctx context.Context, caller domain.Identity, relationshipID string,
) (*domain.Relationship, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("%w: missing relationship id", domain.ErrInvalidInput)
	}

	rel, err := s.relationships.Get(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	if caller.UserID != rel.PatientID && caller.UserID != rel.ProfessionalID {
		return nil, domain.ErrForbidden
	}
	return rel, nil
}

// checkRole verifies a relationship endpoint exists and holds the
// expected role.
func (s *RelationshipService) checkRole(ctx context.Context, userID string, want domain.Role) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown user %s", domain.ErrInvalidInput, userID)
		}
		return fmt.Errorf("look up user %s: %w", userID, err)
	}
	if user.Role != want {
		return fmt.Errorf("%w: user %s is not a %s", domain.ErrInvalidInput, userID, want)
	}
	return nil
}
