package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure AuditService implements the interface.
var _ driving.AuditReader = (*AuditService)(nil)

// AuditService records access attempts and exposes the trail to its
// subjects. Recording is best-effort relative to the operation being
// audited: a failed append is logged loudly but never turns a
// successful operation into a failed one.
type AuditService struct {
	store         driven.AuditStore
	relationships driven.RelationshipStore
}

// NewAuditService creates an audit service.
func NewAuditService(store driven.AuditStore, relationships driven.RelationshipStore) *AuditService {
	return &AuditService{store: store, relationships: relationships}
}

// Record appends one audit entry. The entry id and timestamp are filled
// in here so callers only describe what happened.
func (s *AuditService) Record(
	ctx context.Context,
	actor string,
	action domain.AuditAction,
	resourceType domain.ResourceType,
	resourceID string,
	success bool,
	detail map[string]any,
) {
	entry := &domain.AuditLogEntry{
		ID:           uuid.NewString(),
		ActorUserID:  actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Success:      success,
		Timestamp:    time.Now().UTC(),
		Detail:       detail,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		// The trail has a gap now; that must be visible in the logs
		// even in non-verbose mode.
		logger.Error("AUDIT APPEND FAILED: actor=%s action=%s resource=%s/%s: %v",
			actor, action, resourceType, resourceID, err)
		return
	}

	logger.Debug("Audit: actor=%s action=%s resource=%s/%s success=%t",
		actor, action, resourceType, resourceID, success)
}

// Recent returns the caller's own most recent entries, newest first.
func (s *AuditService) Recent(
	ctx context.Context, caller domain.Identity, limit int,
) ([]domain.AuditLogEntry, error) {
	if caller.UserID == "" {
		return nil, fmt.Errorf("%w: missing caller identity", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	entries, err := s.store.Query(ctx, domain.AuditQuery{
		ActorUserID: caller.UserID,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	return entries, nil
}

// Summary aggregates professional accesses to a patient's records over
// the window ending now. Patients may summarise themselves; a
// professional needs a relationship that currently grants document
// access.
func (s *AuditService) Summary(
	ctx context.Context, caller domain.Identity, patientID string, window time.Duration,
) (*domain.AccessSummary, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: missing patient id", domain.ErrInvalidInput)
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	if err := s.authoriseSummary(ctx, caller, patientID); err != nil {
		return nil, err
	}

	to := time.Now().UTC()
	from := to.Add(-window)

	entries, err := s.store.Query(ctx, domain.AuditQuery{
		ResourceID: patientID,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}

	// Aggregate per accessing professional, leaving out the patient's
	// own activity.
	byActor := make(map[string]*domain.ProfessionalAccess)
	for _, entry := range entries {
		if entry.ActorUserID == patientID || !entry.Success {
			continue
		}
		access, ok := byActor[entry.ActorUserID]
		if !ok {
			access = &domain.ProfessionalAccess{ProfessionalID: entry.ActorUserID}
			byActor[entry.ActorUserID] = access
		}
		access.Count++
		if entry.Timestamp.After(access.LastAccess) {
			access.LastAccess = entry.Timestamp
		}
	}

	accesses := make([]domain.ProfessionalAccess, 0, len(byActor))
	for _, access := range byActor {
		accesses = append(accesses, *access)
	}
	sort.Slice(accesses, func(i, j int) bool {
		if accesses[i].Count != accesses[j].Count {
			return accesses[i].Count > accesses[j].Count
		}
		return accesses[i].ProfessionalID < accesses[j].ProfessionalID
	})

	return &domain.AccessSummary{
		PatientID: patientID,
		From:      from,
		To:        to,
		Accesses:  accesses,
	}, nil
}

func (s *AuditService) authoriseSummary(ctx context.Context, caller domain.Identity, patientID string) error {
	if caller.Role == domain.RolePatient {
		if caller.UserID != patientID {
			return domain.ErrForbidden
		}
		return nil
	}

	rel, err := s.relationships.FindByPair(ctx, patientID, caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrForbidden
		}
		return fmt.Errorf("authorise summary: %w", err)
	}
	if !rel.GrantsDocumentAccess() {
		return domain.ErrForbidden
	}
	return nil
}
