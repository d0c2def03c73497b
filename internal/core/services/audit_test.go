package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

func TestAudit_RecordFillsEntry(t *testing.T) {
	store := newFakeAuditStore()
	service := NewAuditService(store, newFakeRelStore())

	service.Record(context.Background(), "gabriel", domain.ActionDocumentUpload,
		domain.ResourceDocument, "doc-1", true, map[string]any{"filename": "labs.txt"})

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, "gabriel", entry.ActorUserID)
	assert.True(t, entry.Success)
}

func TestAudit_RecordFailureDoesNotPanic(t *testing.T) {
	store := newFakeAuditStore()
	store.appendErr = domain.ErrStoreUnavailable
	service := NewAuditService(store, newFakeRelStore())

	// Best effort: the caller's operation must not be affected.
	service.Record(context.Background(), "gabriel", domain.ActionRetrieve,
		domain.ResourcePatientScope, "gabriel", true, nil)
	assert.Empty(t, store.entries)
}

func TestAudit_Recent(t *testing.T) {
	store := newFakeAuditStore()
	service := NewAuditService(store, newFakeRelStore())

	for i := 0; i < 5; i++ {
		service.Record(context.Background(), "gabriel", domain.ActionRetrieve,
			domain.ResourcePatientScope, "gabriel", true, nil)
	}
	service.Record(context.Background(), "sofia", domain.ActionRetrieve,
		domain.ResourcePatientScope, "sofia", true, nil)

	entries, err := service.Recent(context.Background(), gabriel, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, "gabriel", entry.ActorUserID)
	}
}

func TestAudit_Summary(t *testing.T) {
	store := newFakeAuditStore()
	rels := newFakeRelStore()
	service := NewAuditService(store, rels)

	// Two professional accesses, one patient self-access, one denial.
	service.Record(context.Background(), "drmurilo", domain.ActionRetrieve,
		domain.ResourcePatientScope, "gabriel", true, nil)
	service.Record(context.Background(), "drmurilo", domain.ActionRetrieve,
		domain.ResourcePatientScope, "gabriel", true, nil)
	service.Record(context.Background(), "gabriel", domain.ActionRetrieve,
		domain.ResourcePatientScope, "gabriel", true, nil)
	service.Record(context.Background(), "drkim", domain.ActionRetrieve,
		domain.ResourcePatientScope, "gabriel", false, nil)

	summary, err := service.Summary(context.Background(), gabriel, "gabriel", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "gabriel", summary.PatientID)
	require.Len(t, summary.Accesses, 1, "self-access and denials are excluded")
	assert.Equal(t, "drmurilo", summary.Accesses[0].ProfessionalID)
	assert.Equal(t, 2, summary.Accesses[0].Count)
	assert.False(t, summary.Accesses[0].LastAccess.IsZero())
}

func TestAudit_SummaryAuthorisation(t *testing.T) {
	store := newFakeAuditStore()
	rels := newFakeRelStore()
	service := NewAuditService(store, rels)

	// A patient cannot summarise someone else.
	_, err := service.Summary(context.Background(), sofia, "gabriel", time.Hour)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// A professional needs a granting relationship.
	_, err = service.Summary(context.Background(), drmurilo, "gabriel", time.Hour)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	rel := activeRelationship("rel-1", "gabriel", "drmurilo")
	require.NoError(t, rels.Create(context.Background(), &rel))

	_, err = service.Summary(context.Background(), drmurilo, "gabriel", time.Hour)
	assert.NoError(t, err)
}
