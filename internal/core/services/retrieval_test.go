package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/chunker"
	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/extractors"
)

// retrievalFixture wires ingestion and retrieval over the same stores
// so tests exercise the full permission path end to end.
type retrievalFixture struct {
	ingest    *IngestionService
	retrieval *RetrievalService
	rels      *fakeRelStore
	vectors   *fakeVectorStore
	docs      *fakeDocStore
	audits    *fakeAuditStore
}

func newRetrievalFixture(t *testing.T) *retrievalFixture {
	t.Helper()
	vectors := newFakeVectorStore()
	docs := newFakeDocStore()
	rels := newFakeRelStore()
	audits := newFakeAuditStore()
	embedder := newFakeEmbedder(8)
	audit := NewAuditService(audits, rels)
	resolver := NewVisibilityResolver(rels)

	return &retrievalFixture{
		ingest: NewIngestionService(
			extractors.NewDefaultRegistry(nil), chunker.New(), embedder,
			vectors, docs, nil, audit, 0,
		),
		retrieval: NewRetrievalService(resolver, embedder, vectors, docs, audit),
		rels:      rels,
		vectors:   vectors,
		docs:      docs,
		audits:    audits,
	}
}

func (f *retrievalFixture) upload(t *testing.T, userID, filename, content string) *driving.IngestResult {
	t.Helper()
	result, err := f.ingest.Ingest(context.Background(), driving.IngestRequest{
		Owner:       domain.Identity{UserID: userID, Role: domain.RolePatient},
		Filename:    filename,
		ContentType: "text/plain",
		Data:        []byte(content),
	})
	require.NoError(t, err)
	return result
}

var (
	gabriel  = domain.Identity{UserID: "gabriel", Role: domain.RolePatient}
	sofia    = domain.Identity{UserID: "sofia", Role: domain.RolePatient}
	drmurilo = domain.Identity{UserID: "drmurilo", Role: domain.RoleProfessional}
)

func TestRetrieve_PatientSeesOwnDocuments(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL at the last check.")

	results, err := f.retrieval.Retrieve(context.Background(), gabriel, "blood glucose", domain.RetrievalOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "gabriel", results[0].Chunk.OwnerUserID)
	assert.Equal(t, "labs.txt", results[0].Document.Filename)
}

func TestRetrieve_PatientIsolation(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "gabriel-labs.txt", "Blood glucose was 90 mg/dL.")
	f.upload(t, "sofia", "sofia-labs.txt", "Blood glucose was 140 mg/dL.")

	results, err := f.retrieval.Retrieve(context.Background(), gabriel, "blood glucose", domain.RetrievalOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "gabriel", r.Chunk.OwnerUserID,
			"a patient's query must never surface another patient's chunks")
	}
}

func TestRetrieve_ProfessionalWithGrant(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")
	rel := activeRelationship("rel-1", "gabriel", "drmurilo")
	require.NoError(t, f.rels.Create(context.Background(), &rel))

	results, err := f.retrieval.Retrieve(context.Background(), drmurilo, "blood glucose",
		domain.RetrievalOptions{PatientID: "gabriel"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "gabriel", results[0].Chunk.OwnerUserID)
}

func TestRetrieve_ProfessionalWithoutGrantIsForbidden(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")

	_, err := f.retrieval.Retrieve(context.Background(), drmurilo, "blood glucose",
		domain.RetrievalOptions{PatientID: "gabriel"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// The denial is audited.
	entries := f.audits.byAction(domain.ActionRetrieve)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "forbidden", entries[0].Detail["error"])
	assert.Equal(t, "gabriel", entries[0].ResourceID)
}

func TestRetrieve_RevocationIsImmediate(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")
	rel := activeRelationship("rel-1", "gabriel", "drmurilo")
	require.NoError(t, f.rels.Create(context.Background(), &rel))

	opts := domain.RetrievalOptions{PatientID: "gabriel"}
	results, err := f.retrieval.Retrieve(context.Background(), drmurilo, "glucose", opts)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Terminate and query again: no cache may keep the grant alive.
	now := time.Now().UTC()
	rel.Status = domain.StatusTerminated
	rel.EndedAt = &now
	require.NoError(t, f.rels.Update(context.Background(), &rel))

	_, err = f.retrieval.Retrieve(context.Background(), drmurilo, "glucose", opts)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRetrieve_EmptyVisibilitySetShortCircuits(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")

	// Unscoped professional with no relationships: empty answer, no
	// store access, still audited as a success.
	f.vectors.searchErr = domain.ErrStoreUnavailable

	results, err := f.retrieval.Retrieve(context.Background(), drmurilo, "glucose", domain.RetrievalOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	entries := f.audits.byAction(domain.ActionRetrieve)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, 0, entries[0].Detail["result_count"])
}

func TestRetrieve_UnscopedQueryAuditedPerPatient(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")
	f.upload(t, "sofia", "notes.txt", "Blood pressure normal.")
	relA := activeRelationship("rel-1", "gabriel", "drmurilo")
	relB := activeRelationship("rel-2", "sofia", "drmurilo")
	require.NoError(t, f.rels.Create(context.Background(), &relA))
	require.NoError(t, f.rels.Create(context.Background(), &relB))

	_, err := f.retrieval.Retrieve(context.Background(), drmurilo, "blood", domain.RetrievalOptions{})
	require.NoError(t, err)

	// Every patient the query touched can see the access in their own
	// summary, not just an explicitly scoped one.
	entries := f.audits.byAction(domain.ActionRetrieve)
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{"gabriel", "sofia"},
		[]string{entries[0].ResourceID, entries[1].ResourceID})
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	f := newRetrievalFixture(t)

	_, err := f.retrieval.Retrieve(context.Background(), gabriel, "   ", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieve_TopKAndMinScore(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "a.txt", "Cardiology report with detailed findings.")
	f.upload(t, "gabriel", "b.txt", "Dermatology notes from last year.")
	f.upload(t, "gabriel", "c.txt", "Vaccination record, complete series.")

	results, err := f.retrieval.Retrieve(context.Background(), gabriel, "cardiology",
		domain.RetrievalOptions{TopK: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)

	// An impossible MinScore filters everything out.
	results, err = f.retrieval.Retrieve(context.Background(), gabriel, "cardiology",
		domain.RetrievalOptions{MinScore: 1.01})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_ScoresDescending(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "a.txt", "Cardiac stress test results were normal.")
	f.upload(t, "gabriel", "b.txt", "Appointment reminder for next month.")

	results, err := f.retrieval.Retrieve(context.Background(), gabriel, "cardiac stress test",
		domain.RetrievalOptions{TopK: 10})
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRetrieve_ExactlyOneAuditEntryPerCall(t *testing.T) {
	f := newRetrievalFixture(t)
	f.upload(t, "gabriel", "labs.txt", "Blood glucose was 90 mg/dL.")

	_, err := f.retrieval.Retrieve(context.Background(), gabriel, "glucose", domain.RetrievalOptions{})
	require.NoError(t, err)
	_, _ = f.retrieval.Retrieve(context.Background(), gabriel, "", domain.RetrievalOptions{})
	_, _ = f.retrieval.Retrieve(context.Background(), drmurilo, "glucose",
		domain.RetrievalOptions{PatientID: "gabriel"})

	assert.Len(t, f.audits.byAction(domain.ActionRetrieve), 3)
}
