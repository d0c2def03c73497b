package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/chunker"
	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/extractors"
)

type ingestFixture struct {
	service *IngestionService
	vectors *fakeVectorStore
	docs    *fakeDocStore
	blobs   *fakeBlobStore
	audits  *fakeAuditStore
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	vectors := newFakeVectorStore()
	docs := newFakeDocStore()
	blobs := newFakeBlobStore()
	audits := newFakeAuditStore()
	audit := NewAuditService(audits, newFakeRelStore())

	service := NewIngestionService(
		extractors.NewDefaultRegistry(nil),
		chunker.New(),
		newFakeEmbedder(8),
		vectors,
		docs,
		blobs,
		audit,
		0,
	)
	return &ingestFixture{service: service, vectors: vectors, docs: docs, blobs: blobs, audits: audits}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func gabrielUpload(filename, content string) driving.IngestRequest {
	return driving.IngestRequest{
		Owner:       domain.Identity{UserID: "gabriel", Role: domain.RolePatient},
		Filename:    filename,
		ContentType: "text/plain",
		Data:        []byte(content),
	}
}

func TestIngest_TextDocument(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "Blood glucose was 90 mg/dL. Cholesterol slightly elevated."))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Document.ID)
	assert.Equal(t, "gabriel", result.Document.OwnerUserID)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Empty(t, result.Warning)

	// Document record committed.
	doc, err := f.docs.GetDocument(context.Background(), result.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "labs.txt", doc.Filename)

	// Chunk rows carry the owner tag and medical keywords.
	chunks, err := f.docs.GetChunks(context.Background(), result.Document.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "gabriel", chunks[0].OwnerUserID)
	assert.Equal(t, domain.ChunkID(result.Document.ID, 0), chunks[0].ID)
	assert.Contains(t, chunks[0].MedicalKeywords, "glucose")
	assert.Contains(t, chunks[0].MedicalKeywords, "cholesterol")

	// One owner-tagged vector point per chunk.
	assert.Equal(t, 1, f.vectors.count())

	// Original bytes retained.
	data, err := f.blobs.Get(context.Background(), result.Document.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Blood glucose")
}

func TestIngest_LongDocumentProducesMultipleChunks(t *testing.T) {
	f := newIngestFixture(t)

	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Full sentence describing an unremarkable clinical observation. ")
	}

	result, err := f.service.Ingest(context.Background(), gabrielUpload("history.txt", b.String()))
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 1)
	assert.Equal(t, result.ChunkCount, f.vectors.count())

	chunks, err := f.docs.GetChunks(context.Background(), result.Document.ID)
	require.NoError(t, err)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, domain.ChunkID(result.Document.ID, i), chunk.ID)
	}
}

func TestIngest_AuditedOnSuccessAndFailure(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "fine"))
	require.NoError(t, err)

	_, err = f.service.Ingest(context.Background(), gabrielUpload("malware.exe", "nope"))
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	entries := f.audits.byAction(domain.ActionDocumentUpload)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Success)
	assert.Equal(t, "labs.txt", entries[0].Detail["filename"])

	assert.False(t, entries[1].Success)
	assert.Equal(t, "unsupported_format", entries[1].Detail["error"])
}

func TestIngest_ValidationFailures(t *testing.T) {
	f := newIngestFixture(t)

	tests := []struct {
		name    string
		req     driving.IngestRequest
		wantErr error
	}{
		{
			name:    "missing owner",
			req:     driving.IngestRequest{Filename: "a.txt", Data: []byte("x")},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "missing filename",
			req: driving.IngestRequest{
				Owner: domain.Identity{UserID: "gabriel", Role: domain.RolePatient},
				Data:  []byte("x"),
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty data",
			req:     gabrielUpload("a.txt", ""),
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "whitespace-only content",
			req:     gabrielUpload("a.txt", "   \n\t  "),
			wantErr: domain.ErrNoExtractableContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Ingest(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIngest_FileTooLarge(t *testing.T) {
	vectors := newFakeVectorStore()
	audit := NewAuditService(newFakeAuditStore(), newFakeRelStore())
	service := NewIngestionService(
		extractors.NewDefaultRegistry(nil), chunker.New(), newFakeEmbedder(8),
		vectors, newFakeDocStore(), nil, audit, 10,
	)

	_, err := service.Ingest(context.Background(), gabrielUpload("a.txt", "this is more than ten bytes"))
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	assert.Zero(t, vectors.count())
}

func TestIngest_TransientStoreFailureIsRetried(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.upsertErrN = 2 // first two upserts fail, third succeeds

	result, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose fine"))
	require.NoError(t, err)
	assert.Equal(t, 3, f.vectors.upserts)
	assert.Equal(t, 1, f.vectors.count())

	_, err = f.docs.GetDocument(context.Background(), result.Document.ID)
	assert.NoError(t, err)
}

func TestIngest_FailureLeavesNoTrace(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.upsertErrN = retryAttempts // exhaust all retries

	_, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose fine"))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// Atomicity: no document record, no chunks, no points, no blob.
	assert.Empty(t, f.docs.documents)
	assert.Empty(t, f.docs.chunks)
	assert.Zero(t, f.vectors.count())
	assert.Empty(t, f.blobs.blobs)

	// The failed attempt is still audited.
	entries := f.audits.byAction(domain.ActionDocumentUpload)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "store_unavailable", entries[0].Detail["error"])
}

func TestIngest_ReingestionReplacesPoints(t *testing.T) {
	f := newIngestFixture(t)

	first, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose fine"))
	require.NoError(t, err)

	// The document id derives from owner, filename and content, so an
	// identical re-upload hits the same chunk and point ids and the
	// upsert replaces instead of duplicating.
	second, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose fine"))
	require.NoError(t, err)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, 1, f.vectors.count())
	assert.Len(t, f.docs.documents, 1)
}

func TestIngest_ChangedContentIsNewDocument(t *testing.T) {
	f := newIngestFixture(t)

	first, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose fine"))
	require.NoError(t, err)

	second, err := f.service.Ingest(context.Background(), gabrielUpload("labs.txt", "glucose elevated"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, 2, f.vectors.count())
	assert.Len(t, f.docs.documents, 2)
}

func TestDocumentID_Deterministic(t *testing.T) {
	a := DocumentID("gabriel", "labs.txt", []byte("glucose fine"))
	assert.Equal(t, a, DocumentID("gabriel", "labs.txt", []byte("glucose fine")))
	assert.NotEqual(t, a, DocumentID("sofia", "labs.txt", []byte("glucose fine")))
	assert.NotEqual(t, a, DocumentID("gabriel", "labs2.txt", []byte("glucose fine")))
	assert.NotEqual(t, a, DocumentID("gabriel", "labs.txt", []byte("glucose elevated")))
}

func TestIngest_DimensionMismatch(t *testing.T) {
	vectors := newFakeVectorStore()
	embedder := newFakeEmbedder(8)
	embedder.vectors["short text"] = []float32{0.1, 0.2} // wrong size
	audit := NewAuditService(newFakeAuditStore(), newFakeRelStore())

	service := NewIngestionService(
		extractors.NewDefaultRegistry(nil), fixedSplitter{}, embedder,
		vectors, newFakeDocStore(), nil, audit, 0,
	)

	_, err := service.Ingest(context.Background(), gabrielUpload("a.txt", "short text"))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Zero(t, vectors.count())
}

func TestIngest_MedicalImageWarning(t *testing.T) {
	f := newIngestFixture(t)

	req := gabrielUpload("chest_xray.png", "")
	req.Data = encodePNG(t, 10, 10)
	req.ContentType = "image/png"

	result, err := f.service.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, domain.MetadataImage, result.Document.Metadata.Kind)

	// The synthetic description is embedded, so the image is retrievable.
	assert.Equal(t, 1, f.vectors.count())
	chunks, err := f.docs.GetChunks(context.Background(), result.Document.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].HasMedicalImage)
	assert.Contains(t, chunks[0].Text, "chest_xray.png")
}
