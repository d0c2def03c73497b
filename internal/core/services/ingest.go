package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/extractors"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultMaxUploadBytes caps uploads when no limit is configured.
const DefaultMaxUploadBytes = 16 << 20 // 16 MiB

// Splitter cuts extracted text into chunk-sized pieces.
type Splitter interface {
	Split(text string) []string
}

// pointNamespace is the UUIDv5 namespace for vector point ids. Point
// ids are derived from chunk ids so that re-ingesting a document
// replaces its points instead of duplicating them.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// PointID derives the deterministic vector store point id for a chunk.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// documentNamespace is the UUIDv5 namespace for document ids.
var documentNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// DocumentID derives the document id from the owner, filename and
// content. Re-uploading identical bytes under the same name yields the
// same document, so its chunks and points are replaced rather than
// duplicated; changing the content yields a new document.
func DocumentID(ownerUserID, filename string, data []byte) string {
	sum := sha256.Sum256(data)
	key := fmt.Sprintf("%s|%s|%x", ownerUserID, filename, sum)
	return uuid.NewSHA1(documentNamespace, []byte(key)).String()
}

// IngestionService turns uploads into permission-scoped, retrievable
// chunks. Writes are ordered so the document record lands last: a
// document that exists is fully ingested, and any partial state left by
// a failure is swept by compensation before the error returns.
type IngestionService struct {
	registry  driven.ExtractorRegistry
	splitter  Splitter
	embedder  driven.EmbeddingService
	vectors   driven.VectorStore
	documents driven.DocumentStore
	blobs     driven.BlobStore // optional
	audit     *AuditService
	maxBytes  int64
}

// NewIngestionService creates an ingestion service. blobs may be nil,
// in which case original upload bytes are not retained. maxBytes <= 0
// selects DefaultMaxUploadBytes.
func NewIngestionService(
	registry driven.ExtractorRegistry,
	splitter Splitter,
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	documents driven.DocumentStore,
	blobs driven.BlobStore,
	audit *AuditService,
	maxBytes int64,
) *IngestionService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &IngestionService{
		registry:  registry,
		splitter:  splitter,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		blobs:     blobs,
		audit:     audit,
		maxBytes:  maxBytes,
	}
}

// Ingest validates, extracts, chunks, embeds and stores one upload.
// Exactly one audit entry is written per call, success or failure.
func (s *IngestionService) Ingest(
	ctx context.Context, req driving.IngestRequest,
) (result *driving.IngestResult, err error) {
	logger.Section("Document Ingestion")
	logger.Info("Ingesting %q for user %s", req.Filename, req.Owner.UserID)

	detail := map[string]any{"filename": req.Filename}
	defer func() {
		if err != nil {
			detail["error"] = errorCategory(err)
		}
		s.audit.Record(ctx, req.Owner.UserID, domain.ActionDocumentUpload,
			domain.ResourceDocument, auditDocumentID(result), err == nil, detail)
	}()

	if err = s.validate(req); err != nil {
		return nil, err
	}

	extractor, err := s.registry.ForFilename(req.Filename)
	if err != nil {
		return nil, fmt.Errorf("select extractor for %q: %w", req.Filename, err)
	}

	extraction, err := extractor.Extract(ctx, req.Data, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", req.Filename, err)
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrNoExtractableContent, req.Filename)
	}

	doc := domain.Document{
		ID:          DocumentID(req.Owner.UserID, req.Filename, req.Data),
		OwnerUserID: req.Owner.UserID,
		OwnerRole:   req.Owner.Role,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		ByteSize:    int64(len(req.Data)),
		UploadedAt:  time.Now().UTC(),
		Metadata:    extraction.Metadata,
	}

	chunks := s.buildChunks(doc, extraction.Text)
	logger.Info("Extracted %d chars into %d chunks", len(extraction.Text), len(chunks))

	if err = s.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if err = s.storeChunks(ctx, doc, req.Data, chunks); err != nil {
		s.compensate(ctx, doc.ID)
		return nil, err
	}

	// The document record lands last: the atomic document-plus-chunks
	// commit marks the ingestion complete.
	if err = s.documents.SaveDocument(ctx, &doc, chunks); err != nil {
		s.compensate(ctx, doc.ID)
		return nil, fmt.Errorf("save document: %w", err)
	}

	detail["chunk_count"] = len(chunks)
	result = &driving.IngestResult{
		Document:   doc,
		ChunkCount: len(chunks),
	}
	if doc.Metadata.Kind != domain.MetadataGeneric {
		result.Warning = "no body text extracted; document is retrievable through its metadata description"
	}

	logger.Info("Ingested document %s (%d chunks)", doc.ID, len(chunks))
	return result, nil
}

func (s *IngestionService) validate(req driving.IngestRequest) error {
	if req.Owner.UserID == "" || !req.Owner.Role.Valid() {
		return fmt.Errorf("%w: missing or invalid owner identity", domain.ErrInvalidInput)
	}
	if req.Filename == "" {
		return fmt.Errorf("%w: missing filename", domain.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: empty upload", domain.ErrInvalidInput)
	}
	if int64(len(req.Data)) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, len(req.Data), s.maxBytes)
	}
	return nil
}

// buildChunks splits the text and materialises owner-tagged chunks with
// deterministic ids.
func (s *IngestionService) buildChunks(doc domain.Document, text string) []domain.Chunk {
	pieces := s.splitter.Split(text)
	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			ID:              domain.ChunkID(doc.ID, i),
			DocumentID:      doc.ID,
			OwnerUserID:     doc.OwnerUserID,
			OwnerRole:       doc.OwnerRole,
			Index:           i,
			Text:            piece,
			MedicalKeywords: extractors.MedicalKeywords(piece),
			HasMedicalImage: doc.Metadata.HasMedicalImage(),
		}
	}
	return chunks
}

// embedChunks fills in the embedding of every chunk, enforcing the
// deployment's fixed dimension.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	want := s.embedder.Dimensions()
	for i, vector := range vectors {
		if len(vector) != want {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, i, len(vector), want)
		}
		chunks[i].Embedding = vector
	}
	return nil
}

// storeChunks writes the derived state: vector points and retained
// source bytes. Chunk rows land with the document record. The caller
// compensates on failure.
func (s *IngestionService) storeChunks(
	ctx context.Context, doc domain.Document, data []byte, chunks []domain.Chunk,
) error {
	points := make([]driven.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = driven.Point{
			ID:     PointID(chunk.ID),
			Vector: chunk.Embedding,
			Payload: driven.Payload{
				OwnerUserID:     chunk.OwnerUserID,
				OwnerRole:       chunk.OwnerRole,
				DocumentID:      chunk.DocumentID,
				ChunkID:         chunk.ID,
				SequenceIndex:   chunk.Index,
				Text:            chunk.Text,
				Filename:        doc.Filename,
				ContentType:     doc.ContentType,
				UploadedAt:      doc.UploadedAt,
				HasMedicalImage: chunk.HasMedicalImage,
				MedicalKeywords: chunk.MedicalKeywords,
			},
		}
		if err := points[i].Validate(); err != nil {
			return err
		}
	}

	err := withRetry(ctx, "upsert points", func() error {
		return s.vectors.Upsert(ctx, points)
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	if s.blobs != nil {
		if err := s.blobs.Put(ctx, doc.ID, data); err != nil {
			return fmt.Errorf("retain source bytes: %w", err)
		}
	}
	return nil
}

// compensate sweeps the partial state of a failed ingestion. Best
// effort: the document record was never written, so leftovers are
// unreachable either way, but they should not linger.
func (s *IngestionService) compensate(ctx context.Context, documentID string) {
	// The request context may already be cancelled; cleanup gets its
	// own deadline.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.vectors.Delete(cleanupCtx, driven.Filter{DocumentID: documentID}); err != nil {
		logger.Error("Compensation: deleting points for document %s: %v", documentID, err)
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(cleanupCtx, documentID); err != nil {
			logger.Error("Compensation: deleting blob for document %s: %v", documentID, err)
		}
	}
	if err := s.documents.DeleteDocument(cleanupCtx, documentID); err != nil {
		logger.Error("Compensation: deleting chunk rows for document %s: %v", documentID, err)
	}
}

// auditDocumentID extracts the committed document id for the audit
// entry; failed ingestions have none.
func auditDocumentID(result *driving.IngestResult) string {
	if result == nil {
		return ""
	}
	return result.Document.ID
}
