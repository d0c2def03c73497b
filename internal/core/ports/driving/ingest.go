package driving

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// IngestRequest is one document upload.
type IngestRequest struct {
	// Owner is the authenticated uploader.
	Owner domain.Identity

	// Filename is the original upload filename; its extension selects
	// the extractor.
	Filename string

	// ContentType is the declared MIME type.
	ContentType string

	// Data is the file content.
	Data []byte
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	// Document is the committed document record.
	Document domain.Document

	// ChunkCount is the number of chunks stored.
	ChunkCount int

	// Warning carries non-fatal conditions (e.g. a metadata-only
	// document with no body text). Empty when nothing is noteworthy.
	Warning string
}

// IngestionService turns uploads into retrievable, permission-scoped
// chunks. Ingestion is atomic: either a fully chunked and embedded
// document exists afterwards, or no trace of it does.
type IngestionService interface {
	// Ingest validates, extracts, chunks, embeds and stores one upload.
	// An audit entry is written whether or not it succeeds.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
}
