package driven

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// DocumentStore persists document records and chunk text.
// Embeddings live in the VectorStore, not here.
type DocumentStore interface {
	// SaveDocument stores or updates a document together with its full
	// chunk set in one atomic write, replacing any prior chunks. No
	// reader ever observes the document without its chunks.
	SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves a document's chunks ordered by sequence index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListByOwner returns documents owned by a user, newest first.
	ListByOwner(ctx context.Context, ownerUserID string) ([]domain.Document, error)
}
