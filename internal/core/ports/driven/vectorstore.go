package driven

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// Payload is the typed metadata stored alongside every vector point.
// The owner tag is load-bearing: no code path may write a point without
// one, because owner filtering is what prevents cross-user leakage.
type Payload struct {
	// OwnerUserID is the owning user. Required on every write.
	OwnerUserID string `json:"owner_user_id"`

	// OwnerRole is the owner's role at upload time.
	OwnerRole domain.Role `json:"owner_role"`

	// DocumentID is the parent document.
	DocumentID string `json:"document_id"`

	// ChunkID is the deterministic chunk identifier.
	ChunkID string `json:"chunk_id"`

	// SequenceIndex is the chunk's zero-based position.
	SequenceIndex int `json:"sequence_index"`

	// Text is the chunk text.
	Text string `json:"text"`

	// Filename is the source document's filename.
	Filename string `json:"filename"`

	// ContentType is the source document's declared MIME type.
	ContentType string `json:"content_type"`

	// UploadedAt is the document's upload time, used to break score ties
	// in favour of more recent documents.
	UploadedAt time.Time `json:"upload_timestamp"`

	// HasMedicalImage flags medical image content.
	HasMedicalImage bool `json:"has_medical_image"`

	// MedicalKeywords are dictionary terms found in the chunk.
	MedicalKeywords []string `json:"medical_keywords,omitempty"`
}

// Point is one (id, vector, payload) triple. Upserts are idempotent by
// ID: re-upserting an id replaces the prior point entirely.
type Point struct {
	// ID is the point identifier, deterministic per chunk.
	ID string

	// Vector is the embedding.
	Vector []float32

	// Payload is the typed metadata.
	Payload Payload
}

// Validate rejects points that violate the payload schema, most
// importantly a missing owner tag.
func (p Point) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing point id", domain.ErrInvalidPayload)
	}
	if len(p.Vector) == 0 {
		return fmt.Errorf("%w: missing vector for point %s", domain.ErrInvalidPayload, p.ID)
	}
	if p.Payload.OwnerUserID == "" {
		return fmt.Errorf("%w: missing owner tag for point %s", domain.ErrInvalidPayload, p.ID)
	}
	if p.Payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document id for point %s", domain.ErrInvalidPayload, p.ID)
	}
	return nil
}

// Filter restricts vector store candidates by payload predicate.
// A zero filter matches nothing: callers must always scope by owner.
type Filter struct {
	// OwnerUserIDs restricts candidates to points owned by any of these
	// users. Required for Search.
	OwnerUserIDs []string

	// DocumentID restricts to a single document when non-empty.
	DocumentID string
}

// VectorHit is one similarity search result.
type VectorHit struct {
	// ID is the matched point id.
	ID string

	// Score is the cosine similarity, descending across hits.
	Score float64

	// Payload is the stored metadata.
	Payload Payload
}

// VectorStore is a durable store of embedded chunks, queryable by
// similarity plus payload filter.
//
// Transient failures surface as domain.ErrStoreUnavailable and are
// retried with bounded backoff by the caller; schema violations surface
// as domain.ErrInvalidPayload and are fatal.
type VectorStore interface {
	// EnsureCollection creates the backing collection for the given
	// vector dimension if it does not exist.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert writes points, replacing any prior points with the same ids.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit hits nearest the query vector whose
	// payload satisfies the filter, best score first.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]VectorHit, error)

	// Delete removes all points matching the filter.
	Delete(ctx context.Context, filter Filter) error

	// Close releases resources.
	Close() error
}
