package driving

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// RetrievalService answers similarity queries scoped to the caller's
// resolved visibility set. Every call, permitted or not, produces
// exactly one audit entry.
type RetrievalService interface {
	// Retrieve embeds the query, searches the vector store restricted
	// to the caller's visibility set, and returns ranked chunks
	// enriched with their parent documents' metadata.
	//
	// An empty visibility set short-circuits to an empty result without
	// touching the store; it is not an error.
	Retrieve(ctx context.Context, caller domain.Identity, query string, opts domain.RetrievalOptions) ([]domain.RetrievedChunk, error)
}

// Source attributes part of an answer to a document.
type Source struct {
	// DocumentID is the contributing document.
	DocumentID string

	// Filename is the document's original filename.
	Filename string

	// Score is the chunk's similarity score.
	Score float64

	// HasMedicalImage flags medical image content for UI badges.
	HasMedicalImage bool
}

// Answer is a synthesised response plus its supporting sources.
type Answer struct {
	// Text is the model's answer.
	Text string

	// Sources lists the documents that contributed context.
	Sources []Source
}

// AnswerService synthesises a role-appropriate answer from retrieval
// results. Requires a configured CompletionService; returns
// domain.ErrLLMUnavailable otherwise.
type AnswerService interface {
	// Answer retrieves context for the question and completes a
	// role-keyed prompt with it.
	Answer(ctx context.Context, caller domain.Identity, question string, opts domain.RetrievalOptions) (*Answer, error)
}
