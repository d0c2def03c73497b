package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// Role-keyed system prompts. The retrieved context is identical for
// both roles; only the register of the answer changes.
const (
	patientSystemPrompt = `You are a helpful medical document assistant. Answer the question using only the provided context from the user's own medical documents. Use plain, non-technical language. If the context does not contain the answer, say so. Always recommend consulting a healthcare professional for medical decisions.`

	professionalSystemPrompt = `You are a clinical document assistant for healthcare professionals. Answer the question using only the provided context from patient documents the professional is authorised to view. Use precise clinical terminology. Cite the source filename for each finding. If the context does not contain the answer, say so.`
)

// AnswerService synthesises answers from retrieval results. Every
// question goes through the permission-scoped retrieval path first, so
// the completion model only ever sees context the caller may see.
type AnswerService struct {
	retrieval driving.RetrievalService
	llm       driven.CompletionService // optional
}

// NewAnswerService creates an answer service. llm may be nil, in which
// case Answer fails with domain.ErrLLMUnavailable.
func NewAnswerService(retrieval driving.RetrievalService, llm driven.CompletionService) *AnswerService {
	return &AnswerService{retrieval: retrieval, llm: llm}
}

// Answer retrieves context for the question and completes a role-keyed
// prompt with it.
func (s *AnswerService) Answer(
	ctx context.Context, caller domain.Identity, question string, opts domain.RetrievalOptions,
) (*driving.Answer, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	chunks, err := s.retrieval.Retrieve(ctx, caller, question, opts)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &driving.Answer{
			Text: "No relevant information was found in the available documents.",
		}, nil
	}

	messages := []driven.Message{
		{Role: "system", Content: systemPromptFor(caller.Role)},
		{Role: "user", Content: buildUserPrompt(question, chunks)},
	}

	logger.Debug("Answer synthesis: %d context chunks, model=%s", len(chunks), s.llm.ModelName())
	text, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("complete answer: %w", err)
	}

	return &driving.Answer{
		Text:    strings.TrimSpace(text),
		Sources: collectSources(chunks),
	}, nil
}

func systemPromptFor(role domain.Role) string {
	if role == domain.RoleProfessional {
		return professionalSystemPrompt
	}
	return patientSystemPrompt
}

// buildUserPrompt renders the retrieved chunks as numbered context
// blocks followed by the question.
func buildUserPrompt(question string, chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Context from medical documents:\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s:\n%s\n\n", i+1, chunk.Document.Filename, chunk.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// collectSources deduplicates contributing documents, keeping the best
// score per document. Input order is score-descending, so the first
// occurrence wins.
func collectSources(chunks []domain.RetrievedChunk) []driving.Source {
	seen := make(map[string]struct{})
	var sources []driving.Source
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Document.ID]; ok {
			continue
		}
		seen[chunk.Document.ID] = struct{}{}
		sources = append(sources, driving.Source{
			DocumentID:      chunk.Document.ID,
			Filename:        chunk.Document.Filename,
			Score:           chunk.Score,
			HasMedicalImage: chunk.Document.Metadata.HasMedicalImage(),
		})
	}
	return sources
}
