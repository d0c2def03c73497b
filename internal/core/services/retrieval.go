package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// DefaultTopK is the result count when the caller does not specify one.
const DefaultTopK = 5

// RetrievalService answers similarity queries scoped to the caller's
// visibility set. The visibility set is resolved fresh on every call
// and becomes the owner filter on the vector search; no unfiltered
// query path exists.
type RetrievalService struct {
	resolver  *VisibilityResolver
	embedder  driven.EmbeddingService
	vectors   driven.VectorStore
	documents driven.DocumentStore
	audit     *AuditService
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(
	resolver *VisibilityResolver,
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	documents driven.DocumentStore,
	audit *AuditService,
) *RetrievalService {
	return &RetrievalService{
		resolver:  resolver,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		audit:     audit,
	}
}

// Retrieve embeds the query and searches the vector store restricted to
// the caller's visibility set. One audit entry is written per patient
// the query touches, so an unscoped professional query still shows up
// in every visible patient's access summary; failures before the set is
// resolved get a single entry.
func (s *RetrievalService) Retrieve(
	ctx context.Context, caller domain.Identity, query string, opts domain.RetrievalOptions,
) (results []domain.RetrievedChunk, err error) {
	logger.Section("Retrieval")
	logger.Debug("Query by %s (%s), scope=%q", caller.UserID, caller.Role, opts.PatientID)

	detail := map[string]any{}
	var audited []string
	defer func() {
		if err != nil {
			detail["error"] = errorCategory(err)
		} else {
			detail["result_count"] = len(results)
		}
		if len(audited) == 0 {
			audited = []string{opts.PatientID}
		}
		for _, patientID := range audited {
			s.audit.Record(ctx, caller.UserID, domain.ActionRetrieve,
				domain.ResourcePatientScope, patientID, err == nil, detail)
		}
	}()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	visible, err := s.resolver.Resolve(ctx, caller, opts.PatientID)
	if err != nil {
		return nil, err
	}
	audited = visible.IDs()

	// A professional with no granting relationships has nothing to
	// search; that is a valid empty answer, not an error.
	if visible.Empty() {
		logger.Debug("Empty visibility set, returning no results")
		return []domain.RetrievedChunk{}, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := driven.Filter{OwnerUserIDs: visible.IDs()}

	// Oversample so MinScore filtering still leaves TopK results.
	var hits []driven.VectorHit
	err = withRetry(ctx, "vector search", func() error {
		var searchErr error
		hits, searchErr = s.vectors.Search(ctx, vector, filter, opts.TopK*3)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results, err = s.rank(ctx, hits, visible, opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Retrieved %d chunks for %s", len(results), caller.UserID)
	return results, nil
}

// rank filters, orders and hydrates raw hits into retrieval results.
func (s *RetrievalService) rank(
	ctx context.Context, hits []driven.VectorHit, visible domain.VisibilitySet, opts domain.RetrievalOptions,
) ([]domain.RetrievedChunk, error) {
	kept := make([]driven.VectorHit, 0, len(hits))
	for _, hit := range hits {
		// The store already filtered by owner; re-checking here means a
		// store bug cannot leak another user's chunk.
		if !visible.Contains(hit.Payload.OwnerUserID) {
			logger.Error("Vector store returned out-of-scope point %s, dropping", hit.ID)
			continue
		}
		if hit.Score < opts.MinScore {
			continue
		}
		kept = append(kept, hit)
	}

	// Score descending; ties go to the more recently uploaded document.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Payload.UploadedAt.After(kept[j].Payload.UploadedAt)
	})

	if len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}

	results := make([]domain.RetrievedChunk, 0, len(kept))
	for _, hit := range kept {
		doc, err := s.documents.GetDocument(ctx, hit.Payload.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Point outlived its document record; skip it.
				continue
			}
			return nil, fmt.Errorf("hydrate document %s: %w", hit.Payload.DocumentID, err)
		}

		results = append(results, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				ID:              hit.Payload.ChunkID,
				DocumentID:      hit.Payload.DocumentID,
				OwnerUserID:     hit.Payload.OwnerUserID,
				OwnerRole:       hit.Payload.OwnerRole,
				Index:           hit.Payload.SequenceIndex,
				Text:            hit.Payload.Text,
				MedicalKeywords: hit.Payload.MedicalKeywords,
				HasMedicalImage: hit.Payload.HasMedicalImage,
			},
			Score:    hit.Score,
			Document: *doc,
		})
	}

	return results, nil
}
