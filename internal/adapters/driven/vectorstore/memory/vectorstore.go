// Package memory provides an in-memory VectorStore for tests and for
// single-process deployments that do not run Qdrant. Similarity is
// exact cosine over a full scan, which is fine at personal-archive
// scale but not beyond.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
type VectorStore struct {
	mu     sync.RWMutex
	points map[string]driven.Point
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		points: make(map[string]driven.Point),
	}
}

// EnsureCollection is a no-op; the map needs no schema.
func (s *VectorStore) EnsureCollection(_ context.Context, _ int) error {
	return nil
}

// Upsert writes points, replacing any prior points with the same ids.
func (s *VectorStore) Upsert(_ context.Context, points []driven.Point) error {
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

// Search returns up to limit hits nearest the query vector whose
// payload satisfies the filter, best score first.
func (s *VectorStore) Search(
	_ context.Context, vector []float32, filter driven.Filter, limit int,
) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.VectorHit //nolint:prealloc // match count unknown
	for _, p := range s.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes all points matching the filter.
func (s *VectorStore) Delete(_ context.Context, filter driven.Filter) error {
	// A zero filter matches nothing
	if len(filter.OwnerUserIDs) == 0 && filter.DocumentID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if matches(p.Payload, filter) {
			delete(s.points, id)
		}
	}
	return nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// Len returns the number of stored points.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func matches(p driven.Payload, filter driven.Filter) bool {
	if len(filter.OwnerUserIDs) > 0 {
		found := false
		for _, owner := range filter.OwnerUserIDs {
			if p.OwnerUserID == owner {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.DocumentID != "" && p.DocumentID != filter.DocumentID {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
