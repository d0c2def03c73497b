// Package qdrant implements the VectorStore port against Qdrant's REST
// API. It assumes cosine distance and keyword payload indexes on the
// owner and document fields so that filtered searches stay cheap.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

const defaultTimeout = 15 * time.Second

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the Qdrant base URL, e.g. http://localhost:6333.
	URL string

	// APIKey is sent in the api-key header when non-empty.
	APIKey string

	// Collection is the collection name.
	Collection string

	// Timeout bounds each HTTP request. Zero means 15s.
	Timeout time.Duration
}

// Store is a REST client to a single Qdrant collection.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

var _ driven.VectorStore = (*Store)(nil)

// NewStore creates a Qdrant-backed vector store. It does not touch the
// network; call EnsureCollection before the first write.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection and its payload indexes if
// they do not exist. Qdrant answers 200 for an existing collection with
// the same schema, so calling this on every start is safe.
func (s *Store) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidPayload, dimensions)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s", s.collection), body, nil); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	// Keyword indexes keep owner-scoped searches from scanning the
	// whole collection.
	for _, field := range []string{"owner_user_id", "document_id"} {
		index := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		if err := s.do(ctx, http.MethodPut,
			fmt.Sprintf("/collections/%s/index", s.collection), index, nil); err != nil {
			return fmt.Errorf("creating payload index %s: %w", field, err)
		}
	}

	return nil
}

// Upsert writes points with wait=true so a successful return means the
// points are durable and searchable.
func (s *Store) Upsert(ctx context.Context, points []driven.Point) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
		pts = append(pts, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	body := map[string]any{"points": pts}

	if err := s.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil); err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return nil
}

// Search returns up to limit hits nearest the query vector, constrained
// by the filter. An empty owner list matches nothing, so it returns no
// hits without touching the server.
func (s *Store) Search(
	ctx context.Context, vector []float32, filter driven.Filter, limit int,
) ([]driven.VectorHit, error) {
	if len(filter.OwnerUserIDs) == 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildFilter(filter),
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload driven.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", s.collection), req, &resp); err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, driven.VectorHit{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return hits, nil
}

// Delete removes all points matching the filter. A zero filter matches
// nothing and is a no-op rather than a collection wipe.
func (s *Store) Delete(ctx context.Context, filter driven.Filter) error {
	if len(filter.OwnerUserIDs) == 0 && filter.DocumentID == "" {
		return nil
	}

	body := map[string]any{"filter": buildFilter(filter)}
	if err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection), body, nil); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Close releases resources. The HTTP client holds no persistent
// connections that need explicit shutdown.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// buildFilter translates the port filter into Qdrant's must clauses.
func buildFilter(filter driven.Filter) map[string]any {
	var must []map[string]any

	if len(filter.OwnerUserIDs) > 0 {
		must = append(must, map[string]any{
			"key":   "owner_user_id",
			"match": map[string]any{"any": filter.OwnerUserIDs},
		})
	}
	if filter.DocumentID != "" {
		must = append(must, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"value": filter.DocumentID},
		})
	}

	return map[string]any{"must": must}
}

// do executes one JSON request. Transport failures and server errors
// map to domain.ErrStoreUnavailable so the caller's retry policy
// applies; client errors map to domain.ErrInvalidPayload because
// retrying a rejected request cannot succeed.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s %s: %s: %s",
				domain.ErrStoreUnavailable, method, path, resp.Status, detail)
		}
		return fmt.Errorf("%w: %s %s: %s: %s",
			domain.ErrInvalidPayload, method, path, resp.Status, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
