package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// recordedRequest captures one request the fake server saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

// newFakeQdrant starts an httptest server that records requests and
// answers each with the next queued response.
func newFakeQdrant(t *testing.T, responses ...func(w http.ResponseWriter)) (*Store, *[]recordedRequest) {
	t.Helper()

	var seen []recordedRequest
	i := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen = append(seen, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			APIKey: r.Header.Get("api-key"),
			Body:   body,
		})
		if i < len(responses) {
			responses[i](w)
			i++
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	store := NewStore(Config{
		URL:        server.URL,
		APIKey:     "test-key",
		Collection: "carevault",
		Timeout:    time.Second,
	})
	return store, &seen
}

func testPoint(id, owner, docID string) driven.Point {
	return driven.Point{
		ID:     id,
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: driven.Payload{
			OwnerUserID: owner,
			OwnerRole:   domain.RolePatient,
			DocumentID:  docID,
			ChunkID:     docID + ":0",
			Text:        "some text",
			UploadedAt:  time.Now().UTC(),
		},
	}
}

func TestEnsureCollection(t *testing.T) {
	store, seen := newFakeQdrant(t)

	err := store.EnsureCollection(context.Background(), 768)
	require.NoError(t, err)

	// Collection creation plus two payload indexes
	require.Len(t, *seen, 3)
	create := (*seen)[0]
	assert.Equal(t, http.MethodPut, create.Method)
	assert.Equal(t, "/collections/carevault", create.Path)
	assert.Equal(t, "test-key", create.APIKey)

	vectors := create.Body["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])

	assert.Equal(t, "/collections/carevault/index", (*seen)[1].Path)
	assert.Equal(t, "owner_user_id", (*seen)[1].Body["field_name"])
	assert.Equal(t, "document_id", (*seen)[2].Body["field_name"])
}

func TestEnsureCollection_InvalidDimension(t *testing.T) {
	store, seen := newFakeQdrant(t)

	err := store.EnsureCollection(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Empty(t, *seen, "should not touch the server")
}

func TestUpsert(t *testing.T) {
	store, seen := newFakeQdrant(t)

	err := store.Upsert(context.Background(), []driven.Point{
		testPoint("p-1", "gabriel", "doc-1"),
		testPoint("p-2", "gabriel", "doc-1"),
	})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/collections/carevault/points", req.Path)
	assert.Equal(t, "wait=true", req.Query, "upserts must wait for durability")

	points := req.Body["points"].([]any)
	require.Len(t, points, 2)
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	assert.Equal(t, "gabriel", payload["owner_user_id"])
	assert.Equal(t, "doc-1", payload["document_id"])
}

func TestUpsert_RejectsUntaggedPoint(t *testing.T) {
	store, seen := newFakeQdrant(t)

	point := testPoint("p-1", "", "doc-1") // no owner tag
	err := store.Upsert(context.Background(), []driven.Point{point})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Empty(t, *seen, "invalid points must never reach the server")
}

func TestSearch(t *testing.T) {
	store, seen := newFakeQdrant(t, func(w http.ResponseWriter) {
		body := `{"result":[
			{"id":"p-1","score":0.93,"payload":{"owner_user_id":"gabriel","document_id":"doc-1","chunk_id":"doc-1:0","text":"glucose result"}},
			{"id":"p-2","score":0.81,"payload":{"owner_user_id":"gabriel","document_id":"doc-2","chunk_id":"doc-2:0","text":"older result"}}
		]}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	hits, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3},
		driven.Filter{OwnerUserIDs: []string{"gabriel", "sofia"}}, 15)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "p-1", hits[0].ID)
	assert.InDelta(t, 0.93, hits[0].Score, 1e-9)
	assert.Equal(t, "glucose result", hits[0].Payload.Text)
	assert.Equal(t, "gabriel", hits[0].Payload.OwnerUserID)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/collections/carevault/points/search", req.Path)
	assert.Equal(t, float64(15), req.Body["limit"])
	assert.Equal(t, true, req.Body["with_payload"])

	// Filter must scope by owner
	filter := req.Body["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 1)
	match := must[0].(map[string]any)
	assert.Equal(t, "owner_user_id", match["key"])
	assert.Equal(t, []any{"gabriel", "sofia"},
		match["match"].(map[string]any)["any"])
}

func TestSearch_EmptyOwnerListShortCircuits(t *testing.T) {
	store, seen := newFakeQdrant(t)

	hits, err := store.Search(context.Background(), []float32{0.1}, driven.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, *seen, "unscoped searches must never reach the server")
}

func TestDelete_ByDocument(t *testing.T) {
	store, seen := newFakeQdrant(t)

	err := store.Delete(context.Background(), driven.Filter{DocumentID: "doc-1"})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/collections/carevault/points/delete", req.Path)
	assert.Equal(t, "wait=true", req.Query)

	must := req.Body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
	assert.Equal(t, "document_id", must[0].(map[string]any)["key"])
}

func TestDelete_ZeroFilterIsNoOp(t *testing.T) {
	store, seen := newFakeQdrant(t)

	err := store.Delete(context.Background(), driven.Filter{})
	require.NoError(t, err)
	assert.Empty(t, *seen, "a zero filter must not wipe the collection")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"server error is retryable", http.StatusInternalServerError, domain.ErrStoreUnavailable},
		{"service unavailable is retryable", http.StatusServiceUnavailable, domain.ErrStoreUnavailable},
		{"bad request is fatal", http.StatusBadRequest, domain.ErrInvalidPayload},
		{"unauthorized is fatal", http.StatusUnauthorized, domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newFakeQdrant(t, func(w http.ResponseWriter) {
				w.WriteHeader(tt.status)
			})

			err := store.Upsert(context.Background(),
				[]driven.Point{testPoint("p-1", "gabriel", "doc-1")})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConnectionRefusedIsRetryable(t *testing.T) {
	store := NewStore(Config{
		URL:        "http://127.0.0.1:1", // nothing listens here
		Collection: "carevault",
		Timeout:    time.Second,
	})

	err := store.Upsert(context.Background(),
		[]driven.Point{testPoint("p-1", "gabriel", "doc-1")})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
