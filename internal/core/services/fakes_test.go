package services

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// In-memory test doubles for the driven ports. They mirror the store
// contracts closely enough to exercise the full service flows,
// including the vector store's payload filtering.

type fakeEmbedder struct {
	dims    int
	vectors map[string][]float32 // per-text override
	err     error
	calls   int
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	// Cheap deterministic vector: spread the text's bytes over the
	// dimensions so distinct texts rarely collide.
	v := make([]float32, f.dims)
	for i, b := range []byte(text) {
		v[i%f.dims] += float32(b) / 255
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return f.dims }
func (f *fakeEmbedder) ModelName() string          { return "fake-embedder" }
func (f *fakeEmbedder) Ping(context.Context) error { return f.err }
func (f *fakeEmbedder) Close() error               { return nil }

type fakeVectorStore struct {
	mu         sync.Mutex
	points     map[string]driven.Point
	upsertErr  error
	searchErr  error
	deleteErr  error
	upsertErrN int // fail the first N upserts, then succeed
	upserts    int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string]driven.Point)}
}

func (f *fakeVectorStore) EnsureCollection(context.Context, int) error { return nil }

func (f *fakeVectorStore) Upsert(_ context.Context, points []driven.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErrN > 0 {
		f.upsertErrN--
		return domain.ErrStoreUnavailable
	}
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVectorStore) Search(
	_ context.Context, vector []float32, filter driven.Filter, limit int,
) ([]driven.VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	owners := make(map[string]struct{}, len(filter.OwnerUserIDs))
	for _, id := range filter.OwnerUserIDs {
		owners[id] = struct{}{}
	}

	var hits []driven.VectorHit
	for _, p := range f.points {
		if _, ok := owners[p.Payload.OwnerUserID]; !ok {
			continue
		}
		if filter.DocumentID != "" && p.Payload.DocumentID != filter.DocumentID {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, filter driven.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	owners := make(map[string]struct{}, len(filter.OwnerUserIDs))
	for _, id := range filter.OwnerUserIDs {
		owners[id] = struct{}{}
	}
	for id, p := range f.points {
		if filter.DocumentID != "" && p.Payload.DocumentID != filter.DocumentID {
			continue
		}
		if len(owners) > 0 {
			if _, ok := owners[p.Payload.OwnerUserID]; !ok {
				continue
			}
		}
		delete(f.points, id)
	}
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type fakeDocStore struct {
	mu        sync.Mutex
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk
	saveErr   error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
	}
}

func (f *fakeDocStore) SaveDocument(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.documents[doc.ID] = *doc
	for cid, c := range f.chunks {
		if c.DocumentID == doc.ID {
			delete(f.chunks, cid)
		}
	}
	for _, c := range chunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeDocStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, c := range f.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f *fakeDocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.documents, id)
	for cid, c := range f.chunks {
		if c.DocumentID == id {
			delete(f.chunks, cid)
		}
	}
	return nil
}

func (f *fakeDocStore) ListByOwner(_ context.Context, ownerUserID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.documents {
		if doc.OwnerUserID == ownerUserID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

type fakeRelStore struct {
	mu   sync.Mutex
	rels map[string]domain.Relationship
}

func newFakeRelStore() *fakeRelStore {
	return &fakeRelStore{rels: make(map[string]domain.Relationship)}
}

func (f *fakeRelStore) Create(_ context.Context, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rels {
		if existing.PatientID == rel.PatientID && existing.ProfessionalID == rel.ProfessionalID {
			return domain.ErrAlreadyExists
		}
	}
	f.rels[rel.ID] = *rel
	return nil
}

func (f *fakeRelStore) Update(_ context.Context, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rels[rel.ID]; !ok {
		return domain.ErrNotFound
	}
	f.rels[rel.ID] = *rel
	return nil
}

func (f *fakeRelStore) Get(_ context.Context, id string) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel, ok := f.rels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rel, nil
}

func (f *fakeRelStore) FindByPair(_ context.Context, patientID, professionalID string) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.rels {
		if rel.PatientID == patientID && rel.ProfessionalID == professionalID {
			out := rel
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRelStore) ListByPatient(
	_ context.Context, patientID string, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Relationship
	for _, rel := range f.rels {
		if rel.PatientID == patientID && (status == "" || rel.Status == status) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeRelStore) ListByProfessional(
	_ context.Context, professionalID string, status domain.RelationshipStatus,
) ([]domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Relationship
	for _, rel := range f.rels {
		if rel.ProfessionalID == professionalID && (status == "" || rel.Status == status) {
			out = append(out, rel)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserStore(users ...domain.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[string]domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) Save(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) Get(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

type fakeAuditStore struct {
	mu        sync.Mutex
	entries   []domain.AuditLogEntry
	appendErr error
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{}
}

func (f *fakeAuditStore) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) Query(_ context.Context, q domain.AuditQuery) ([]domain.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditLogEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if q.ActorUserID != "" && e.ActorUserID != q.ActorUserID {
			continue
		}
		if q.ResourceID != "" && e.ResourceID != q.ResourceID {
			continue
		}
		if !q.From.IsZero() && e.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Timestamp.After(q.To) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// byAction returns recorded entries for one action, oldest first.
func (f *fakeAuditStore) byAction(action domain.AuditAction) []domain.AuditLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeBlobStore) Close() error { return nil }

type fakeCompletion struct {
	reply string
	err   error
	got   []driven.Message
}

func (f *fakeCompletion) Complete(_ context.Context, messages []driven.Message) (string, error) {
	f.got = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompletion) ModelName() string { return "fake-llm" }
func (f *fakeCompletion) Close() error      { return nil }

// fixedSplitter cuts on a marker so tests control chunk boundaries.
type fixedSplitter struct{}

func (fixedSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

// activeRelationship is a convenience constructor for granting links.
func activeRelationship(id, patientID, professionalID string) domain.Relationship {
	return domain.Relationship{
		ID:             id,
		PatientID:      patientID,
		ProfessionalID: professionalID,
		Status:         domain.StatusActive,
		Permissions:    domain.Permissions{ViewDocuments: true},
		Type:           "primary_care",
	}
}
