package filesystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

func TestBlobStore_RoundTrip(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc-1", []byte("original bytes")))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("original bytes"), got)

	// Put replaces
	require.NoError(t, store.Put(ctx, "doc-1", []byte("newer bytes")))
	got, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer bytes"), got)
}

func TestBlobStore_GetMissing(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_Delete(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc-1", []byte("bytes")))
	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete(ctx, "doc-1"))
}

func TestBlobStore_RejectsHostileKeys(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		assert.ErrorIs(t, store.Put(ctx, key, []byte("x")), domain.ErrInvalidInput, "key %q", key)
	}
}
