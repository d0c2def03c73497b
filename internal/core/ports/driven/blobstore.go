package driven

import "context"

// BlobStore retains original upload bytes keyed by document id, so the
// source file can be downloaded or re-processed later. Optional: when
// nil, downloads are disabled and only extracted text survives ingestion.
type BlobStore interface {
	// Put stores the bytes for a key, replacing any prior value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the bytes for a key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the bytes for a key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}
