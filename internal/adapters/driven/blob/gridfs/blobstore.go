// Package gridfs provides a BlobStore backed by MongoDB GridFS, for
// deployments that keep original upload bytes in a shared database
// rather than on local disk.
package gridfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// Default configuration values.
const (
	DefaultDatabase   = "carevault"
	DefaultBucketName = "documents"
	DefaultTimeout    = 30 * time.Second
)

// Config holds MongoDB connection settings.
type Config struct {
	// URI is the MongoDB connection string (required),
	// e.g. mongodb://localhost:27017.
	URI string

	// Database is the database name (default: carevault).
	Database string

	// BucketName is the GridFS bucket name (default: documents).
	BucketName string

	// Timeout bounds connection establishment (default: 30s).
	Timeout time.Duration
}

// BlobStore stores original upload bytes in a GridFS bucket, one file
// per document id.
type BlobStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

// NewBlobStore connects to MongoDB and opens the bucket.
func NewBlobStore(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("gridfs: URI is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.BucketName == "" {
		cfg.BucketName = DefaultBucketName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	bucket, err := gridfs.NewBucket(
		client.Database(cfg.Database),
		options.GridFSBucket().SetName(cfg.BucketName),
	)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("opening gridfs bucket: %w", err)
	}

	return &BlobStore{
		client: client,
		bucket: bucket,
	}, nil
}

// Put stores the bytes for a key, replacing any prior value. GridFS
// allows multiple files per filename, so the old file goes first to
// keep one file per document id.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.deleteByName(ctx, key); err != nil {
		return err
	}

	uploadStream, err := s.bucket.OpenUploadStream(key)
	if err != nil {
		return fmt.Errorf("opening upload stream for %s: %w", key, err)
	}

	if _, err := io.Copy(uploadStream, bytes.NewReader(data)); err != nil {
		_ = uploadStream.Close()
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := uploadStream.Close(); err != nil {
		return fmt.Errorf("closing upload stream for %s: %w", key, err)
	}
	return nil
}

// Get retrieves the bytes for a key, or domain.ErrNotFound.
func (s *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	downloadStream, err := s.bucket.OpenDownloadStreamByName(key)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("opening download stream for %s: %w", key, err)
	}
	defer downloadStream.Close()

	data, err := io.ReadAll(downloadStream)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the bytes for a key. Deleting a missing key is not
// an error.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	return s.deleteByName(ctx, key)
}

// Close disconnects from MongoDB.
func (s *BlobStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// deleteByName removes every GridFS file stored under the given
// filename.
func (s *BlobStore) deleteByName(ctx context.Context, key string) error {
	cursor, err := s.bucket.GetFilesCollection().Find(ctx, bson.M{"filename": key})
	if err != nil {
		return fmt.Errorf("finding blob %s: %w", key, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID any `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("decoding blob record for %s: %w", key, err)
		}
		if err := s.bucket.Delete(file.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("deleting blob %s: %w", key, err)
		}
	}
	return cursor.Err()
}
