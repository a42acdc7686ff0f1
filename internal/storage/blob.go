// Package storage provides blob-based persistence with pluggable backends.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned by Get/GetReader/Metadata for a missing key.
// Callers use errors.Is to distinguish "not yet ingested" from a genuine I/O
// failure; a missing blob is never reported as a generic error.
var ErrBlobNotFound = errors.New("blob not found")

// BlobMetadata contains metadata about a stored blob.
type BlobMetadata struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobStore defines a provider-agnostic interface for blob storage.
// Implementations: FileBlobStore (local), S3BlobStore (AWS).
type BlobStore interface {
	// Get retrieves a blob by key. Returns ErrBlobNotFound if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetReader returns a reader for streaming large blobs.
	// Caller must close the reader when done.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores a blob with the given content type. Overwrites if exists.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes a blob. No error if not found.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, lexicographically sorted.
	// Backend pagination is handled internally; callers always see the full
	// flat key list.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
