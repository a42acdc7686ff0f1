package storage

import (
	"context"
	"fmt"

	"github.com/paramtully/stocker/internal/common"
)

// NewBlobStore creates the configured blob store backend.
func NewBlobStore(ctx context.Context, logger *common.Logger, cfg common.StorageConfig) (BlobStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBlobStore(logger, cfg.File.BasePath)
	case "s3":
		return NewS3BlobStore(ctx, logger, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
