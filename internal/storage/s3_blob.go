package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/paramtully/stocker/internal/common"
)

// S3BlobStore implements BlobStore backed by an S3 bucket (or an
// S3-compatible store such as MinIO or R2 via a custom endpoint).
type S3BlobStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *common.Logger
}

// NewS3BlobStore creates a new S3-backed blob store. Credentials come from
// the default AWS credential chain (env, shared config, instance role).
func NewS3BlobStore(ctx context.Context, logger *common.Logger, cfg common.S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	sb := &S3BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		logger: logger,
	}

	logger.Debug().Str("bucket", cfg.Bucket).Str("prefix", sb.prefix).Msg("S3BlobStore initialized")
	return sb, nil
}

func (sb *S3BlobStore) objectKey(key string) string {
	if sb.prefix == "" {
		return key
	}
	return path.Join(sb.prefix, key)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// Get retrieves a blob by key.
func (sb *S3BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := sb.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// GetReader returns a reader for streaming large blobs.
func (sb *S3BlobStore) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := sb.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	return out.Body, nil
}

// Put stores a blob. S3 object writes are atomic per key.
func (sb *S3BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.objectKey(key)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := sb.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	return nil
}

// Delete removes a blob. S3 delete is a no-op for missing keys.
func (sb *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := sb.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix, sorted lexicographically.
// ListObjectsV2 pages are drained internally so callers see one flat list.
func (sb *S3BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := sb.objectKey(prefix)

	paginator := s3.NewListObjectsV2Paginator(sb.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(sb.bucket),
		Prefix: aws.String(fullPrefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if sb.prefix != "" {
				key = strings.TrimPrefix(key, sb.prefix+"/")
			}
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Close releases resources (no-op for S3).
func (sb *S3BlobStore) Close() error {
	return nil
}

// Ensure S3BlobStore implements BlobStore
var _ BlobStore = (*S3BlobStore)(nil)
