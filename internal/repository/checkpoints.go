package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/storage"
)

// CheckpointStore persists one checkpoint per long-running job type.
// Absence of a checkpoint means "start fresh".
type CheckpointStore struct {
	blobs  storage.BlobStore
	logger *common.Logger
}

// NewCheckpointStore creates the checkpoint store.
func NewCheckpointStore(blobs storage.BlobStore, logger *common.Logger) *CheckpointStore {
	return &CheckpointStore{blobs: blobs, logger: logger}
}

// Get returns the persisted checkpoint for a job, or nil if none exists.
func (s *CheckpointStore) Get(ctx context.Context, job string) (*models.Checkpoint, error) {
	data, err := s.blobs.Get(ctx, storage.CheckpointKey(job))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint for %s: %w", job, err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint for %s: %w", job, err)
	}
	return &cp, nil
}

// Save overwrites the job's checkpoint. A failure here is fatal to the
// invocation: continuing with a stale checkpoint would make the next resume
// skip or repeat the wrong units.
func (s *CheckpointStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint for %s: %w", cp.JobName, err)
	}

	if err := s.blobs.Put(ctx, storage.CheckpointKey(cp.JobName), data, "application/json"); err != nil {
		return fmt.Errorf("failed to persist checkpoint for %s: %w", cp.JobName, err)
	}
	return nil
}

// Clear deletes the job's checkpoint, marking the job fully complete.
func (s *CheckpointStore) Clear(ctx context.Context, job string) error {
	if err := s.blobs.Delete(ctx, storage.CheckpointKey(job)); err != nil {
		return fmt.Errorf("failed to clear checkpoint for %s: %w", job, err)
	}
	return nil
}
