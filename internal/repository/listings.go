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

// ListingStore persists the current-listings snapshot used by new-listing
// detection.
type ListingStore struct {
	blobs  storage.BlobStore
	logger *common.Logger
}

// NewListingStore creates the listing snapshot store.
func NewListingStore(blobs storage.BlobStore, logger *common.Logger) *ListingStore {
	return &ListingStore{blobs: blobs, logger: logger}
}

// Get returns the stored snapshot, or nil if none has been written yet.
func (s *ListingStore) Get(ctx context.Context) (*models.ListingSnapshot, error) {
	data, err := s.blobs.Get(ctx, storage.ListingsKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read listings snapshot: %w", err)
	}

	var snapshot models.ListingSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt listings snapshot: %w", err)
	}
	return &snapshot, nil
}

// Save overwrites the snapshot with the current listing set.
func (s *ListingStore) Save(ctx context.Context, snapshot *models.ListingSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize listings snapshot: %w", err)
	}

	if err := s.blobs.Put(ctx, storage.ListingsKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write listings snapshot: %w", err)
	}
	return nil
}
