package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/storage"
)

// ManifestWriter persists per-(date, data type) error manifests for operator
// review and manual replay of failed units.
type ManifestWriter struct {
	blobs  storage.BlobStore
	logger *common.Logger
}

// NewManifestWriter creates the manifest writer.
func NewManifestWriter(blobs storage.BlobStore, logger *common.Logger) *ManifestWriter {
	return &ManifestWriter{blobs: blobs, logger: logger}
}

// Write persists a run's manifest. Empty runs (no errors, no successes) are
// skipped. Manifest writes are best-effort for the pipeline: a failure is
// returned so the job can log it, but jobs do not abort on manifest errors.
func (w *ManifestWriter) Write(ctx context.Context, dataType string, date time.Time, errs []models.ManifestError, successes []models.ManifestSuccess) error {
	if len(errs) == 0 && len(successes) == 0 {
		return nil
	}

	manifest := models.ErrorManifest{
		RunID:          uuid.NewString(),
		Date:           date.Format(calendar.DayFormat),
		DataType:       dataType,
		Errors:         errs,
		PartialSuccess: successes,
		WrittenAt:      time.Now(),
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to serialize %s manifest: %w", dataType, err)
	}

	key := storage.ErrorManifestKey(dataType, date)
	if err := w.blobs.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", key, err)
	}

	w.logger.Info().Str("key", key).Int("errors", len(errs)).Int("successes", len(successes)).
		Msg("Error manifest written")
	return nil
}
