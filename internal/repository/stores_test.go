package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/storage"
)

func newBlobStore(t *testing.T) storage.BlobStore {
	t.Helper()
	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })
	return blobs
}

func TestSplitLedger_AbsentMeansEmpty(t *testing.T) {
	ledger := NewSplitLedger(newBlobStore(t), common.NewSilentLogger())

	splits, err := ledger.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Empty(t, splits)
}

func TestSplitLedger_AppendAccumulates(t *testing.T) {
	ledger := NewSplitLedger(newBlobStore(t), common.NewSilentLogger())

	first := models.StockSplit{Ticker: "AAPL", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Ratio: 4, AppliedToDB: true}
	second := models.StockSplit{Ticker: "AAPL", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Ratio: 2, AppliedToDB: true}

	require.NoError(t, ledger.Append(context.Background(), "AAPL", first))
	require.NoError(t, ledger.Append(context.Background(), "AAPL", second))

	splits, err := ledger.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, splits, 2)
	assert.Equal(t, 4.0, splits[0].Ratio)
	assert.True(t, splits[0].AppliedToDB)
	assert.Equal(t, 2.0, splits[1].Ratio)
}

func TestCheckpointStore_RoundTripAndClear(t *testing.T) {
	cps := NewCheckpointStore(newBlobStore(t), common.NewSilentLogger())

	cp, err := cps.Get(context.Background(), "candle-load")
	require.NoError(t, err)
	assert.Nil(t, cp, "absence means start fresh")

	saved := &models.Checkpoint{
		JobName:           "candle-load",
		LastProcessedUnit: "2023",
		TotalUnits:        5,
		ProcessedUnits:    2,
	}
	require.NoError(t, cps.Save(context.Background(), saved))

	cp, err = cps.Get(context.Background(), "candle-load")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "2023", cp.LastProcessedUnit)
	assert.Equal(t, 2, cp.ProcessedUnits)

	require.NoError(t, cps.Clear(context.Background(), "candle-load"))
	cp, err = cps.Get(context.Background(), "candle-load")
	require.NoError(t, err)
	assert.Nil(t, cp, "cleared checkpoint reads as absent")
}

func TestManifestWriter_SkipsEmptyRuns(t *testing.T) {
	blobs := newBlobStore(t)
	w := NewManifestWriter(blobs, common.NewSilentLogger())
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, w.Write(context.Background(), "candles", date, nil, nil))

	_, err := blobs.Get(context.Background(), storage.ErrorManifestKey("candles", date))
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestManifestWriter_RecordsErrorsAndSuccesses(t *testing.T) {
	blobs := newBlobStore(t)
	w := NewManifestWriter(blobs, common.NewSilentLogger())
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	errs := []models.ManifestError{{Unit: "AAPL", Error: "all providers failed", Timestamp: time.Now()}}
	successes := []models.ManifestSuccess{{Unit: "MSFT", RecordCount: 1}}
	require.NoError(t, w.Write(context.Background(), "candles", date, errs, successes))

	data, err := blobs.Get(context.Background(), storage.ErrorManifestKey("candles", date))
	require.NoError(t, err)

	var manifest models.ErrorManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, "2024-03-15", manifest.Date)
	assert.Equal(t, "candles", manifest.DataType)
	require.Len(t, manifest.Errors, 1)
	assert.Equal(t, "AAPL", manifest.Errors[0].Unit)
	require.Len(t, manifest.PartialSuccess, 1)
	assert.Equal(t, 1, manifest.PartialSuccess[0].RecordCount)
}

func TestListingStore_RoundTrip(t *testing.T) {
	store := NewListingStore(newBlobStore(t), common.NewSilentLogger())

	snapshot, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	require.NoError(t, store.Save(context.Background(), &models.ListingSnapshot{
		Exchange: "US",
		Listings: []models.Listing{{Ticker: "AAPL", Name: "Apple", Exchange: "US"}},
	}))

	snapshot, err = store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "US", snapshot.Exchange)
	require.Len(t, snapshot.Listings, 1)
	assert.Equal(t, "AAPL", snapshot.Listings[0].Ticker)
}
