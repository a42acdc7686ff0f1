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

// SplitLedger persists the append-only per-ticker split record ledger. The
// ledger is what guarantees a split is applied to candle data exactly once.
type SplitLedger struct {
	blobs  storage.BlobStore
	logger *common.Logger
}

// NewSplitLedger creates the split ledger store.
func NewSplitLedger(blobs storage.BlobStore, logger *common.Logger) *SplitLedger {
	return &SplitLedger{blobs: blobs, logger: logger}
}

// Get returns the recorded splits for a ticker. A missing ledger means no
// splits have ever been recorded.
func (l *SplitLedger) Get(ctx context.Context, ticker string) ([]models.StockSplit, error) {
	data, err := l.blobs.Get(ctx, storage.SplitLedgerKey(ticker))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read split ledger for %s: %w", ticker, err)
	}

	var splits []models.StockSplit
	if err := json.Unmarshal(data, &splits); err != nil {
		return nil, fmt.Errorf("corrupt split ledger for %s: %w", ticker, err)
	}
	return splits, nil
}

// Append adds new records to a ticker's ledger and persists it. A persist
// failure here must propagate: losing a ledger entry would let the next run
// re-apply an already-applied split.
func (l *SplitLedger) Append(ctx context.Context, ticker string, records ...models.StockSplit) error {
	existing, err := l.Get(ctx, ticker)
	if err != nil {
		return err
	}
	existing = append(existing, records...)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to serialize split ledger for %s: %w", ticker, err)
	}

	if err := l.blobs.Put(ctx, storage.SplitLedgerKey(ticker), data, "application/json"); err != nil {
		return fmt.Errorf("failed to write split ledger for %s: %w", ticker, err)
	}
	return nil
}
