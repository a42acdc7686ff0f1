package storage

import (
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
)

// Key layout shared with external readers of the bucket. Changing any of
// these formats breaks interop with the dashboard's data loaders.

// YearKey returns the key of an entity's year-partition file,
// e.g. "candles/year/2024.json".
func YearKey(entity string, year int) string {
	return fmt.Sprintf("%s/year/%d.json", entity, year)
}

// YearPrefix returns the listing prefix for an entity's year partitions.
func YearPrefix(entity string) string {
	return entity + "/year/"
}

// DailyKey returns the key of an entity's daily incremental file,
// e.g. "candles/daily/2024-03-15_candles.json".
func DailyKey(entity string, date time.Time) string {
	return fmt.Sprintf("%s/daily/%s_%s.json", entity, date.Format(calendar.DayFormat), entity)
}

// CheckpointKey returns the key of a job's checkpoint,
// e.g. "checkpoints/candle-load-checkpoint.json".
func CheckpointKey(job string) string {
	return fmt.Sprintf("checkpoints/%s-checkpoint.json", job)
}

// ErrorManifestKey returns the key of a run's error manifest,
// e.g. "errors/candles/2024-03-15-errors.json".
func ErrorManifestKey(entity string, date time.Time) string {
	return fmt.Sprintf("errors/%s/%s-errors.json", entity, date.Format(calendar.DayFormat))
}

// SplitLedgerKey returns the key of a ticker's split ledger,
// e.g. "splits/AAPL-splits.json".
func SplitLedgerKey(ticker string) string {
	return fmt.Sprintf("splits/%s-splits.json", ticker)
}

// ListingsKey is the key of the current-listings snapshot.
const ListingsKey = "listings/current-listings.json"
