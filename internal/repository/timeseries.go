// Package repository implements durable year-partitioned storage for the
// ingestion pipeline's entities on top of the blob store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/storage"
)

// Record is any entity storable in a year partition: it has a natural key
// for merge dedup and a date that selects its partition.
type Record interface {
	Key() string
	RecordDate() time.Time
}

// Partitioned stores one entity type in per-calendar-year blob files plus a
// daily-file variant for small incremental writes.
//
// The year file is the only shared mutable resource in the pipeline. Writers
// follow a read-modify-write-whole-file convention; scheduling discipline
// ensures no two jobs touch the same (entity, year) partition concurrently.
type Partitioned[T Record] struct {
	blobs  storage.BlobStore
	entity string
	logger *common.Logger
}

// NewPartitioned creates a year-partitioned repository for one entity type.
// The entity name becomes the key prefix ("candles", "articles", "summaries").
func NewPartitioned[T Record](blobs storage.BlobStore, entity string, logger *common.Logger) *Partitioned[T] {
	return &Partitioned[T]{
		blobs:  blobs,
		entity: entity,
		logger: logger,
	}
}

// Entity returns the entity name used as the key prefix.
func (r *Partitioned[T]) Entity() string {
	return r.entity
}

// sortRecords orders records ascending by date, tie-broken by natural key so
// repeated merges serialize to identical bytes.
func sortRecords[T Record](records []T) {
	sort.Slice(records, func(i, j int) bool {
		di, dj := records[i].RecordDate(), records[j].RecordDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return records[i].Key() < records[j].Key()
	})
}

// SaveHistorical groups records by the year of their date field and fully
// overwrites each affected year file.
func (r *Partitioned[T]) SaveHistorical(ctx context.Context, records []T) error {
	byYear := make(map[int][]T)
	for _, rec := range records {
		year := rec.RecordDate().Year()
		byYear[year] = append(byYear[year], rec)
	}

	for year, yearRecords := range byYear {
		// Dedup within the input: later records win.
		merged := make(map[string]T, len(yearRecords))
		for _, rec := range yearRecords {
			merged[rec.Key()] = rec
		}
		if err := r.writeYear(ctx, year, merged); err != nil {
			return err
		}
	}
	return nil
}

// UpdateYear merges newRecords into the existing year file: read (absent
// means empty), upsert by natural key with later records winning, sort
// ascending by date, write the whole file back. Idempotent: repeating the
// call with the same records produces identical file content.
func (r *Partitioned[T]) UpdateYear(ctx context.Context, year int, newRecords []T) error {
	existing, err := r.GetYear(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to read %s year %d for merge: %w", r.entity, year, err)
	}

	merged := make(map[string]T, len(existing)+len(newRecords))
	for _, rec := range existing {
		merged[rec.Key()] = rec
	}
	for _, rec := range newRecords {
		merged[rec.Key()] = rec
	}

	return r.writeYear(ctx, year, merged)
}

// writeYear serializes the merged record set sorted ascending by date and
// overwrites the year file.
func (r *Partitioned[T]) writeYear(ctx context.Context, year int, merged map[string]T) error {
	records := make([]T, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}
	sortRecords(records)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to serialize %s year %d: %w", r.entity, year, err)
	}

	key := storage.YearKey(r.entity, year)
	if err := r.blobs.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	r.logger.Debug().Str("key", key).Int("records", len(records)).Msg("Year partition written")
	return nil
}

// SaveDaily writes a small incremental daily file. Daily files are
// write-once per (entity, date) and are not merged; they exist for cheap
// same-day consumers and debugging.
func (r *Partitioned[T]) SaveDaily(ctx context.Context, date time.Time, records []T) error {
	sorted := make([]T, len(records))
	copy(sorted, records)
	sortRecords(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("failed to serialize %s daily file: %w", r.entity, err)
	}

	key := storage.DailyKey(r.entity, date)
	if err := r.blobs.Put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// GetYear reads one year partition. A missing file yields an empty result,
// not an error: absence means "not yet ingested".
func (r *Partitioned[T]) GetYear(ctx context.Context, year int) ([]T, error) {
	data, err := r.blobs.Get(ctx, storage.YearKey(r.entity, year))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt %s year %d file: %w", r.entity, year, err)
	}
	return records, nil
}

// GetForDateRange reads every year file overlapping [start, end] and returns
// the records within the exact day range, inclusive, sorted ascending.
//
// A single unreadable year degrades to "no data for that year" with a
// warning; the call only fails when every year file in range is unreadable.
func (r *Partitioned[T]) GetForDateRange(ctx context.Context, start, end time.Time) ([]T, error) {
	start = calendar.Normalize(start)
	end = calendar.Normalize(end)
	if start.After(end) {
		return nil, fmt.Errorf("invalid range: start %s after end %s",
			start.Format(calendar.DayFormat), end.Format(calendar.DayFormat))
	}

	var (
		results  []T
		readable int
		failed   []int
	)

	for year := start.Year(); year <= end.Year(); year++ {
		records, err := r.GetYear(ctx, year)
		if err != nil {
			failed = append(failed, year)
			r.logger.Warn().Str("entity", r.entity).Int("year", year).Err(err).
				Msg("Skipping unreadable year partition")
			continue
		}
		readable++

		for _, rec := range records {
			d := calendar.Normalize(rec.RecordDate())
			if d.Before(start) || d.After(end) {
				continue
			}
			results = append(results, rec)
		}
	}

	if readable == 0 && len(failed) > 0 {
		return nil, fmt.Errorf("all %s year partitions unreadable in range %s..%s: years %v",
			r.entity, start.Format(calendar.DayFormat), end.Format(calendar.DayFormat), failed)
	}

	sortRecords(results)
	return results, nil
}

// Years lists the years that have a partition file, ascending.
func (r *Partitioned[T]) Years(ctx context.Context) ([]int, error) {
	keys, err := r.blobs.List(ctx, storage.YearPrefix(r.entity))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s year partitions: %w", r.entity, err)
	}

	years := make([]int, 0, len(keys))
	for _, key := range keys {
		var year int
		if _, err := fmt.Sscanf(key, storage.YearPrefix(r.entity)+"%d.json", &year); err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}
