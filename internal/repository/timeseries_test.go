package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/storage"
)

func day(s string) time.Time {
	t, err := time.Parse(calendar.DayFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func candle(ticker, date string, close float64) models.Candle {
	return models.Candle{
		Ticker: ticker,
		Date:   day(date),
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: 1000,
	}
}

func newTestBlobs(t *testing.T) storage.BlobStore {
	t.Helper()
	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return blobs
}

func newTestRepo(t *testing.T) (*CandleRepository, storage.BlobStore) {
	t.Helper()
	blobs := newTestBlobs(t)
	return NewCandleRepository(blobs, common.NewSilentLogger()), blobs
}

func TestUpdateYear_MergeIdempotence(t *testing.T) {
	ctx := context.Background()
	repo, blobs := newTestRepo(t)

	records := []models.Candle{
		candle("AAPL", "2024-03-14", 172.5),
		candle("AAPL", "2024-03-15", 173.0),
		candle("MSFT", "2024-03-15", 417.1),
	}

	require.NoError(t, repo.UpdateYear(ctx, 2024, records))
	first, err := blobs.Get(ctx, storage.YearKey("candles", 2024))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateYear(ctx, 2024, records))
	second, err := blobs.Get(ctx, storage.YearKey("candles", 2024))
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeating the same merge must produce identical file content")
}

func TestUpdateYear_NaturalKeyDedup(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	v1 := candle("AAPL", "2024-03-15", 100)
	require.NoError(t, repo.UpdateYear(ctx, 2024, []models.Candle{v1}))

	v2 := candle("AAPL", "2024-03-15", 25)
	require.NoError(t, repo.UpdateYear(ctx, 2024, []models.Candle{v2}))

	stored, err := repo.GetYear(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, stored, 1, "same natural key must collapse to one record")
	assert.Equal(t, 25.0, stored[0].Close, "later record wins")
}

func TestUpdateYear_SortedAscendingByDate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.UpdateYear(ctx, 2024, []models.Candle{
		candle("AAPL", "2024-06-03", 3),
		candle("AAPL", "2024-01-02", 1),
		candle("AAPL", "2024-03-15", 2),
	}))

	stored, err := repo.GetYear(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i := 1; i < len(stored); i++ {
		assert.True(t, stored[i-1].Date.Before(stored[i].Date), "year file must be sorted ascending")
	}
}

func TestSaveHistorical_PartitionsByYear(t *testing.T) {
	ctx := context.Background()
	repo, blobs := newTestRepo(t)

	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{
		candle("AAPL", "2023-11-01", 1),
		candle("AAPL", "2024-02-01", 2),
		candle("AAPL", "2024-02-02", 3),
	}))

	keys, err := blobs.List(ctx, "candles/year/")
	require.NoError(t, err)
	assert.Equal(t, []string{"candles/year/2023.json", "candles/year/2024.json"}, keys)

	y2023, err := repo.GetYear(ctx, 2023)
	require.NoError(t, err)
	assert.Len(t, y2023, 1)

	y2024, err := repo.GetYear(ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, y2024, 2)
}

func TestSaveHistorical_OverwritesYearFile(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.UpdateYear(ctx, 2024, []models.Candle{candle("AAPL", "2024-01-02", 1)}))

	// saveHistorical replaces the whole year, dropping the earlier record.
	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{candle("AAPL", "2024-06-03", 2)}))

	stored, err := repo.GetYear(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "2024-06-03", stored[0].Date.Format(calendar.DayFormat))
}

func TestGetForDateRange_SpansYearsAndFiltersDays(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{
		candle("AAPL", "2023-12-28", 1),
		candle("AAPL", "2023-12-29", 2),
		candle("AAPL", "2024-01-02", 3),
		candle("AAPL", "2024-01-03", 4),
	}))

	got, err := repo.GetForDateRange(ctx, day("2023-12-29"), day("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2023-12-29", got[0].Date.Format(calendar.DayFormat))
	assert.Equal(t, "2024-01-02", got[1].Date.Format(calendar.DayFormat))
}

func TestGetForDateRange_CorruptYearDegrades(t *testing.T) {
	ctx := context.Background()
	repo, blobs := newTestRepo(t)

	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{candle("AAPL", "2024-01-02", 3)}))
	require.NoError(t, blobs.Put(ctx, storage.YearKey("candles", 2023), []byte("{not json"), "application/json"))

	// One corrupt year out of two readable-in-range: partial results, no error.
	got, err := repo.GetForDateRange(ctx, day("2023-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetForDateRange_AllYearsUnreadableFails(t *testing.T) {
	ctx := context.Background()
	repo, blobs := newTestRepo(t)

	require.NoError(t, blobs.Put(ctx, storage.YearKey("candles", 2024), []byte("{not json"), "application/json"))

	_, err := repo.GetForDateRange(ctx, day("2024-01-01"), day("2024-12-31"))
	assert.Error(t, err, "whole call must fail when every year in range is unreadable")
}

func TestGetMissingTradingDays(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	// All of March 2024 except Friday the 15th.
	var candles []models.Candle
	for _, d := range calendar.TradingDaysInRange(day("2024-03-01"), day("2024-03-31")) {
		if d.Format(calendar.DayFormat) == "2024-03-15" {
			continue
		}
		candles = append(candles, models.Candle{Ticker: "AAPL", Date: d, Close: 100, Volume: 1})
	}
	require.NoError(t, repo.SaveHistorical(ctx, candles))

	missing, err := repo.GetMissingTradingDays(ctx, day("2024-03-01"), day("2024-03-31"), []string{"AAPL"})
	require.NoError(t, err)

	require.Len(t, missing.Dates, 1)
	assert.Equal(t, "2024-03-15", missing.Dates[0].Format(calendar.DayFormat))
	require.Len(t, missing.ByTicker["AAPL"], 1)
	assert.Equal(t, "2024-03-15", missing.ByTicker["AAPL"][0].Format(calendar.DayFormat))
}

func TestGetMissingTradingDays_PerTickerBreakdown(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	// AAPL has both days, MSFT is missing the 15th entirely.
	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{
		candle("AAPL", "2024-03-14", 1),
		candle("AAPL", "2024-03-15", 2),
		candle("MSFT", "2024-03-14", 3),
	}))

	missing, err := repo.GetMissingTradingDays(ctx, day("2024-03-14"), day("2024-03-15"), []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	assert.Empty(t, missing.ByTicker["AAPL"])
	require.Len(t, missing.ByTicker["MSFT"], 1)
	assert.Equal(t, "2024-03-15", missing.ByTicker["MSFT"][0].Format(calendar.DayFormat))
	require.Len(t, missing.Dates, 1)
}

func TestYears(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.SaveHistorical(ctx, []models.Candle{
		candle("AAPL", "2022-06-01", 1),
		candle("AAPL", "2024-06-01", 2),
	}))

	years, err := repo.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2024}, years)
}

func TestCandleRoundTrip_NoPrecisionLoss(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	in := models.Candle{
		Ticker: "AAPL",
		Date:   day("2024-03-15"),
		Open:   172.123456789,
		High:   173.000000001,
		Low:    171.999999999,
		Close:  172.5555555555555,
		Volume: 987654321,
	}
	require.NoError(t, repo.UpdateYear(ctx, 2024, []models.Candle{in}))

	stored, err := repo.GetYear(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, in, stored[0])
}
