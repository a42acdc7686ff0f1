package repository

import (
	"context"
	"sort"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/storage"
)

// CandleRepository stores daily candles in year partitions.
type CandleRepository struct {
	*Partitioned[models.Candle]
}

// NewCandleRepository creates the candle repository.
func NewCandleRepository(blobs storage.BlobStore, logger *common.Logger) *CandleRepository {
	return &CandleRepository{
		Partitioned: NewPartitioned[models.Candle](blobs, "candles", logger),
	}
}

// MissingDays is the result of a reconciliation scan: the union of missing
// trading days plus the per-ticker breakdown.
type MissingDays struct {
	Dates    []time.Time            `json:"dates"`
	ByTicker map[string][]time.Time `json:"by_ticker"`
}

// GetMissingTradingDays diffs the expected trading days in [start, end]
// against the stored candle dates for each ticker.
func (r *CandleRepository) GetMissingTradingDays(ctx context.Context, start, end time.Time, tickers []string) (*MissingDays, error) {
	expected := calendar.TradingDaysInRange(start, end)
	if len(expected) == 0 || len(tickers) == 0 {
		return &MissingDays{ByTicker: map[string][]time.Time{}}, nil
	}

	stored, err := r.GetForDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// (ticker, day) pairs present in storage.
	present := make(map[string]struct{}, len(stored))
	for _, c := range stored {
		present[c.Key()] = struct{}{}
	}

	result := &MissingDays{ByTicker: make(map[string][]time.Time, len(tickers))}
	union := make(map[string]time.Time)

	for _, ticker := range tickers {
		for _, day := range expected {
			probe := models.Candle{Ticker: ticker, Date: day}
			if _, ok := present[probe.Key()]; ok {
				continue
			}
			result.ByTicker[ticker] = append(result.ByTicker[ticker], day)
			union[day.Format(calendar.DayFormat)] = day
		}
	}

	for _, day := range union {
		result.Dates = append(result.Dates, day)
	}
	sort.Slice(result.Dates, func(i, j int) bool { return result.Dates[i].Before(result.Dates[j]) })

	return result, nil
}

// ArticleRepository stores raw news articles in year partitions.
type ArticleRepository struct {
	*Partitioned[models.NewsArticle]
}

// NewArticleRepository creates the raw-article repository.
func NewArticleRepository(blobs storage.BlobStore, logger *common.Logger) *ArticleRepository {
	return &ArticleRepository{
		Partitioned: NewPartitioned[models.NewsArticle](blobs, "articles", logger),
	}
}

// SummaryRepository stores generated news summaries in year partitions.
type SummaryRepository struct {
	*Partitioned[models.NewsSummary]
}

// NewSummaryRepository creates the news-summary repository.
func NewSummaryRepository(blobs storage.BlobStore, logger *common.Logger) *SummaryRepository {
	return &SummaryRepository{
		Partitioned: NewPartitioned[models.NewsSummary](blobs, "summaries", logger),
	}
}

// SummarizedURLs returns the set of article URLs that already have a summary
// in [start, end]. Existing summaries are the dedup filter that makes
// summarization runs idempotent.
func (r *SummaryRepository) SummarizedURLs(ctx context.Context, start, end time.Time) (map[string]struct{}, error) {
	summaries, err := r.GetForDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	urls := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		urls[s.ArticleURL] = struct{}{}
	}
	return urls, nil
}
