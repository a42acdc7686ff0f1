// Package interfaces defines provider and store contracts for stocker.
package interfaces

import (
	"context"
	"time"

	"github.com/paramtully/stocker/internal/models"
)

// CandleProvider is one upstream source of daily OHLCV data. Implementations
// must return an error OR a populated result; the fallback service treats an
// empty result the same as an error for the requested unit.
type CandleProvider interface {
	// Name identifies the provider in error logs and manifests.
	Name() string

	// GetHistoricalCandles fetches the full available daily history.
	GetHistoricalCandles(ctx context.Context, ticker string) ([]models.Candle, error)

	// GetDailyCandles fetches the most recent daily candle.
	GetDailyCandles(ctx context.Context, ticker string) ([]models.Candle, error)

	// GetRangeCandles fetches daily candles in [start, end] inclusive.
	GetRangeCandles(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error)
}

// SplitCapableProvider is the typed capability for corporate-action queries.
// Only providers that support split data implement it; the split detector
// selects providers with a type assertion, never a runtime property probe.
type SplitCapableProvider interface {
	CandleProvider

	// GetStockSplits fetches splits for the ticker in [start, end].
	GetStockSplits(ctx context.Context, ticker string, start, end time.Time) ([]models.StockSplit, error)
}

// ListingProvider enumerates tradeable symbols on an exchange.
type ListingProvider interface {
	Name() string

	GetExchangeListings(ctx context.Context, exchange string) ([]models.Listing, error)
}

// NewsProvider is one upstream source of news articles.
type NewsProvider interface {
	Name() string

	// GetLatestNewsArticles fetches articles published since the given time.
	GetLatestNewsArticles(ctx context.Context, ticker string, since time.Time) ([]models.NewsArticle, error)

	// GetHistoricalNewsArticles fetches the full available article history.
	GetHistoricalNewsArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error)
}

// LLMProvider is one text-generation backend.
type LLMProvider interface {
	Name() string

	// GenerateJSON runs one generation request and returns the raw response
	// text, which callers parse as JSON.
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// CandleStore is the transactional-store boundary for candles. InsertCandles
// must upsert on (ticker, date): re-insertion with changed values updates in
// place, which is what makes split adjustment and loader retries safe to
// repeat.
type CandleStore interface {
	InsertCandles(ctx context.Context, candles []models.Candle) error
	GetCandlesByTickers(ctx context.Context, tickers []string) ([]models.Candle, error)
	GetCandleByTickerAndDate(ctx context.Context, ticker string, date time.Time) (*models.Candle, error)
}

// SummaryStore is the transactional-store boundary for news summaries.
// Inserts are append-only; URL uniqueness is enforced by the store.
type SummaryStore interface {
	InsertNewsSummaries(ctx context.Context, summaries []models.NewsSummary) error
	GetSummariesByTicker(ctx context.Context, ticker string) ([]models.NewsSummary, error)
}
