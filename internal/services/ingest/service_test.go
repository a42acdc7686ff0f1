package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/providers"
	"github.com/paramtully/stocker/internal/repository"
	"github.com/paramtully/stocker/internal/services/summarize"
	"github.com/paramtully/stocker/internal/storage"
)

type stubCandleProvider struct {
	name      string
	daily     map[string][]models.Candle
	ranged    map[string][]models.Candle
	histories map[string][]models.Candle
}

func (p *stubCandleProvider) Name() string { return p.name }

func (p *stubCandleProvider) GetHistoricalCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	return p.histories[ticker], nil
}

func (p *stubCandleProvider) GetDailyCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	return p.daily[ticker], nil
}

func (p *stubCandleProvider) GetRangeCandles(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	return p.ranged[ticker], nil
}

type stubNewsProvider struct {
	name     string
	articles map[string][]models.NewsArticle
}

func (p *stubNewsProvider) Name() string { return p.name }

func (p *stubNewsProvider) GetLatestNewsArticles(ctx context.Context, ticker string, since time.Time) ([]models.NewsArticle, error) {
	return p.articles[ticker], nil
}

func (p *stubNewsProvider) GetHistoricalNewsArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	return p.articles[ticker], nil
}

type stubListingProvider struct {
	listings []models.Listing
}

func (p *stubListingProvider) Name() string { return "stub-listings" }

func (p *stubListingProvider) GetExchangeListings(ctx context.Context, exchange string) ([]models.Listing, error) {
	return p.listings, nil
}

type scriptedLLM struct {
	response string
	calls    int
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateJSON(ctx context.Context, system, user string, temp float64) (string, error) {
	s.calls++
	return s.response, nil
}

type fixture struct {
	svc     *Service
	blobs   storage.BlobStore
	candles *repository.CandleRepository
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func candle(ticker, date string, close float64) models.Candle {
	d, _ := time.Parse("2006-01-02", date)
	return models.Candle{Ticker: ticker, Date: d, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func newFixture(t *testing.T, tickers []string, cp interfaces.CandleProvider, np interfaces.NewsProvider, llm interfaces.LLMProvider, now time.Time) *fixture {
	t.Helper()
	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	logger := common.NewSilentLogger()
	candles := repository.NewCandleRepository(blobs, logger)

	deps := Deps{
		CandleFallback: providers.NewFallback[interfaces.CandleProvider](logger, cp),
		NewsFallback:   providers.NewFallback[interfaces.NewsProvider](logger, np),
		Candles:        candles,
		Articles:       repository.NewArticleRepository(blobs, logger),
		Summaries:      repository.NewSummaryRepository(blobs, logger),
		Listings:       repository.NewListingStore(blobs, logger),
		Manifests:      repository.NewManifestWriter(blobs, logger),
		Summarizer:     summarize.NewService(llm, logger),
	}

	svc := NewService(tickers, "US", deps, logger,
		WithInterCallDelay(0), withClock(func() time.Time { return now }))
	return &fixture{svc: svc, blobs: blobs, candles: candles}
}

func TestCollectDailyCandles_WritesDailyAndYearFiles(t *testing.T) {
	// 2024-03-15 is a regular trading Friday.
	now := day(t, "2024-03-15")
	cp := &stubCandleProvider{
		name: "stub",
		daily: map[string][]models.Candle{
			"AAPL": {candle("AAPL", "2024-03-15", 174.5)},
			"MSFT": {candle("MSFT", "2024-03-15", 420)},
		},
	}

	f := newFixture(t, []string{"AAPL", "MSFT"}, cp, &stubNewsProvider{name: "n"}, &scriptedLLM{}, now)

	require.NoError(t, f.svc.CollectDailyCandles(context.Background()))

	stored, err := f.candles.GetYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	_, err = f.blobs.Get(context.Background(), storage.DailyKey("candles", now))
	assert.NoError(t, err, "daily file written")

	data, err := f.blobs.Get(context.Background(), storage.ErrorManifestKey("candles", now))
	require.NoError(t, err)
	var manifest models.ErrorManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Empty(t, manifest.Errors)
	assert.Len(t, manifest.PartialSuccess, 2)
}

func TestCollectDailyCandles_SkipsNonTradingDay(t *testing.T) {
	now := day(t, "2024-03-16") // Saturday
	cp := &stubCandleProvider{name: "stub", daily: map[string][]models.Candle{
		"AAPL": {candle("AAPL", "2024-03-16", 174.5)},
	}}

	f := newFixture(t, []string{"AAPL"}, cp, &stubNewsProvider{name: "n"}, &scriptedLLM{}, now)

	require.NoError(t, f.svc.CollectDailyCandles(context.Background()))
	stored, err := f.candles.GetYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestReconcileRecentDays_RefetchesOnlyGappedTickers(t *testing.T) {
	now := day(t, "2024-03-15")

	cp := &stubCandleProvider{
		name: "stub",
		ranged: map[string][]models.Candle{
			"MSFT": {candle("MSFT", "2024-03-14", 419), candle("MSFT", "2024-03-15", 420)},
		},
	}

	f := newFixture(t, []string{"AAPL", "MSFT"}, cp, &stubNewsProvider{name: "n"}, &scriptedLLM{}, now)

	// Seed AAPL complete for the window, MSFT entirely absent.
	var seed []models.Candle
	for _, d := range []string{"2024-03-08", "2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15"} {
		seed = append(seed, candle("AAPL", d, 170))
	}
	require.NoError(t, f.candles.SaveHistorical(context.Background(), seed))

	require.NoError(t, f.svc.ReconcileRecentDays(context.Background()))

	stored, err := f.candles.GetForDateRange(context.Background(), day(t, "2024-03-14"), now)
	require.NoError(t, err)

	tickers := map[string]int{}
	for _, c := range stored {
		tickers[c.Ticker]++
	}
	assert.Equal(t, 2, tickers["MSFT"], "MSFT gap filled")
	assert.Equal(t, 2, tickers["AAPL"], "AAPL untouched")
}

func TestCollectNews_SkipsAlreadySummarizedURLs(t *testing.T) {
	now := day(t, "2024-03-15")
	published := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

	a1 := models.NewsArticle{Ticker: "AAPL", URL: "https://e.com/1", Title: "One", PublishDate: published}
	a2 := models.NewsArticle{Ticker: "AAPL", URL: "https://e.com/2", Title: "Two", PublishDate: published}

	np := &stubNewsProvider{name: "n", articles: map[string][]models.NewsArticle{"AAPL": {a1, a2}}}

	response, err := json.Marshal([]map[string]any{{
		"url":                a2.URL,
		"summary":            "s",
		"impactAnalysis":     []string{"a", "b", "c"},
		"recommendedActions": []string{"x", "y", "z"},
		"sentiment":          "neutral",
	}})
	require.NoError(t, err)
	llm := &scriptedLLM{response: string(response)}

	f := newFixture(t, []string{"AAPL"}, &stubCandleProvider{name: "c"}, np, llm, now)

	// a1 already has a persisted summary.
	logger := common.NewSilentLogger()
	sums := repository.NewSummaryRepository(f.blobs, logger)
	require.NoError(t, sums.UpdateYear(context.Background(), 2024, []models.NewsSummary{{
		Ticker: "AAPL", ArticleURL: a1.URL, PublishDate: published, Summary: "old", Sentiment: "neutral",
	}}))

	require.NoError(t, f.svc.CollectNews(context.Background()))

	assert.Equal(t, 1, llm.calls, "only the unsummarized article goes to the LLM")

	stored, err := sums.GetForDateRange(context.Background(), published.AddDate(0, 0, -1), now)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "old summary kept, new one merged in")
}

func TestDetectNewListings(t *testing.T) {
	now := day(t, "2024-03-15")
	lp := &stubListingProvider{listings: []models.Listing{
		{Ticker: "AAPL", Name: "Apple", Exchange: "US"},
		{Ticker: "NEWCO", Name: "New Company", Exchange: "US"},
	}}

	f := newFixture(t, []string{"AAPL"}, &stubCandleProvider{name: "c"}, &stubNewsProvider{name: "n"}, &scriptedLLM{}, now)

	logger := common.NewSilentLogger()
	listings := repository.NewListingStore(f.blobs, logger)
	require.NoError(t, listings.Save(context.Background(), &models.ListingSnapshot{
		Exchange: "US",
		Listings: []models.Listing{{Ticker: "AAPL", Name: "Apple", Exchange: "US"}},
	}))

	fresh, err := f.svc.DetectNewListings(context.Background(), lp)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "NEWCO", fresh[0].Ticker)

	// The snapshot now contains the full current set.
	snapshot, err := listings.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Listings, 2)
}

func TestDetectNewListings_EmptyProviderResultFails(t *testing.T) {
	now := day(t, "2024-03-15")
	f := newFixture(t, []string{"AAPL"}, &stubCandleProvider{name: "c"}, &stubNewsProvider{name: "n"}, &scriptedLLM{}, now)

	_, err := f.svc.DetectNewListings(context.Background(), &stubListingProvider{})
	assert.Error(t, err, "an empty symbol list must not wipe the snapshot")
}
