// Package ingest implements the scheduled ingestion jobs: daily candle
// collection, missing-day reconciliation, historical backfill, news
// collection and summarization, and new-listing detection.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/providers"
	"github.com/paramtully/stocker/internal/repository"
	"github.com/paramtully/stocker/internal/services/summarize"
)

const (
	// DefaultInterCallDelay is the pause between calls to the same provider
	// for consecutive tickers.
	DefaultInterCallDelay = 1800 * time.Millisecond

	// DefaultReconcileWindowDays is the rolling window scanned for missing
	// trading days.
	DefaultReconcileWindowDays = 7

	// DefaultNewsWindowDays bounds the "latest news" fetch.
	DefaultNewsWindowDays = 3
)

// Service drives the ingestion jobs over a fixed ticker universe.
type Service struct {
	tickers  []string
	exchange string

	candleFB *providers.Fallback[interfaces.CandleProvider]
	newsFB   *providers.Fallback[interfaces.NewsProvider]

	candles   *repository.CandleRepository
	articles  *repository.ArticleRepository
	summaries *repository.SummaryRepository
	listings  *repository.ListingStore
	manifests *repository.ManifestWriter

	summarizer   *summarize.Service
	summaryStore interfaces.SummaryStore

	delay          time.Duration
	reconcileDays  int
	newsWindowDays int
	logger         *common.Logger
	now            func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithInterCallDelay sets the inter-ticker provider delay.
func WithInterCallDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithReconcileWindowDays sets the reconciliation lookback.
func WithReconcileWindowDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.reconcileDays = days
		}
	}
}

// WithNewsWindowDays sets the latest-news lookback.
func WithNewsWindowDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.newsWindowDays = days
		}
	}
}

// withClock overrides the clock for tests.
func withClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Deps bundles the stores and fallback chains the service needs.
type Deps struct {
	CandleFallback *providers.Fallback[interfaces.CandleProvider]
	NewsFallback   *providers.Fallback[interfaces.NewsProvider]
	Candles        *repository.CandleRepository
	Articles       *repository.ArticleRepository
	Summaries      *repository.SummaryRepository
	Listings       *repository.ListingStore
	Manifests      *repository.ManifestWriter
	Summarizer     *summarize.Service
	SummaryStore   interfaces.SummaryStore
}

// NewService creates the ingestion service.
func NewService(tickers []string, exchange string, deps Deps, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		tickers:        tickers,
		exchange:       exchange,
		candleFB:       deps.CandleFallback,
		newsFB:         deps.NewsFallback,
		candles:        deps.Candles,
		articles:       deps.Articles,
		summaries:      deps.Summaries,
		listings:       deps.Listings,
		manifests:      deps.Manifests,
		summarizer:     deps.Summarizer,
		summaryStore:   deps.SummaryStore,
		delay:          DefaultInterCallDelay,
		reconcileDays:  DefaultReconcileWindowDays,
		newsWindowDays: DefaultNewsWindowDays,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// writeManifest converts per-unit outcomes into manifest entries and
// persists them. Manifest failures are logged, never fatal to the job.
func (s *Service) writeManifest(ctx context.Context, dataType string, date time.Time, results []providers.UnitResult[models.Candle]) {
	var errs []models.ManifestError
	var successes []models.ManifestSuccess
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, models.ManifestError{
				Unit:      r.Unit,
				Error:     r.Err.Error(),
				Timestamp: s.now(),
			})
			continue
		}
		successes = append(successes, models.ManifestSuccess{Unit: r.Unit, RecordCount: len(r.Records)})
	}

	if err := s.manifests.Write(ctx, dataType, date, errs, successes); err != nil {
		s.logger.Error().Err(err).Str("data_type", dataType).Msg("Failed to write error manifest")
	}
}

// CollectDailyCandles fetches the current day's candle for every ticker and
// writes both the daily file and the year merge.
func (s *Service) CollectDailyCandles(ctx context.Context) error {
	today := calendar.Normalize(s.now())
	if !calendar.IsTradingDay(today) {
		s.logger.Info().Str("date", today.Format(calendar.DayFormat)).Msg("Not a trading day, skipping daily collection")
		return nil
	}

	s.candleFB.ClearErrorLog()
	results := providers.FetchUnits(s.candleFB, s.tickers, s.delay,
		func(p interfaces.CandleProvider, ticker string) ([]models.Candle, error) {
			return p.GetDailyCandles(ctx, ticker)
		})

	var collected []models.Candle
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn().Str("ticker", r.Unit).Err(r.Err).Msg("Daily candle fetch failed")
			continue
		}
		collected = append(collected, r.Records...)
	}

	if len(collected) > 0 {
		if err := s.candles.SaveDaily(ctx, today, collected); err != nil {
			return err
		}
		if err := s.candles.UpdateYear(ctx, today.Year(), collected); err != nil {
			return err
		}
	}

	s.writeManifest(ctx, "candles", today, results)
	s.logger.Info().Int("tickers", len(s.tickers)).Int("candles", len(collected)).
		Msg("Daily candle collection complete")
	return nil
}

// ReconcileRecentDays scans the rolling window for (ticker, trading day)
// holes and refetches only the tickers with gaps.
func (s *Service) ReconcileRecentDays(ctx context.Context) error {
	end := calendar.Normalize(s.now())
	start := end.AddDate(0, 0, -s.reconcileDays)

	missing, err := s.candles.GetMissingTradingDays(ctx, start, end, s.tickers)
	if err != nil {
		return fmt.Errorf("scan for missing days: %w", err)
	}
	if len(missing.ByTicker) == 0 {
		s.logger.Info().Msg("No missing trading days in window")
		return nil
	}

	gapped := make([]string, 0, len(missing.ByTicker))
	for ticker := range missing.ByTicker {
		gapped = append(gapped, ticker)
	}

	s.candleFB.ClearErrorLog()
	results := providers.FetchUnits(s.candleFB, gapped, s.delay,
		func(p interfaces.CandleProvider, ticker string) ([]models.Candle, error) {
			return p.GetRangeCandles(ctx, ticker, start, end)
		})

	byYear := make(map[int][]models.Candle)
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn().Str("ticker", r.Unit).Err(r.Err).Msg("Reconciliation refetch failed")
			continue
		}
		for _, c := range r.Records {
			byYear[c.Date.Year()] = append(byYear[c.Date.Year()], c)
		}
	}

	for year, candles := range byYear {
		if err := s.candles.UpdateYear(ctx, year, candles); err != nil {
			return err
		}
	}

	s.writeManifest(ctx, "candles-reconcile", end, results)
	s.logger.Info().Int("gapped_tickers", len(gapped)).Int("missing_days", len(missing.Dates)).
		Msg("Reconciliation complete")
	return nil
}

// BackfillHistorical fetches the full candle history for every ticker and
// overwrites the affected year partitions.
func (s *Service) BackfillHistorical(ctx context.Context) error {
	s.candleFB.ClearErrorLog()
	results := providers.FetchUnits(s.candleFB, s.tickers, s.delay,
		func(p interfaces.CandleProvider, ticker string) ([]models.Candle, error) {
			return p.GetHistoricalCandles(ctx, ticker)
		})

	var all []models.Candle
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn().Str("ticker", r.Unit).Err(r.Err).Msg("Historical fetch failed")
			continue
		}
		all = append(all, r.Records...)
	}

	// Merge rather than overwrite: each ticker contributes to shared year
	// files, and a full overwrite would drop the other tickers' history on a
	// partial run.
	byYear := make(map[int][]models.Candle)
	for _, c := range all {
		byYear[c.Date.Year()] = append(byYear[c.Date.Year()], c)
	}
	for year, candles := range byYear {
		if err := s.candles.UpdateYear(ctx, year, candles); err != nil {
			return err
		}
	}

	s.writeManifest(ctx, "candles-backfill", calendar.Normalize(s.now()), results)
	s.logger.Info().Int("tickers", len(s.tickers)).Int("candles", len(all)).
		Msg("Historical backfill complete")
	return nil
}

// CollectNews fetches recent articles per ticker, persists the raw articles,
// summarizes the ones without an existing summary, and persists the results
// to both the partitioned repository and the transactional store.
func (s *Service) CollectNews(ctx context.Context) error {
	now := s.now()
	since := now.AddDate(0, 0, -s.newsWindowDays)

	s.newsFB.ClearErrorLog()
	results := providers.FetchUnits(s.newsFB, s.tickers, s.delay,
		func(p interfaces.NewsProvider, ticker string) ([]models.NewsArticle, error) {
			return p.GetLatestNewsArticles(ctx, ticker, since)
		})

	var fetched []models.NewsArticle
	var errs []models.ManifestError
	var successes []models.ManifestSuccess
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn().Str("ticker", r.Unit).Err(r.Err).Msg("News fetch failed")
			errs = append(errs, models.ManifestError{Unit: r.Unit, Error: r.Err.Error(), Timestamp: s.now()})
			continue
		}
		successes = append(successes, models.ManifestSuccess{Unit: r.Unit, RecordCount: len(r.Records)})
		fetched = append(fetched, r.Records...)
	}

	if len(fetched) > 0 {
		byYear := make(map[int][]models.NewsArticle)
		for _, a := range fetched {
			byYear[a.PublishDate.Year()] = append(byYear[a.PublishDate.Year()], a)
		}
		for year, articles := range byYear {
			if err := s.articles.UpdateYear(ctx, year, articles); err != nil {
				return err
			}
		}
	}

	// Existing summaries are the dedup filter: only unsummarized articles go
	// to the LLM, so failed articles from prior runs retry naturally.
	summarized, err := s.summaries.SummarizedURLs(ctx, since, now)
	if err != nil {
		return fmt.Errorf("load summarized URLs: %w", err)
	}

	var pending []models.NewsArticle
	for _, a := range fetched {
		if _, ok := summarized[a.URL]; !ok {
			pending = append(pending, a)
		}
	}

	if len(pending) > 0 {
		result, err := s.summarizer.Summarize(ctx, pending)
		if err != nil {
			return err
		}

		if len(result.Summaries) > 0 {
			byYear := make(map[int][]models.NewsSummary)
			for _, sum := range result.Summaries {
				byYear[sum.PublishDate.Year()] = append(byYear[sum.PublishDate.Year()], sum)
			}
			for year, sums := range byYear {
				if err := s.summaries.UpdateYear(ctx, year, sums); err != nil {
					return err
				}
			}
			if s.summaryStore != nil {
				if err := s.summaryStore.InsertNewsSummaries(ctx, result.Summaries); err != nil {
					return fmt.Errorf("store summaries: %w", err)
				}
			}
		}

		for _, f := range result.FailedArticles {
			errs = append(errs, models.ManifestError{Unit: f.Article.URL, Error: f.Reason, Timestamp: s.now()})
		}
		s.logger.Info().Int("summarized", len(result.Summaries)).
			Int("failed", len(result.FailedArticles)).Msg("Summarization complete")
	}

	if err := s.manifests.Write(ctx, "news", calendar.Normalize(now), errs, successes); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write news manifest")
	}
	return nil
}

// DetectNewListings diffs the exchange's current symbol list against the
// stored snapshot and persists the refreshed set. Returns the listings seen
// for the first time.
func (s *Service) DetectNewListings(ctx context.Context, provider interfaces.ListingProvider) ([]models.Listing, error) {
	current, err := provider.GetExchangeListings(ctx, s.exchange)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange listings: %w", err)
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("provider %s returned no listings for %s", provider.Name(), s.exchange)
	}

	snapshot, err := s.listings.Get(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	if snapshot != nil {
		for _, l := range snapshot.Listings {
			known[l.Ticker] = struct{}{}
		}
	}

	var fresh []models.Listing
	for _, l := range current {
		if _, ok := known[l.Ticker]; !ok {
			fresh = append(fresh, l)
		}
	}

	if err := s.listings.Save(ctx, &models.ListingSnapshot{
		Exchange:  s.exchange,
		UpdatedAt: s.now(),
		Listings:  current,
	}); err != nil {
		return nil, err
	}

	s.logger.Info().Str("exchange", s.exchange).Int("listings", len(current)).
		Int("new", len(fresh)).Msg("Listing detection complete")
	return fresh, nil
}
