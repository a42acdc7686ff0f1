// Package postgres implements the transactional candle and summary stores on
// PostgreSQL via GORM.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

// DefaultBatchSize bounds one INSERT statement.
const DefaultBatchSize = 10000

// Store wraps a GORM connection and implements CandleStore and SummaryStore.
type Store struct {
	db        *gorm.DB
	batchSize int
	logger    *common.Logger
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithBatchSize sets the per-statement insert batch size.
func WithBatchSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore connects to Postgres and runs migrations for the candle and
// summary tables.
func NewStore(dsn string, opts ...StoreOption) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &Store{
		db:        db,
		batchSize: DefaultBatchSize,
		logger:    common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.AutoMigrate(&CandleRecord{}, &SummaryRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return s, nil
}

// IsHealthy pings the underlying connection.
func (s *Store) IsHealthy(ctx context.Context) bool {
	db, err := s.db.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}

// InsertCandles upserts candles on (ticker, date). Re-insertion with changed
// values updates in place, which keeps split adjustment and loader retries
// safe to repeat. Inserts are issued in batchSize chunks.
func (s *Store) InsertCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	records := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		records = append(records, toCandleRecord(c))
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "ticker"},
				{Name: "date"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).Create(records[start:end])

		if tx.Error != nil {
			return fmt.Errorf("insert candles batch [%d:%d]: %w", start, end, tx.Error)
		}
	}

	s.logger.Debug().Int("count", len(records)).Msg("Upserted candles")
	return nil
}

// GetCandlesByTickers returns all stored candles for the tickers, ordered by
// ticker then date ascending.
func (s *Store) GetCandlesByTickers(ctx context.Context, tickers []string) ([]models.Candle, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	var records []CandleRecord
	err := s.db.WithContext(ctx).
		Where("ticker IN ?", tickers).
		Order("ticker, date").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}

	candles := make([]models.Candle, 0, len(records))
	for _, r := range records {
		candles = append(candles, r.toModel())
	}
	return candles, nil
}

// GetCandleByTickerAndDate returns the candle for one ticker and day, or nil
// when none is stored.
func (s *Store) GetCandleByTickerAndDate(ctx context.Context, ticker string, date time.Time) (*models.Candle, error) {
	day := calendar.Normalize(date)

	var record CandleRecord
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date >= ? AND date < ?", ticker, day, day.AddDate(0, 0, 1)).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query candle: %w", err)
	}

	candle := record.toModel()
	return &candle, nil
}

// InsertNewsSummaries appends summaries, silently skipping article URLs that
// already have one. Summaries are immutable once written.
func (s *Store) InsertNewsSummaries(ctx context.Context, summaries []models.NewsSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	records := make([]SummaryRecord, 0, len(summaries))
	for _, sum := range summaries {
		impact, err := json.Marshal(sum.ImpactAnalysis)
		if err != nil {
			return fmt.Errorf("marshal impact analysis for %s: %w", sum.ArticleURL, err)
		}
		actions, err := json.Marshal(sum.RecommendedActions)
		if err != nil {
			return fmt.Errorf("marshal recommended actions for %s: %w", sum.ArticleURL, err)
		}
		records = append(records, SummaryRecord{
			ArticleURL:         sum.ArticleURL,
			Ticker:             sum.Ticker,
			Source:             sum.Source,
			Headline:           sum.Headline,
			PublishDate:        sum.PublishDate,
			Summary:            sum.Summary,
			ImpactAnalysis:     string(impact),
			RecommendedActions: string(actions),
			Sentiment:          sum.Sentiment,
			GeneratedAt:        sum.GeneratedAt,
		})
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "article_url"}},
			DoNothing: true,
		}).Create(records[start:end])

		if tx.Error != nil {
			return fmt.Errorf("insert summaries batch [%d:%d]: %w", start, end, tx.Error)
		}
	}

	return nil
}

// GetSummariesByTicker returns stored summaries for a ticker, newest first.
func (s *Store) GetSummariesByTicker(ctx context.Context, ticker string) ([]models.NewsSummary, error) {
	var records []SummaryRecord
	err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("publish_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}

	summaries := make([]models.NewsSummary, 0, len(records))
	for _, r := range records {
		sum := models.NewsSummary{
			Ticker:      r.Ticker,
			Source:      r.Source,
			Headline:    r.Headline,
			ArticleURL:  r.ArticleURL,
			PublishDate: r.PublishDate,
			Summary:     r.Summary,
			Sentiment:   r.Sentiment,
			GeneratedAt: r.GeneratedAt,
		}
		if r.ImpactAnalysis != "" {
			if err := json.Unmarshal([]byte(r.ImpactAnalysis), &sum.ImpactAnalysis); err != nil {
				return nil, fmt.Errorf("unmarshal impact analysis for %s: %w", r.ArticleURL, err)
			}
		}
		if r.RecommendedActions != "" {
			if err := json.Unmarshal([]byte(r.RecommendedActions), &sum.RecommendedActions); err != nil {
				return nil, fmt.Errorf("unmarshal recommended actions for %s: %w", r.ArticleURL, err)
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Interface assertions
var (
	_ interfaces.CandleStore  = (*Store)(nil)
	_ interfaces.SummaryStore = (*Store)(nil)
)
