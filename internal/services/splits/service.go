// Package splits detects new corporate actions and applies them to stored
// candle history exactly once.
package splits

import (
	"context"
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/repository"
)

// DefaultLookbackDays is the split-detection window.
const DefaultLookbackDays = 30

// Service detects splits over a lookback window and retroactively adjusts
// candle history. The ledger is the idempotence guard: a split date already
// recorded there is never applied again.
type Service struct {
	provider interfaces.SplitCapableProvider
	candles  interfaces.CandleStore
	ledger   *repository.SplitLedger
	lookback int
	logger   *common.Logger
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithLookbackDays sets the detection window in days.
func WithLookbackDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.lookback = days
		}
	}
}

// NewService creates the split detector.
func NewService(provider interfaces.SplitCapableProvider, candles interfaces.CandleStore, ledger *repository.SplitLedger, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		candles:  candles,
		ledger:   ledger,
		lookback: DefaultLookbackDays,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectAndApply runs the detection state machine for one ticker. It returns
// the splits newly applied during this run.
func (s *Service) DetectAndApply(ctx context.Context, ticker string) ([]models.StockSplit, error) {
	end := calendar.Normalize(time.Now())
	start := end.AddDate(0, 0, -s.lookback)

	fetched, err := s.provider.GetStockSplits(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch splits for %s: %w", ticker, err)
	}
	if len(fetched) == 0 {
		return nil, nil
	}

	recorded, err := s.ledger.Get(ctx, ticker)
	if err != nil {
		return nil, err
	}
	recordedDates := make(map[string]struct{}, len(recorded))
	for _, r := range recorded {
		recordedDates[r.Date.Format(calendar.DayFormat)] = struct{}{}
	}

	var applied []models.StockSplit
	for _, split := range fetched {
		if _, ok := recordedDates[split.Date.Format(calendar.DayFormat)]; ok {
			continue
		}
		if split.Ratio <= 0 {
			s.logger.Warn().Str("ticker", ticker).Float64("ratio", split.Ratio).
				Msg("Skipping split with non-positive ratio")
			continue
		}

		if err := s.apply(ctx, ticker, split); err != nil {
			return applied, err
		}

		record := split
		record.DetectedAt = time.Now()
		record.AppliedToDB = true
		// A ledger write failure must propagate: losing this entry would let
		// the next run re-divide already-adjusted candles.
		if err := s.ledger.Append(ctx, ticker, record); err != nil {
			return applied, err
		}

		applied = append(applied, record)
		s.logger.Info().Str("ticker", ticker).
			Str("date", split.Date.Format(calendar.DayFormat)).
			Float64("ratio", split.Ratio).
			Msg("Split applied")
	}

	return applied, nil
}

// apply rewrites every candle dated strictly before the split date.
func (s *Service) apply(ctx context.Context, ticker string, split models.StockSplit) error {
	candles, err := s.candles.GetCandlesByTickers(ctx, []string{ticker})
	if err != nil {
		return fmt.Errorf("load candles for %s: %w", ticker, err)
	}

	splitDay := calendar.Normalize(split.Date)
	adjusted := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if calendar.Normalize(c.Date).Before(splitDay) {
			adjusted = append(adjusted, split.Adjust(c))
		}
	}
	if len(adjusted) == 0 {
		return nil
	}

	if err := s.candles.InsertCandles(ctx, adjusted); err != nil {
		return fmt.Errorf("upsert adjusted candles for %s: %w", ticker, err)
	}
	return nil
}
