// Package app wires configuration, storage, clients, and services into the
// job-runner core shared by cmd/stocker.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paramtully/stocker/internal/clients/alphavantage"
	"github.com/paramtully/stocker/internal/clients/eodhd"
	"github.com/paramtully/stocker/internal/clients/gemini"
	"github.com/paramtully/stocker/internal/clients/yahoo"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/providers"
	"github.com/paramtully/stocker/internal/repository"
	"github.com/paramtully/stocker/internal/services/ingest"
	"github.com/paramtully/stocker/internal/services/loader"
	"github.com/paramtully/stocker/internal/services/splits"
	"github.com/paramtully/stocker/internal/services/summarize"
	"github.com/paramtully/stocker/internal/storage"
	"github.com/paramtully/stocker/internal/storage/postgres"
)

// App holds the initialized services and stores for one process.
type App struct {
	Config *common.Config
	Logger *common.Logger

	Blobs       storage.BlobStore
	Store       *postgres.Store
	Candles     *repository.CandleRepository
	Checkpoints *repository.CheckpointStore

	Ingest   *ingest.Service
	Splits   *splits.Service
	Loader   *loader.Loader
	Listings interfaces.ListingProvider
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes everything from config. configPath may be empty, in
// which case STOCKER_CONFIG and then the binary directory are consulted.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("STOCKER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "stocker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stocker.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.File.BasePath != "" && !filepath.IsAbs(config.Storage.File.BasePath) {
		config.Storage.File.BasePath = filepath.Join(binDir, config.Storage.File.BasePath)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	blobs, err := storage.NewBlobStore(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	store, err := postgres.NewStore(config.Database.DSN,
		postgres.WithBatchSize(config.Database.BatchSize),
		postgres.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transactional store: %w", err)
	}

	// Repositories over the blob store.
	candles := repository.NewCandleRepository(blobs, logger)
	articles := repository.NewArticleRepository(blobs, logger)
	summaries := repository.NewSummaryRepository(blobs, logger)
	listings := repository.NewListingStore(blobs, logger)
	manifests := repository.NewManifestWriter(blobs, logger)
	checkpoints := repository.NewCheckpointStore(blobs, logger)
	ledger := repository.NewSplitLedger(blobs, logger)

	// Provider clients. EODHD first in every chain it appears in.
	eodhdClient := eodhd.NewClient(config.Providers.EODHD.APIKey,
		eodhd.WithBaseURL(config.Providers.EODHD.BaseURL),
		eodhd.WithRateLimit(config.Providers.EODHD.RateLimit),
		eodhd.WithTimeout(config.Providers.EODHD.GetTimeout()),
		eodhd.WithLogger(logger))

	avClient := alphavantage.NewClient(config.Providers.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(config.Providers.AlphaVantage.BaseURL),
		alphavantage.WithRateLimit(config.Providers.AlphaVantage.RateLimit),
		alphavantage.WithTimeout(config.Providers.AlphaVantage.GetTimeout()),
		alphavantage.WithLogger(logger))

	yahooClient := yahoo.NewClient(
		yahoo.WithBaseURL(config.Providers.Yahoo.BaseURL),
		yahoo.WithRateLimit(config.Providers.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Providers.Yahoo.GetTimeout()),
		yahoo.WithLogger(logger))

	candleFB := providers.NewFallback[interfaces.CandleProvider](logger, eodhdClient, avClient)
	newsFB := providers.NewFallback[interfaces.NewsProvider](logger, eodhdClient, yahooClient)

	// One Gemini client per configured model forms the LLM rotation chain.
	var llms []interfaces.LLMProvider
	for _, model := range config.Providers.Gemini.Models {
		client, err := gemini.NewClient(ctx, config.Providers.Gemini.APIKey,
			gemini.WithModel(model), gemini.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for %s: %w", model, err)
		}
		llms = append(llms, client)
	}
	llmRouter := providers.NewLLMRouter(logger, llms,
		providers.WithMaxRotations(config.Jobs.MaxRotations))

	summarizer := summarize.NewService(llmRouter, logger,
		summarize.WithTokenCeiling(config.Jobs.InputTokenCeiling),
		summarize.WithTemperature(config.Providers.Gemini.Temperature))

	ingestSvc := ingest.NewService(config.Tickers, config.Exchange, ingest.Deps{
		CandleFallback: candleFB,
		NewsFallback:   newsFB,
		Candles:        candles,
		Articles:       articles,
		Summaries:      summaries,
		Listings:       listings,
		Manifests:      manifests,
		Summarizer:     summarizer,
		SummaryStore:   store,
	}, logger, ingest.WithInterCallDelay(config.Jobs.GetInterCallDelay()))

	splitSvc := splits.NewService(eodhdClient, store, ledger, logger,
		splits.WithLookbackDays(config.Jobs.SplitLookbackDays))

	// The loader moves year-partitioned candles into the transactional store.
	loadYear := func(ctx context.Context, unit string) (int, error) {
		var year int
		if _, err := fmt.Sscanf(unit, "%d", &year); err != nil {
			return 0, fmt.Errorf("invalid year unit %q: %w", unit, err)
		}
		records, err := candles.GetYear(ctx, year)
		if err != nil {
			return 0, err
		}
		if err := store.InsertCandles(ctx, records); err != nil {
			return 0, err
		}
		return len(records), nil
	}

	candleLoader := loader.New("candle-load", checkpoints, logger,
		loader.WithProcessor(loadYear),
		loader.WithTimeBudget(config.Jobs.GetTimeBudget()),
		loader.WithSafetyMargin(config.Jobs.GetSafetyMargin()))

	logger.Info().Str("environment", config.Environment).
		Str("backend", config.Storage.Backend).
		Int("tickers", len(config.Tickers)).
		Msg("Application initialized")

	return &App{
		Config:      config,
		Logger:      logger,
		Blobs:       blobs,
		Store:       store,
		Candles:     candles,
		Checkpoints: checkpoints,
		Ingest:      ingestSvc,
		Splits:      splitSvc,
		Loader:      candleLoader,
		Listings:    eodhdClient,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close transactional store")
	}
	if err := a.Blobs.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close blob store")
	}
}
