// Package common provides shared configuration and logging for stocker.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the stocker ingestion pipeline
type Config struct {
	Environment string          `toml:"environment"`
	Tickers     []string        `toml:"tickers"`  // tracked tickers, e.g. ["AAPL", "MSFT"]
	Exchange    string          `toml:"exchange"` // exchange code for listing detection
	Storage     StorageConfig   `toml:"storage"`
	Database    DatabaseConfig  `toml:"database"`
	Providers   ProvidersConfig `toml:"providers"`
	Jobs        JobsConfig      `toml:"jobs"`
	Logging     LoggingConfig   `toml:"logging"`
}

// StorageConfig selects and configures the blob store backend.
type StorageConfig struct {
	// Backend type: "file" or "s3"
	Backend string        `toml:"backend"`
	File    FileConfig    `toml:"file"`
	S3      S3Config      `toml:"s3"`
}

// FileConfig holds file-based blob store configuration.
type FileConfig struct {
	BasePath string `toml:"base_path"`
}

// S3Config holds AWS S3 blob store configuration.
type S3Config struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`   // Optional key prefix within bucket
	Region   string `toml:"region"`   // AWS region (e.g., "us-east-1")
	Endpoint string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (MinIO, R2)
}

// DatabaseConfig holds the transactional store connection settings.
type DatabaseConfig struct {
	DSN       string `toml:"dsn"`
	BatchSize int    `toml:"batch_size"` // rows per insert sub-batch
}

// ProvidersConfig holds API client configurations
type ProvidersConfig struct {
	EODHD        EODHDConfig        `toml:"eodhd"`
	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	Yahoo        YahooConfig        `toml:"yahoo"`
	Gemini       GeminiConfig       `toml:"gemini"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AlphaVantageConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// YahooConfig holds Yahoo Finance news configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration. Models lists the rotation
// chain for generation requests, most preferred first.
type GeminiConfig struct {
	APIKey      string   `toml:"api_key"`
	Models      []string `toml:"models"`
	Temperature float64  `toml:"temperature"`
}

// JobsConfig holds tunables for the ingestion jobs.
type JobsConfig struct {
	TimeBudget        string  `toml:"time_budget"`         // per-invocation execution budget
	SafetyMargin      string  `toml:"safety_margin"`       // checkpoint when remaining < 2x this
	InterCallDelay    string  `toml:"inter_call_delay"`    // delay between same-provider calls
	InputTokenCeiling int     `toml:"input_token_ceiling"` // LLM batch input budget
	MaxRotations      int     `toml:"max_rotations"`       // LLM full-rotation retries, 0 = unbounded
	SplitLookbackDays int     `toml:"split_lookback_days"`
}

// GetTimeBudget parses and returns the invocation time budget.
func (c *JobsConfig) GetTimeBudget() time.Duration {
	d, err := time.ParseDuration(c.TimeBudget)
	if err != nil {
		return 14 * time.Minute
	}
	return d
}

// GetSafetyMargin parses and returns the checkpoint safety margin.
func (c *JobsConfig) GetSafetyMargin() time.Duration {
	d, err := time.ParseDuration(c.SafetyMargin)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetInterCallDelay parses and returns the per-provider pacing delay.
func (c *JobsConfig) GetInterCallDelay() time.Duration {
	d, err := time.ParseDuration(c.InterCallDelay)
	if err != nil {
		return 1800 * time.Millisecond
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Exchange:    "US",
		Storage: StorageConfig{
			Backend: "file",
			File:    FileConfig{BasePath: "data/market"},
			S3:      S3Config{Region: "us-east-1"},
		},
		Database: DatabaseConfig{
			DSN:       "host=localhost user=stocker dbname=stocker sslmode=disable",
			BatchSize: 10000,
		},
		Providers: ProvidersConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			AlphaVantage: AlphaVantageConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Yahoo: YahooConfig{
				BaseURL:   "https://feeds.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Models:      []string{"gemini-2.0-flash", "gemini-2.0-flash-lite"},
				Temperature: 0.2,
			},
		},
		Jobs: JobsConfig{
			TimeBudget:        "14m",
			SafetyMargin:      "30s",
			InterCallDelay:    "1800ms",
			InputTokenCeiling: 30000,
			MaxRotations:      0,
			SplitLookbackDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/stocker.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKER_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("STOCKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("STOCKER_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if path := os.Getenv("STOCKER_DATA_PATH"); path != "" {
		config.Storage.File.BasePath = path
	}

	if bucket := os.Getenv("STOCKER_S3_BUCKET"); bucket != "" {
		config.Storage.S3.Bucket = bucket
	}

	if dsn := os.Getenv("STOCKER_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		config.Providers.EODHD.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		config.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Providers.Gemini.APIKey = v
	}

	if v := os.Getenv("STOCKER_TIME_BUDGET"); v != "" {
		config.Jobs.TimeBudget = v
	}

	if v := os.Getenv("STOCKER_MAX_ROTATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.MaxRotations = n
		}
	}

	if v := os.Getenv("STOCKER_TICKERS"); v != "" {
		parts := strings.Split(v, ",")
		tickers := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				tickers = append(tickers, strings.ToUpper(t))
			}
		}
		if len(tickers) > 0 {
			config.Tickers = tickers
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
