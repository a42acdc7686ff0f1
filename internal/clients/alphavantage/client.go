// Package alphavantage provides a client for the Alpha Vantage API,
// used as the secondary candle source in the fallback chain.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per minute on the free tier; per second here is generous
)

// Client implements the CandleProvider contract against Alpha Vantage's
// TIME_SERIES_DAILY endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider in error logs.
func (c *Client) Name() string {
	return "alphavantage"
}

// dailyBar is one entry in the "Time Series (Daily)" map. Alpha Vantage
// returns every numeric field as a string.
type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailyResponse struct {
	TimeSeries map[string]dailyBar `json:"Time Series (Daily)"`
	Note       string              `json:"Note"`
	ErrorMsg   string              `json:"Error Message"`
}

func (c *Client) fetchDaily(ctx context.Context, ticker, outputSize string) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ticker)
	params.Set("outputsize", outputSize)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alphavantage error (status %d): %s", resp.StatusCode, string(body))
	}

	var data dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Alpha Vantage reports throttling and bad symbols inside a 200 body.
	if data.Note != "" {
		return nil, fmt.Errorf("alphavantage rate limit: %s", data.Note)
	}
	if data.ErrorMsg != "" {
		return nil, fmt.Errorf("alphavantage error: %s", data.ErrorMsg)
	}

	candles := make([]models.Candle, 0, len(data.TimeSeries))
	for dateStr, bar := range data.TimeSeries {
		date, err := time.Parse(calendar.DayFormat, dateStr)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", dateStr).Msg("Skipping bar with malformed date")
			continue
		}

		candle, err := parseBar(ticker, date, bar)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", dateStr).Err(err).Msg("Skipping malformed bar")
			continue
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	return candles, nil
}

func parseBar(ticker string, date time.Time, bar dailyBar) (models.Candle, error) {
	open, err := strconv.ParseFloat(bar.Open, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(bar.High, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(bar.Low, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(bar.Close, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseInt(bar.Volume, 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("volume: %w", err)
	}

	return models.Candle{
		Ticker: ticker,
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

// GetHistoricalCandles fetches the full available daily history.
func (c *Client) GetHistoricalCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	return c.fetchDaily(ctx, ticker, "full")
}

// GetDailyCandles fetches the most recent daily candle.
func (c *Client) GetDailyCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	candles, err := c.fetchDaily(ctx, ticker, "compact")
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	return candles[len(candles)-1:], nil
}

// GetRangeCandles fetches daily candles in [start, end] inclusive. The API
// has no range parameters, so the compact window is filtered client-side
// (full history when the range reaches back past it).
func (c *Client) GetRangeCandles(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	outputSize := "compact" // last 100 bars
	if time.Since(start) > 100*24*time.Hour {
		outputSize = "full"
	}

	candles, err := c.fetchDaily(ctx, ticker, outputSize)
	if err != nil {
		return nil, err
	}

	start = calendar.Normalize(start)
	end = calendar.Normalize(end)

	filtered := make([]models.Candle, 0, len(candles))
	for _, candle := range candles {
		d := calendar.Normalize(candle.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered, nil
}

// Ensure Client implements CandleProvider
var _ interfaces.CandleProvider = (*Client)(nil)
