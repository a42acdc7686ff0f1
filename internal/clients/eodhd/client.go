// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/paramtully/stocker/internal/calendar"
	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the candle, split, news, and listing provider contracts
// against the EODHD API.
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

// NewClient creates a new EODHD client
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
	return "eodhd"
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

func (c *Client) fetchCandles(ctx context.Context, ticker string, params url.Values) ([]models.Candle, error) {
	path := fmt.Sprintf("/eod/%s", ticker)

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(calendar.DayFormat, bar.Date)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", bar.Date).Msg("Skipping bar with malformed date")
			continue
		}
		candles = append(candles, models.Candle{
			Ticker: ticker,
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	return candles, nil
}

// GetHistoricalCandles fetches the full available daily history, ascending.
func (c *Client) GetHistoricalCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	return c.fetchCandles(ctx, ticker, params)
}

// GetDailyCandles fetches the most recent daily candle.
func (c *Client) GetDailyCandles(ctx context.Context, ticker string) ([]models.Candle, error) {
	now := time.Now()
	return c.GetRangeCandles(ctx, ticker, calendar.Normalize(now), calendar.Normalize(now))
}

// GetRangeCandles fetches daily candles in [start, end] inclusive.
func (c *Client) GetRangeCandles(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", start.Format(calendar.DayFormat))
	params.Set("to", end.Format(calendar.DayFormat))
	return c.fetchCandles(ctx, ticker, params)
}

// splitResponse represents the API response for split data. The split field
// is a ratio string like "4.000000/1.000000".
type splitResponse struct {
	Date  string `json:"date"`
	Split string `json:"split"`
}

// parseSplitRatio converts "4.000000/1.000000" into 4.0.
func parseSplitRatio(s string) (float64, error) {
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed split ratio %q: %w", s, err)
	}
	den := 1.0
	if len(parts) == 2 {
		den, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || den == 0 {
			return 0, fmt.Errorf("malformed split ratio %q", s)
		}
	}
	return num / den, nil
}

// GetStockSplits fetches corporate actions for the ticker in [start, end].
func (c *Client) GetStockSplits(ctx context.Context, ticker string, start, end time.Time) ([]models.StockSplit, error) {
	path := fmt.Sprintf("/splits/%s", ticker)

	params := url.Values{}
	params.Set("from", start.Format(calendar.DayFormat))
	params.Set("to", end.Format(calendar.DayFormat))

	var resp []splitResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	splits := make([]models.StockSplit, 0, len(resp))
	for _, item := range resp {
		date, err := time.Parse(calendar.DayFormat, item.Date)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", item.Date).Msg("Skipping split with malformed date")
			continue
		}
		ratio, err := parseSplitRatio(item.Split)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Err(err).Msg("Skipping malformed split")
			continue
		}
		splits = append(splits, models.StockSplit{
			Ticker: ticker,
			Date:   date,
			Ratio:  ratio,
		})
	}

	return splits, nil
}

type newsResponse struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
	Source  string `json:"source"`
}

func (c *Client) fetchNews(ctx context.Context, ticker string, params url.Values) ([]models.NewsArticle, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("s", ticker)

	var resp []newsResponse
	if err := c.get(ctx, "/news", params, &resp); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(resp))
	for _, item := range resp {
		publishedAt, err := time.Parse("2006-01-02T15:04:05-07:00", item.Date)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("date", item.Date).Msg("Skipping article with malformed date")
			continue
		}
		if item.Link == "" {
			continue // URL is the natural key; articles without one are unusable
		}
		articles = append(articles, models.NewsArticle{
			Ticker:      ticker,
			Title:       item.Title,
			URL:         item.Link,
			Source:      item.Source,
			PublishDate: publishedAt,
			Summary:     item.Content,
		})
	}

	return articles, nil
}

// GetLatestNewsArticles fetches articles published since the given time.
func (c *Client) GetLatestNewsArticles(ctx context.Context, ticker string, since time.Time) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("from", since.Format(calendar.DayFormat))
	params.Set("limit", "50")
	return c.fetchNews(ctx, ticker, params)
}

// GetHistoricalNewsArticles fetches the full available article history.
func (c *Client) GetHistoricalNewsArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("limit", "1000")
	return c.fetchNews(ctx, ticker, params)
}

type symbolResponse struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Exchange string `json:"Exchange"`
	Type     string `json:"Type"`
}

// GetExchangeListings retrieves all symbols for an exchange.
func (c *Client) GetExchangeListings(ctx context.Context, exchange string) ([]models.Listing, error) {
	path := fmt.Sprintf("/exchange-symbol-list/%s", exchange)

	var symbols []symbolResponse
	if err := c.get(ctx, path, nil, &symbols); err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(symbols))
	for _, s := range symbols {
		if s.Code == "" {
			continue
		}
		listings = append(listings, models.Listing{
			Ticker:   s.Code,
			Name:     s.Name,
			Exchange: exchange,
			Type:     s.Type,
		})
	}

	return listings, nil
}

// Capability assertions
var (
	_ interfaces.CandleProvider       = (*Client)(nil)
	_ interfaces.SplitCapableProvider = (*Client)(nil)
	_ interfaces.NewsProvider         = (*Client)(nil)
	_ interfaces.ListingProvider      = (*Client)(nil)
)
