// Package yahoo provides a client for Yahoo Finance's RSS headline feed,
// used as the secondary news source in the fallback chain.
package yahoo

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

const (
	DefaultBaseURL   = "https://feeds.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
	defaultUserAgent = "Mozilla/5.0 (compatible; stocker/1.0)"
)

// Client implements the NewsProvider contract against the Yahoo Finance RSS
// headline feed. The feed only carries recent headlines, so historical
// fetches return the same window.
type Client struct {
	baseURL    string
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

// NewClient creates a new Yahoo Finance feed client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
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
	return "yahoo"
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

func (c *Client) fetchFeed(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("s", ticker)
	params.Set("region", "US")
	params.Set("lang", "en-US")

	reqURL := fmt.Sprintf("%s/rss/2.0/headline?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yahoo feed error (status %d): %s", resp.StatusCode, string(body))
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Link == "" {
			continue // URL is the natural key; articles without one are unusable
		}

		publishedAt, err := parsePubDate(item.PubDate)
		if err != nil {
			c.logger.Warn().Str("ticker", ticker).Str("pubDate", item.PubDate).Msg("Skipping article with malformed date")
			continue
		}

		source := item.Source
		if source == "" {
			source = "Yahoo Finance"
		}

		articles = append(articles, models.NewsArticle{
			Ticker:      ticker,
			Title:       item.Title,
			URL:         item.Link,
			Source:      source,
			PublishDate: publishedAt,
			Summary:     item.Description,
		})
	}

	return articles, nil
}

// parsePubDate handles the RFC1123 variants Yahoo emits.
func parsePubDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", s)
}

// GetLatestNewsArticles fetches articles published since the given time.
func (c *Client) GetLatestNewsArticles(ctx context.Context, ticker string, since time.Time) ([]models.NewsArticle, error) {
	articles, err := c.fetchFeed(ctx, ticker)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.PublishDate.Before(since) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered, nil
}

// GetHistoricalNewsArticles fetches everything the feed currently carries.
func (c *Client) GetHistoricalNewsArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	return c.fetchFeed(ctx, ticker)
}

// Ensure Client implements NewsProvider
var _ interfaces.NewsProvider = (*Client)(nil)
