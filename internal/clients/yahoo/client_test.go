package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Yahoo! Finance: AAPL News</title>
    <item>
      <title>Apple announces results</title>
      <link>https://example.com/results</link>
      <description>Quarterly earnings beat estimates.</description>
      <pubDate>Fri, 15 Mar 2024 14:30:00 +0000</pubDate>
    </item>
    <item>
      <title>Older story</title>
      <link>https://example.com/old</link>
      <description>From last week.</description>
      <pubDate>Fri, 08 Mar 2024 09:00:00 +0000</pubDate>
    </item>
    <item>
      <title>No link</title>
      <description>Broken item.</description>
      <pubDate>Fri, 15 Mar 2024 15:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL))
}

func TestGetLatestNewsArticles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rss/2.0/headline", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("s"))
		w.Write([]byte(sampleFeed))
	})

	since, _ := time.Parse("2006-01-02", "2024-03-10")
	articles, err := client.GetLatestNewsArticles(context.Background(), "AAPL", since)
	require.NoError(t, err)
	require.Len(t, articles, 1, "older and link-less items are dropped")
	assert.Equal(t, "Apple announces results", articles[0].Title)
	assert.Equal(t, "https://example.com/results", articles[0].URL)
	assert.Equal(t, "Yahoo Finance", articles[0].Source)
}

func TestGetHistoricalNewsArticles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	})

	articles, err := client.GetHistoricalNewsArticles(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestParsePubDate(t *testing.T) {
	for _, in := range []string{
		"Fri, 15 Mar 2024 14:30:00 +0000",
		"Fri, 15 Mar 2024 14:30:00 GMT",
	} {
		got, err := parsePubDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, 2024, got.Year())
	}

	_, err := parsePubDate("yesterday")
	assert.Error(t, err)
}
