package models

import (
	"time"
)

// NewsArticle is a raw article as fetched from a news provider.
// Natural key: URL. Immutable once stored.
type NewsArticle struct {
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishDate time.Time `json:"publish_date"`
	Summary     string    `json:"summary"` // provider-supplied raw summary text
}

// Key returns the natural key of the article.
func (a NewsArticle) Key() string {
	return a.URL
}

// RecordDate returns the date used for year partitioning.
func (a NewsArticle) RecordDate() time.Time {
	return a.PublishDate
}

// Sentiment classifications produced by the summarization service.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// NewsSummary is an AI-generated analyst summary of one article.
// Natural key: ArticleURL. Written once; existing summaries act as the dedup
// filter for future summarization runs.
type NewsSummary struct {
	Ticker             string    `json:"ticker"`
	Source             string    `json:"source"`
	Headline           string    `json:"headline"`
	ArticleURL         string    `json:"article_url"`
	PublishDate        time.Time `json:"publish_date"`
	Summary            string    `json:"summary"`
	ImpactAnalysis     []string  `json:"impact_analysis"`     // 3 bullets
	RecommendedActions []string  `json:"recommended_actions"` // 3 bullets
	Sentiment          string    `json:"sentiment"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Key returns the natural key of the summary.
func (s NewsSummary) Key() string {
	return s.ArticleURL
}

// RecordDate returns the date used for year partitioning.
func (s NewsSummary) RecordDate() time.Time {
	return s.PublishDate
}
