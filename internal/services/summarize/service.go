// Package summarize turns raw news articles into analyst summaries via
// batched LLM calls.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

const (
	// DefaultInputTokenCeiling bounds one batch's estimated prompt size.
	DefaultInputTokenCeiling = 30000

	// charsPerToken is the rough token estimate used for batching.
	charsPerToken = 4

	// systemPromptOverhead reserves tokens for the system prompt and the
	// per-batch instruction scaffolding.
	systemPromptOverhead = 500

	// perArticleResponseReserve reserves output tokens per article so the
	// response fits alongside the input.
	perArticleResponseReserve = 300

	// DefaultTemperature keeps summaries factual.
	DefaultTemperature = 0.2
)

const systemPrompt = `You are a financial news analyst. For each article you receive you produce a concise summary, exactly three impact-analysis bullets, exactly three recommended-action bullets, and a sentiment classification (positive, negative, or neutral). You respond only with JSON.`

// FailedArticle records one article that did not yield a summary this run.
type FailedArticle struct {
	Article models.NewsArticle
	Reason  string
}

// Result is the outcome of one summarization run.
type Result struct {
	Summaries      []models.NewsSummary
	FailedArticles []FailedArticle
}

// Service batches articles under a token ceiling and summarizes each batch
// with one LLM call. Failure is always article-level: a malformed batch
// response fails that batch's articles and the run continues.
type Service struct {
	llm          interfaces.LLMProvider
	tokenCeiling int
	temperature  float64
	logger       *common.Logger
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithTokenCeiling sets the per-batch input token ceiling.
func WithTokenCeiling(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.tokenCeiling = n
		}
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) ServiceOption {
	return func(s *Service) {
		s.temperature = t
	}
}

// NewService creates the summarization service.
func NewService(llm interfaces.LLMProvider, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		llm:          llm,
		tokenCeiling: DefaultInputTokenCeiling,
		temperature:  DefaultTemperature,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// estimateTokens approximates the article's prompt cost.
func estimateTokens(a models.NewsArticle) int {
	chars := len(a.Ticker) + len(a.Title) + len(a.Summary)
	return chars/charsPerToken + perArticleResponseReserve
}

// batch splits articles greedily: a batch closes when adding the next
// article would exceed the ceiling. An article too large for an empty batch
// still gets its own batch rather than being dropped silently.
func (s *Service) batch(articles []models.NewsArticle) [][]models.NewsArticle {
	var batches [][]models.NewsArticle
	var current []models.NewsArticle
	budget := s.tokenCeiling - systemPromptOverhead

	running := 0
	for _, a := range articles {
		cost := estimateTokens(a)
		if len(current) > 0 && running+cost > budget {
			batches = append(batches, current)
			current = nil
			running = 0
		}
		current = append(current, a)
		running += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// summaryElement is one object of the LLM's JSON array response.
type summaryElement struct {
	URL                string   `json:"url"`
	Summary            string   `json:"summary"`
	ImpactAnalysis     []string `json:"impactAnalysis"`
	RecommendedActions []string `json:"recommendedActions"`
	Sentiment          string   `json:"sentiment"`
}

func buildUserPrompt(articles []models.NewsArticle) string {
	var sb strings.Builder
	sb.WriteString("Summarize each of the following articles. Respond with a JSON array containing exactly one object per article. Each object must have these fields: \"url\" (copied verbatim from the article), \"summary\" (string), \"impactAnalysis\" (array of exactly 3 strings), \"recommendedActions\" (array of exactly 3 strings), \"sentiment\" (one of \"positive\", \"negative\", \"neutral\").\n\n")

	for i, a := range articles {
		fmt.Fprintf(&sb, "Article %d:\n", i+1)
		fmt.Fprintf(&sb, "url: %s\n", a.URL)
		fmt.Fprintf(&sb, "ticker: %s\n", a.Ticker)
		fmt.Fprintf(&sb, "title: %s\n", a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&sb, "text: %s\n", a.Summary)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func validSentiment(s string) bool {
	switch s {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
		return true
	}
	return false
}

// Summarize runs the full pipeline over the given articles.
func (s *Service) Summarize(ctx context.Context, articles []models.NewsArticle) (*Result, error) {
	result := &Result{}
	if len(articles) == 0 {
		return result, nil
	}

	batches := s.batch(articles)
	s.logger.Info().Int("articles", len(articles)).Int("batches", len(batches)).
		Msg("Summarizing articles")

	for _, batch := range batches {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.summarizeBatch(ctx, batch, result)
	}

	return result, nil
}

// summarizeBatch issues one LLM call and matches response elements back to
// their source articles by URL.
func (s *Service) summarizeBatch(ctx context.Context, batch []models.NewsArticle, result *Result) {
	response, err := s.llm.GenerateJSON(ctx, systemPrompt, buildUserPrompt(batch), s.temperature)
	if err != nil {
		s.failBatch(batch, fmt.Sprintf("generation failed: %v", err), result)
		return
	}

	var elements []summaryElement
	if err := json.Unmarshal([]byte(stripFences(response)), &elements); err != nil {
		s.failBatch(batch, fmt.Sprintf("malformed JSON response: %v", err), result)
		return
	}

	byURL := make(map[string]models.NewsArticle, len(batch))
	for _, a := range batch {
		byURL[a.URL] = a
	}

	matched := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		article, ok := byURL[el.URL]
		if !ok {
			s.logger.Warn().Str("url", el.URL).Msg("Response element matches no article in batch")
			continue
		}
		if reason := validateElement(el); reason != "" {
			result.FailedArticles = append(result.FailedArticles, FailedArticle{Article: article, Reason: reason})
			matched[el.URL] = struct{}{}
			continue
		}

		matched[el.URL] = struct{}{}
		result.Summaries = append(result.Summaries, models.NewsSummary{
			Ticker:             article.Ticker,
			Source:             article.Source,
			Headline:           article.Title,
			ArticleURL:         article.URL,
			PublishDate:        article.PublishDate,
			Summary:            el.Summary,
			ImpactAnalysis:     el.ImpactAnalysis,
			RecommendedActions: el.RecommendedActions,
			Sentiment:          el.Sentiment,
			GeneratedAt:        time.Now(),
		})
	}

	// Articles the model dropped from its output fail this run and are
	// naturally retried later: the dedup filter upstream only skips URLs
	// that already have a persisted summary.
	for _, a := range batch {
		if _, ok := matched[a.URL]; !ok {
			result.FailedArticles = append(result.FailedArticles, FailedArticle{
				Article: a,
				Reason:  "absent from response",
			})
		}
	}
}

func validateElement(el summaryElement) string {
	if el.Summary == "" {
		return "missing summary"
	}
	if len(el.ImpactAnalysis) != 3 {
		return fmt.Sprintf("expected 3 impact bullets, got %d", len(el.ImpactAnalysis))
	}
	if len(el.RecommendedActions) != 3 {
		return fmt.Sprintf("expected 3 action bullets, got %d", len(el.RecommendedActions))
	}
	if !validSentiment(el.Sentiment) {
		return fmt.Sprintf("invalid sentiment %q", el.Sentiment)
	}
	return ""
}

func (s *Service) failBatch(batch []models.NewsArticle, reason string, result *Result) {
	s.logger.Warn().Int("articles", len(batch)).Str("reason", reason).Msg("Batch failed")
	for _, a := range batch {
		result.FailedArticles = append(result.FailedArticles, FailedArticle{Article: a, Reason: reason})
	}
}
