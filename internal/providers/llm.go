package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
	"github.com/paramtully/stocker/internal/models"
)

// DefaultRotationBackoff is the pause after a full rotation of providers has
// failed, before the rotation restarts.
const DefaultRotationBackoff = 5 * time.Second

// LLMRouter routes generation requests across an ordered provider chain with
// whole-call fallback: the unit of work is the single generation request.
//
// On failure the router always advances to the next provider; rate-limit
// classification is for logging only. After a full unsuccessful rotation it
// backs off and starts over. MaxRotations bounds the loop; zero keeps the
// historical behavior of retrying until a provider succeeds, leaving
// cancellation to the caller's context.
type LLMRouter struct {
	providers    []interfaces.LLMProvider
	current      int
	backoff      time.Duration
	maxRotations int
	logger       *common.Logger
	errorLog     []models.ProviderError
}

// LLMRouterOption configures the router.
type LLMRouterOption func(*LLMRouter)

// WithRotationBackoff sets the pause between full rotations.
func WithRotationBackoff(d time.Duration) LLMRouterOption {
	return func(r *LLMRouter) {
		r.backoff = d
	}
}

// WithMaxRotations bounds the number of full rotations (0 = unbounded).
func WithMaxRotations(n int) LLMRouterOption {
	return func(r *LLMRouter) {
		r.maxRotations = n
	}
}

// NewLLMRouter creates a router over the given ordered providers.
func NewLLMRouter(logger *common.Logger, llms []interfaces.LLMProvider, opts ...LLMRouterOption) *LLMRouter {
	r := &LLMRouter{
		providers: llms,
		backoff:   DefaultRotationBackoff,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorLog returns the accumulated provider errors since the last clear.
func (r *LLMRouter) ErrorLog() []models.ProviderError {
	return r.errorLog
}

// ClearErrorLog resets the error log between logical runs.
func (r *LLMRouter) ClearErrorLog() {
	r.errorLog = nil
}

// isRateLimited classifies an error message as a rate-limit response.
// Classification only affects the log line; rotation happens regardless.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "429")
}

// GenerateJSON runs one generation request against the rotation chain.
func (r *LLMRouter) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	if len(r.providers) == 0 {
		return "", fmt.Errorf("no LLM providers configured")
	}

	rotations := 0
	for {
		for i := 0; i < len(r.providers); i++ {
			provider := r.providers[r.current]
			r.current = (r.current + 1) % len(r.providers)

			response, err := provider.GenerateJSON(ctx, systemPrompt, userPrompt, temperature)
			if err == nil {
				return response, nil
			}

			r.errorLog = append(r.errorLog, models.ProviderError{
				Provider:  provider.Name(),
				Unit:      "generate",
				Error:     err.Error(),
				Timestamp: time.Now(),
			})
			r.logger.Warn().Str("provider", provider.Name()).
				Bool("rate_limited", isRateLimited(err)).Err(err).
				Msg("LLM provider failed, rotating")

			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}

		rotations++
		if r.maxRotations > 0 && rotations >= r.maxRotations {
			return "", fmt.Errorf("all LLM providers failed after %d rotations", rotations)
		}

		r.logger.Info().Int("rotation", rotations).Dur("backoff", r.backoff).
			Msg("Full LLM rotation failed, backing off")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}

// Ensure LLMRouter satisfies the provider contract so services can treat the
// whole chain as one provider.
var _ interfaces.LLMProvider = (*LLMRouter)(nil)

// Name identifies the router in logs.
func (r *LLMRouter) Name() string {
	return "llm-router"
}
