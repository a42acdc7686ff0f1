// Package providers implements the ordered provider-fallback services that
// shield ingestion jobs from unreliable upstream APIs.
package providers

import (
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
)

// FetchFunc runs one provider's fetch for one logical unit (usually a
// ticker) and returns its records.
type FetchFunc[P any, T any] func(provider P, unit string) ([]T, error)

// Named is implemented by every provider so failures can be attributed.
type Named interface {
	Name() string
}

// Fallback tries an ordered provider list per unit of work. The order is
// injected at construction (most reliable/cheapest first) so tests can
// supply mock orderings.
type Fallback[P Named] struct {
	providers []P
	logger    *common.Logger
	errorLog  []models.ProviderError
}

// NewFallback creates a fallback service over the given ordered providers.
func NewFallback[P Named](logger *common.Logger, providers ...P) *Fallback[P] {
	return &Fallback[P]{
		providers: providers,
		logger:    logger,
	}
}

// Providers returns the configured provider chain in order.
func (f *Fallback[P]) Providers() []P {
	return f.providers
}

// ErrorLog returns the accumulated provider errors since the last clear.
// Callers persist these into the run's error manifest.
func (f *Fallback[P]) ErrorLog() []models.ProviderError {
	return f.errorLog
}

// ClearErrorLog resets the error log between logical runs.
func (f *Fallback[P]) ClearErrorLog() {
	f.errorLog = nil
}

func (f *Fallback[P]) logFailure(provider P, unit string, err error) {
	f.errorLog = append(f.errorLog, models.ProviderError{
		Provider:  provider.Name(),
		Unit:      unit,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	f.logger.Warn().Str("provider", provider.Name()).Str("unit", unit).Err(err).
		Msg("Provider failed for unit, trying next")
}

// FetchUnit tries each provider in order for one unit until one returns a
// non-empty result. Empty results count as failures: providers signal "no
// data" inconsistently, and a silent empty answer from a flaky source must
// not mask data a later provider has.
func FetchUnit[P Named, T any](f *Fallback[P], unit string, fetch FetchFunc[P, T]) ([]T, error) {
	for _, provider := range f.providers {
		records, err := fetch(provider, unit)
		if err != nil {
			f.logFailure(provider, unit, err)
			continue
		}
		if len(records) == 0 {
			f.logFailure(provider, unit, fmt.Errorf("empty result"))
			continue
		}
		return records, nil
	}
	return nil, fmt.Errorf("all %d providers failed for unit %s", len(f.providers), unit)
}

// UnitResult holds one unit's outcome from a batch fetch.
type UnitResult[T any] struct {
	Unit    string
	Records []T
	Err     error
}

// FetchUnits runs the per-unit fallback over every unit, pausing delay
// between units to respect upstream rate limits. One unit exhausting all
// providers never aborts the batch; its failure is recorded and the loop
// proceeds.
func FetchUnits[P Named, T any](f *Fallback[P], units []string, delay time.Duration, fetch FetchFunc[P, T]) []UnitResult[T] {
	results := make([]UnitResult[T], 0, len(units))
	for i, unit := range units {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}

		records, err := FetchUnit(f, unit, fetch)
		results = append(results, UnitResult[T]{Unit: unit, Records: records, Err: err})
	}
	return results
}
