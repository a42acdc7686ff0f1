package providers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/interfaces"
)

type stubProvider struct {
	name    string
	results map[string][]int
	errs    map[string]error
	calls   []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) fetch(unit string) ([]int, error) {
	s.calls = append(s.calls, unit)
	if err, ok := s.errs[unit]; ok {
		return nil, err
	}
	return s.results[unit], nil
}

func TestFetchUnit_FallsBackOnError(t *testing.T) {
	primary := &stubProvider{
		name: "primary",
		errs: map[string]error{"X": fmt.Errorf("connection refused")},
	}
	secondary := &stubProvider{
		name:    "secondary",
		results: map[string][]int{"X": {1, 2, 3}},
	}

	fb := NewFallback[*stubProvider](common.NewSilentLogger(), primary, secondary)

	records, err := FetchUnit(fb, "X", func(p *stubProvider, unit string) ([]int, error) {
		return p.fetch(unit)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, records)

	// Exactly one error entry, referencing the failed primary provider.
	log := fb.ErrorLog()
	require.Len(t, log, 1)
	assert.Equal(t, "primary", log[0].Provider)
	assert.Equal(t, "X", log[0].Unit)
	assert.Contains(t, log[0].Error, "connection refused")
}

func TestFetchUnit_EmptyResultCountsAsFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", results: map[string][]int{}}
	secondary := &stubProvider{name: "secondary", results: map[string][]int{"X": {7}}}

	fb := NewFallback[*stubProvider](common.NewSilentLogger(), primary, secondary)

	records, err := FetchUnit(fb, "X", func(p *stubProvider, unit string) ([]int, error) {
		return p.fetch(unit)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, records)
	require.Len(t, fb.ErrorLog(), 1)
	assert.Contains(t, fb.ErrorLog()[0].Error, "empty result")
}

func TestFetchUnit_AllProvidersFail(t *testing.T) {
	p1 := &stubProvider{name: "p1", errs: map[string]error{"X": fmt.Errorf("down")}}
	p2 := &stubProvider{name: "p2", errs: map[string]error{"X": fmt.Errorf("also down")}}

	fb := NewFallback[*stubProvider](common.NewSilentLogger(), p1, p2)

	_, err := FetchUnit(fb, "X", func(p *stubProvider, unit string) ([]int, error) {
		return p.fetch(unit)
	})
	assert.Error(t, err)
	assert.Len(t, fb.ErrorLog(), 2)
}

func TestFetchUnits_OneUnitFailureDoesNotAbortBatch(t *testing.T) {
	p1 := &stubProvider{
		name:    "p1",
		results: map[string][]int{"A": {1}, "C": {3}},
		errs:    map[string]error{"B": fmt.Errorf("boom")},
	}

	fb := NewFallback[*stubProvider](common.NewSilentLogger(), p1)

	results := FetchUnits(fb, []string{"A", "B", "C"}, 0, func(p *stubProvider, unit string) ([]int, error) {
		return p.fetch(unit)
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []int{3}, results[2].Records)
}

func TestClearErrorLog(t *testing.T) {
	p1 := &stubProvider{name: "p1", errs: map[string]error{"X": fmt.Errorf("down")}}
	fb := NewFallback[*stubProvider](common.NewSilentLogger(), p1)

	_, _ = FetchUnit(fb, "X", func(p *stubProvider, unit string) ([]int, error) {
		return p.fetch(unit)
	})
	require.NotEmpty(t, fb.ErrorLog())

	fb.ClearErrorLog()
	assert.Empty(t, fb.ErrorLog())
}

type stubLLM struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (s *stubLLM) Name() string { return s.name }

func (s *stubLLM) GenerateJSON(ctx context.Context, system, user string, temp float64) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", fmt.Errorf("exhausted")
}

func TestLLMRouter_RotatesOnFailure(t *testing.T) {
	bad := &stubLLM{name: "flash", errs: []error{fmt.Errorf("429 rate limit exceeded")}}
	good := &stubLLM{name: "flash-lite", responses: []string{`{"ok":true}`}}

	router := NewLLMRouter(common.NewSilentLogger(), []interfaces.LLMProvider{bad, good})

	out, err := router.GenerateJSON(context.Background(), "sys", "user", 0.2)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, router.ErrorLog(), 1)
	assert.Equal(t, "flash", router.ErrorLog()[0].Provider)
}

func TestLLMRouter_BacksOffBetweenRotations(t *testing.T) {
	// First full rotation fails, second succeeds on the first provider.
	p1 := &stubLLM{name: "p1", errs: []error{fmt.Errorf("quota")}, responses: []string{"", "done"}}
	p2 := &stubLLM{name: "p2", errs: []error{fmt.Errorf("down")}}

	router := NewLLMRouter(common.NewSilentLogger(), []interfaces.LLMProvider{p1, p2},
		WithRotationBackoff(time.Millisecond))

	start := time.Now()
	out, err := router.GenerateJSON(context.Background(), "sys", "user", 0)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
	assert.Len(t, router.ErrorLog(), 2)
}

func TestLLMRouter_MaxRotationsBound(t *testing.T) {
	p1 := &stubLLM{name: "p1", errs: []error{fmt.Errorf("down"), fmt.Errorf("down")}}

	router := NewLLMRouter(common.NewSilentLogger(), []interfaces.LLMProvider{p1},
		WithRotationBackoff(time.Millisecond), WithMaxRotations(2))

	_, err := router.GenerateJSON(context.Background(), "sys", "user", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 rotations")
	assert.Equal(t, 2, p1.calls)
}

func TestLLMRouter_ContextCancellation(t *testing.T) {
	p1 := &stubLLM{name: "p1", errs: []error{fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	router := NewLLMRouter(common.NewSilentLogger(), []interfaces.LLMProvider{p1},
		WithRotationBackoff(time.Hour))

	_, err := router.GenerateJSON(ctx, "sys", "user", 0)
	assert.ErrorIs(t, err, context.Canceled)
}
