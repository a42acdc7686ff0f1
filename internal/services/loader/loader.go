// Package loader implements the checkpointed, time-budgeted batch loader
// that moves year-partitioned object-store data into the transactional store.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/paramtully/stocker/internal/common"
	"github.com/paramtully/stocker/internal/models"
	"github.com/paramtully/stocker/internal/repository"
)

const (
	// DefaultTimeBudget is the per-invocation execution budget.
	DefaultTimeBudget = 14 * time.Minute

	// DefaultSafetyMargin is the fixed buffer unit; an invocation yields when
	// remaining time drops below twice this margin.
	DefaultSafetyMargin = 30 * time.Second
)

// ProcessFunc loads one unit's records into the transactional store. It must
// be safe to repeat: a unit interrupted mid-insert is retried from scratch on
// the next invocation.
type ProcessFunc func(ctx context.Context, unit string) (recordCount int, err error)

// Loader walks an ordered unit list under a hard time budget, persisting a
// checkpoint after each unit so a later invocation can resume.
type Loader struct {
	jobName     string
	checkpoints *repository.CheckpointStore
	processFn   ProcessFunc
	budget      time.Duration
	margin      time.Duration
	logger      *common.Logger
	now         func() time.Time
}

// Option configures the loader.
type Option func(*Loader)

// WithTimeBudget sets the per-invocation execution budget.
func WithTimeBudget(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.budget = d
		}
	}
}

// WithSafetyMargin sets the yield buffer unit.
func WithSafetyMargin(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.margin = d
		}
	}
}

// withClock overrides the clock for tests.
func withClock(now func() time.Time) Option {
	return func(l *Loader) {
		l.now = now
	}
}

// New creates a loader for one job type.
func New(jobName string, checkpoints *repository.CheckpointStore, logger *common.Logger, opts ...Option) *Loader {
	l := &Loader{
		jobName:     jobName,
		checkpoints: checkpoints,
		budget:      DefaultTimeBudget,
		margin:      DefaultSafetyMargin,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// resumeIndex decides where in the unit list this invocation starts.
// Priority: explicit override, then persisted checkpoint, then the beginning.
// The checkpoint records the last COMPLETED unit, so resume starts after it.
func resumeIndex(units []string, override string, cp *models.Checkpoint) int {
	if override != "" {
		for i, u := range units {
			if u == override {
				return i
			}
		}
		return 0
	}
	if cp != nil {
		for i, u := range units {
			if u == cp.LastProcessedUnit {
				return i + 1
			}
		}
	}
	return 0
}

// Run executes one invocation over the unit list. A nil ContinuationRequest
// with a nil error means the job ran to completion and its checkpoint was
// cleared. A non-nil ContinuationRequest means the time budget ran out and
// the caller must re-invoke with ResumeUnit.
//
// A unit-processing error is fatal to the invocation: the checkpoint from the
// previous completed unit remains valid, so the next invocation retries the
// failed unit from scratch.
func (l *Loader) Run(ctx context.Context, units []string, resumeOverride string) (*models.ContinuationRequest, error) {
	invocationStart := l.now()

	cp, err := l.checkpoints.Get(ctx, l.jobName)
	if err != nil {
		return nil, err
	}

	start := resumeIndex(units, resumeOverride, cp)
	if start >= len(units) {
		// Checkpoint already past the end: finish up.
		if err := l.checkpoints.Clear(ctx, l.jobName); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if cp == nil {
		cp = &models.Checkpoint{
			JobName:    l.jobName,
			TotalUnits: len(units),
			StartedAt:  invocationStart,
		}
	}

	l.logger.Info().Str("job", l.jobName).Int("units", len(units)).Int("resume_index", start).
		Msg("Loader invocation starting")

	for i := start; i < len(units); i++ {
		unit := units[i]

		remaining := l.budget - l.now().Sub(invocationStart)
		if remaining < 2*l.margin {
			// Checkpoint persistence is fatal on failure: continuing with a
			// stale checkpoint would make the next resume skip or repeat the
			// wrong units.
			if err := l.checkpoints.Save(ctx, cp); err != nil {
				return nil, err
			}
			l.logger.Info().Str("job", l.jobName).Str("resume_unit", unit).
				Dur("remaining", remaining).Msg("Time budget exhausted, yielding")
			return &models.ContinuationRequest{JobName: l.jobName, ResumeUnit: unit}, nil
		}

		count, err := l.process(ctx, unit)
		if err != nil {
			return nil, fmt.Errorf("process unit %s: %w", unit, err)
		}

		cp.LastProcessedUnit = unit
		cp.ProcessedUnits++
		cp.LastUpdated = l.now()
		if err := l.checkpoints.Save(ctx, cp); err != nil {
			return nil, err
		}

		l.logger.Debug().Str("job", l.jobName).Str("unit", unit).Int("records", count).
			Msg("Unit loaded")
	}

	if err := l.checkpoints.Clear(ctx, l.jobName); err != nil {
		return nil, err
	}
	l.logger.Info().Str("job", l.jobName).Int("units", len(units)).Msg("Loader complete")
	return nil, nil
}

func (l *Loader) process(ctx context.Context, unit string) (int, error) {
	if l.processFn == nil {
		return 0, fmt.Errorf("loader has no processor bound")
	}
	return l.processFn(ctx, unit)
}

// WithProcessor binds the per-unit work function.
func WithProcessor(fn ProcessFunc) Option {
	return func(l *Loader) {
		l.processFn = fn
	}
}
