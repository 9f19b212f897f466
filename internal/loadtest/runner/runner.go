// Package runner executes test plans batch by batch: validate, schedule,
// aggregate and judge.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadgate/internal/loadtest"
	"github.com/wesleyorama2/loadgate/internal/loadtest/metrics"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

// BatchResult is the outcome of one batch.
type BatchResult struct {
	Name    string                  `json:"name" yaml:"name"`
	Spec    loadtest.BatchSpec      `json:"spec" yaml:"spec"`
	Stats   *metrics.AggregateStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Verdict *verdict.Verdict        `json:"verdict,omitempty" yaml:"verdict,omitempty"`

	// Err is set when the batch could not run. Stats and Verdict are nil then.
	Err error `json:"-" yaml:"-"`

	// Error mirrors Err for structured output
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Passed reports whether the batch ran and passed its success-rate gate.
func (b *BatchResult) Passed() bool {
	return b.Err == nil && b.Verdict != nil && b.Verdict.Passed
}

// RunResult is the outcome of a whole plan.
type RunResult struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	StartTime time.Time      `json:"startTime" yaml:"startTime"`
	EndTime   time.Time      `json:"endTime" yaml:"endTime"`
	Batches   []*BatchResult `json:"batches" yaml:"batches"`
	Passed    bool           `json:"passed" yaml:"passed"`
}

// Duration returns the wall-clock time of the whole run.
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ExitCode maps the run to a process exit status: 0 when every batch ran and
// passed, 1 otherwise. Advisories never affect it.
func (r *RunResult) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}

// Runner runs batches sequentially against one executor.
type Runner struct {
	name       string
	scheduler  *loadtest.Scheduler
	thresholds verdict.Thresholds
	logger     *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithName sets the plan name reported in results.
func WithName(name string) Option {
	return func(r *Runner) {
		r.name = name
	}
}

// WithThresholds overrides the default thresholds.
func WithThresholds(t verdict.Thresholds) Option {
	return func(r *Runner) {
		r.thresholds = t
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a runner that dispatches batches through scheduler.
func New(scheduler *loadtest.Scheduler, opts ...Option) *Runner {
	r := &Runner{
		name:       "loadgate",
		scheduler:  scheduler,
		thresholds: verdict.DefaultThresholds(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every batch in order. A batch that fails validation is
// recorded with its error and the remaining batches still run.
//
// Cancelling ctx stops batches that have not started yet; a batch that is
// already dispatched runs to completion.
func (r *Runner) Run(ctx context.Context, batches []loadtest.BatchSpec) *RunResult {
	result := &RunResult{
		ID:        uuid.NewString(),
		Name:      r.name,
		StartTime: time.Now(),
		Batches:   make([]*BatchResult, 0, len(batches)),
		Passed:    true,
	}

	logger := r.logger.With(zap.String("run", result.ID))
	logger.Info("run started", zap.String("name", r.name), zap.Int("batches", len(batches)))

	for i := range batches {
		spec := batches[i]

		var br *BatchResult
		if err := ctx.Err(); err != nil {
			br = &BatchResult{Name: spec.DisplayName(), Spec: spec, Err: fmt.Errorf("batch not started: %w", err)}
		} else {
			br = r.runBatch(ctx, spec, logger)
		}
		if br.Err != nil {
			br.Error = br.Err.Error()
		}

		result.Batches = append(result.Batches, br)
		if !br.Passed() {
			result.Passed = false
		}
	}

	result.EndTime = time.Now()
	logger.Info("run finished", zap.Bool("passed", result.Passed), zap.Duration("duration", result.Duration()))
	return result
}

func (r *Runner) runBatch(ctx context.Context, spec loadtest.BatchSpec, logger *zap.Logger) *BatchResult {
	br := &BatchResult{Name: spec.DisplayName(), Spec: spec}
	logger = logger.With(zap.String("batch", br.Name))

	if err := spec.Validate(); err != nil {
		logger.Warn("invalid batch", zap.Error(err))
		br.Err = err
		return br
	}

	run, err := r.scheduler.Run(ctx, spec)
	if err != nil {
		logger.Warn("batch rejected", zap.Error(err))
		br.Err = err
		return br
	}

	stats, err := metrics.Aggregate(run)
	if err != nil {
		br.Err = fmt.Errorf("failed to aggregate results: %w", err)
		return br
	}

	v := verdict.Evaluate(stats, r.thresholds)
	br.Stats = stats
	br.Verdict = &v

	logger.Info("batch finished",
		zap.Int("requests", stats.TotalRequests),
		zap.Float64("successRate", stats.SuccessRate),
		zap.Duration("avgLatency", stats.AvgLatency),
		zap.Bool("passed", v.Passed))
	for _, reason := range v.Reasons {
		if reason.Severity == verdict.SeverityAdvisory {
			logger.Warn("advisory", zap.String("check", reason.Check), zap.String("message", reason.Message))
		}
	}

	return br
}
