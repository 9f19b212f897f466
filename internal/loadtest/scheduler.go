package loadtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer is notified around every invocation a Scheduler dispatches.
//
// Calls arrive concurrently from worker goroutines; implementations must be
// safe for concurrent use.
type Observer interface {
	RequestStarted(batch string)
	RequestFinished(batch string, result RequestResult)
}

// Scheduler owns the worker pool that drives a batch through an Executor.
//
// It holds no state between batches; one Scheduler can run any number of
// batches sequentially or concurrently.
type Scheduler struct {
	executor  Executor
	observers []Observer
	logger    *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithObserver registers an observer for every dispatched invocation.
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler that runs invocations through executor.
func NewScheduler(executor Executor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		executor: executor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes exactly batch.TotalRequests invocations with at most
// batch.Concurrency of them in flight, and returns once every invocation has
// produced a result.
//
// A dispatched batch always runs to completion: cancelling ctx does not
// abort it, and individual calls are bounded only by their own timeout.
// Values carried by ctx are still visible to the executor.
//
// Errors are returned only for invalid batch sizing, before any dispatch.
func (s *Scheduler) Run(ctx context.Context, batch BatchSpec) (*BatchRun, error) {
	if batch.Concurrency <= 0 {
		return nil, &ValidationError{Field: "concurrency", Message: fmt.Sprintf("concurrency must be greater than 0, got %d", batch.Concurrency)}
	}
	if batch.TotalRequests < 0 {
		return nil, &ValidationError{Field: "totalRequests", Message: fmt.Sprintf("totalRequests cannot be negative, got %d", batch.TotalRequests)}
	}

	if batch.TotalRequests == 0 {
		return &BatchRun{Results: []RequestResult{}}, nil
	}

	name := batch.DisplayName()
	spec := batch.Request
	results := make([]RequestResult, batch.TotalRequests)
	runCtx := context.WithoutCancel(ctx)

	s.logger.Debug("dispatching batch",
		zap.String("batch", name),
		zap.Int("requests", batch.TotalRequests),
		zap.Int("concurrency", batch.Concurrency))

	var g errgroup.Group
	g.SetLimit(batch.Concurrency)

	start := time.Now()
	for i := 0; i < batch.TotalRequests; i++ {
		// Go blocks while Concurrency invocations are in flight.
		g.Go(func() error {
			for _, o := range s.observers {
				o.RequestStarted(name)
			}
			result := s.executor.Execute(runCtx, &spec)
			results[i] = result
			for _, o := range s.observers {
				o.RequestFinished(name, result)
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	s.logger.Debug("batch complete",
		zap.String("batch", name),
		zap.Duration("elapsed", elapsed))

	return &BatchRun{
		Results: results,
		Elapsed: elapsed,
	}, nil
}
