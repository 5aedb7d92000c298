// Package batch runs a unit of work over a fixed list of job folders with
// bounded concurrency. Results are delivered in completion order, which is
// unrelated to submission order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"qcbatch/internal/apperrors"
)

// Job identifies one unit of work: the folder a candidate structure lives in.
type Job string

// WorkFunc executes one job. Returning ErrSkipped marks the job as skipped
// without it counting as a failure; any other non-nil error becomes that
// job's failure and never aborts the batch.
type WorkFunc func(ctx context.Context, job Job) error

// ErrSkipped is returned by a WorkFunc to report that a job was already
// complete and nothing was done (resume).
var ErrSkipped = errors.New("job already complete")

// Result is the outcome of one job. Exactly one Result is produced per job
// that ran; jobs abandoned during teardown produce none.
type Result struct {
	Job      Job
	Err      error // nil on success or skip, *JobError on failure
	Skipped  bool
	Duration time.Duration
}

// JobError ties a work function failure to the job it belongs to.
type JobError struct {
	Job   Job
	Cause error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Job, e.Cause)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// MetricsRecorder is an optional interface for recording batch metrics.
type MetricsRecorder interface {
	RecordJobStarted(ctx context.Context, engine string)
	RecordJobCompleted(ctx context.Context, engine string, success, skipped bool, durationSeconds float64)
	RecordQueueDepth(ctx context.Context, depth int64)
}

// Batch maps a WorkFunc over a fixed job list using a bounded worker pool.
// The job list is enumerated once at construction and never mutated; resume
// decisions are made per job inside the WorkFunc at execution time.
//
// Lifecycle: New → Start → drain Results → Close. A Batch is not reusable
// after Close. Close must run on every exit path, including operator
// interrupt, so no worker survives the batch.
type Batch struct {
	work    WorkFunc
	jobs    []Job
	options Options
	logger  *slog.Logger

	queue   chan Job
	results chan Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Internal counters (for Stats())
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	active    atomic.Int64

	started atomic.Bool
	closed  atomic.Bool
}

// Options configures a Batch.
type Options struct {
	Workers int             // concurrent workers; 0 = host logical core count
	Engine  string          // engine label used in logs and metrics
	Metrics MetricsRecorder // optional
}

// New validates options and creates a batch. Nothing starts running until
// Start is called. Invalid configuration is rejected here, never mid-run.
func New(work WorkFunc, jobs []Job, opts Options) (*Batch, error) {
	if work == nil {
		return nil, apperrors.Validation("work", "work function is required")
	}
	if opts.Workers < 0 {
		return nil, apperrors.Validation("workers", fmt.Sprintf("worker count must be >= 0, got %d", opts.Workers))
	}
	opts = opts.withDefaults()

	return &Batch{
		work:    work,
		jobs:    jobs,
		options: opts,
		logger:  slog.With("component", "batch", "engine", opts.Engine),
	}, nil
}

// Len returns the number of jobs in the batch.
func (b *Batch) Len() int {
	return len(b.jobs)
}

// Start acquires the worker pool and submits every job. It returns
// immediately; results stream from Results(). The supplied context cancels
// in-flight work, so callers tie it to their interrupt handling.
func (b *Batch) Start(ctx context.Context) error {
	if b.closed.Load() {
		return fmt.Errorf("batch is closed")
	}
	if b.started.Swap(true) {
		return fmt.Errorf("batch already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	// Buffered to the full job count so result delivery never blocks a
	// worker, even when the caller stops reading during teardown.
	b.queue = make(chan Job, len(b.jobs))
	b.results = make(chan Result, len(b.jobs))

	// Submission order follows the job list order.
	for _, job := range b.jobs {
		b.queue <- job
	}
	close(b.queue)

	b.wg.Add(b.options.Workers)
	for i := 0; i < b.options.Workers; i++ {
		go b.worker(runCtx)
	}

	go func() {
		b.wg.Wait()
		close(b.results)
	}()

	if b.options.Metrics != nil {
		go b.reportQueueDepth(runCtx)
	}

	b.logger.Info("Batch started", "jobs", len(b.jobs), "workers", b.options.Workers)
	return nil
}

// Results returns the completion-order result stream. The channel closes
// once every job that was not abandoned has reported exactly once.
func (b *Batch) Results() <-chan Result {
	return b.results
}

// Close releases the worker pool. In-flight work is cancelled and waited
// for up to the context deadline; jobs still queued are abandoned. Close is
// idempotent and must not mask an error already propagating in the caller,
// so teardown failures are only reported through its own return value.
func (b *Batch) Close(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil // already closed
	}
	if !b.started.Load() {
		return nil
	}

	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		stats := b.Stats()
		b.logger.Info("Batch closed",
			"completed", stats.Completed,
			"failed", stats.Failed,
			"skipped", stats.Skipped,
		)
		return nil
	case <-ctx.Done():
		return apperrors.Internal("batch.close",
			fmt.Errorf("%d workers still running: %w", b.active.Load(), ctx.Err()))
	}
}

// Stats holds batch progress counters.
type Stats struct {
	Jobs       int   // total jobs submitted
	Completed  int64 // jobs that produced a result (including failures and skips)
	Failed     int64
	Skipped    int64
	InFlight   int64
	QueueDepth int // jobs not yet picked up by a worker
}

// Stats returns current batch statistics.
func (b *Batch) Stats() Stats {
	var depth int
	if b.queue != nil {
		depth = len(b.queue)
	}
	return Stats{
		Jobs:       len(b.jobs),
		Completed:  b.completed.Load(),
		Failed:     b.failed.Load(),
		Skipped:    b.skipped.Load(),
		InFlight:   b.active.Load(),
		QueueDepth: depth,
	}
}

// worker takes jobs to completion one at a time until the queue is drained
// or the run context is cancelled.
func (b *Batch) worker(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-b.queue:
			if !ok {
				return
			}
			// select picks randomly when both channels are ready; re-check
			// cancellation so abandoned jobs are never started with a dead
			// context.
			if ctx.Err() != nil {
				return
			}
			b.run(ctx, job)
		}
	}
}

// run executes a single job and delivers its result.
func (b *Batch) run(ctx context.Context, job Job) {
	b.active.Add(1)
	defer b.active.Add(-1)

	if b.options.Metrics != nil {
		b.options.Metrics.RecordJobStarted(ctx, b.options.Engine)
	}

	start := time.Now()
	err := b.invoke(ctx, job)
	duration := time.Since(start)

	result := Result{Job: job, Duration: duration}
	switch {
	case errors.Is(err, ErrSkipped):
		result.Skipped = true
		b.skipped.Add(1)
	case err != nil:
		result.Err = &JobError{Job: job, Cause: err}
		b.failed.Add(1)
		b.logger.Warn("Job failed", "dir", string(job), "error", err)
	}
	b.completed.Add(1)

	if b.options.Metrics != nil {
		b.options.Metrics.RecordJobCompleted(ctx, b.options.Engine,
			result.Err == nil, result.Skipped, duration.Seconds())
	}

	b.results <- result
}

// invoke calls the work function, converting a panic into that job's failure
// so one bad job cannot take down an overnight run.
func (b *Batch) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work function panic: %v", r)
		}
	}()
	return b.work(ctx, job)
}

// reportQueueDepth periodically reports the queue depth metric.
func (b *Batch) reportQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.options.Metrics.RecordQueueDepth(ctx, int64(len(b.queue)))
		}
	}
}
