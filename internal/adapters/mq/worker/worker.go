// Package worker runs retraining jobs taken off the queue, one at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/okian/jobfit/pkg/metrics"
)

// Job is what the worker reads off the queue.
type Job = model.RetrainJob

// Processor executes one retraining job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue() <-chan Job
}

// Worker processes queued jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the single writer of the retraining pipeline: jobs are
// processed strictly one after another.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		name:      "retrain-worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.GetOrNop().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "retrain job panicked",
				logger.String("job_id", job.ID),
				logger.Any("panic", r),
			)
		}
	}()

	if err := w.processor.Process(ctx, job); err != nil {
		metrics.RecordErrorByComponent("worker", "job_failed")
		w.logger.Error(ctx, "retrain job failed",
			logger.String("job_id", job.ID),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		return
	}
	w.logger.Debug(ctx, "retrain job done",
		logger.String("job_id", job.ID),
		logger.Duration("took", time.Since(start)),
	)
}
