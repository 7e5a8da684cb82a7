// Package worker runs the background consumers of the job queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/movie-elo/internal/adapters/mq/queue"
	"github.com/okian/movie-elo/pkg/logger"
	"github.com/okian/movie-elo/pkg/metrics"
)

const defaultWorkers = 4

// Handler processes one job.
type Handler interface {
	Handle(ctx context.Context, j queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j queue.Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, j queue.Job) error { return f(ctx, j) }

// Source is where workers read jobs from.
type Source interface {
	Dequeue() <-chan queue.Job
}

// InMemoryWorker drains jobs from a Source into a Handler.
type InMemoryWorker struct {
	source  Source
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(source Source, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until the source is drained, ctx is cancelled or the
// worker is told to stop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, j)
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	err := w.handler.Handle(ctx, j)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Warn(ctx, "job failed",
			logger.String("worker", w.name),
			logger.String("title", j.Title),
			logger.Error(err),
		)
	}
}

// Stop asks the worker to return after the job in progress.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue
	logger  logger.Logger

	once sync.Once
}

// NewPool creates n workers over q; n < 1 means 4.
func NewPool(n int, q queue.Queue, handler Handler, opts ...Option) *Pool {
	if n < 1 {
		n = defaultWorkers
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, n),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, handler, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// expires first the workers are stopped and an error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if cerr := p.queue.Close(); cerr != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
		}
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				for _, rest := range p.workers[i:] {
					rest.Stop()
				}
				err = fmt.Errorf("worker pool shutdown: %w", ctx.Err())
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("pending_workers", len(p.workers)-i))
				return
			}
		}
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
