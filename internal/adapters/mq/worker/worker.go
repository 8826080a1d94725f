// Package worker drains the flush queue into the session buffer.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/okian/redflag/internal/adapters/mq/queue"
	"github.com/okian/redflag/internal/domain/session"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

// Applier stores a session flush.
type Applier interface {
	Upsert(ctx context.Context, s queue.Flush) session.Outcome
}

// Source is where workers receive flushes.
type Source interface {
	Dequeue() <-chan queue.Flush
}

// Worker applies flushes until its source closes or it is stopped.
type Worker struct {
	source  Source
	applier Applier
	name    string

	processed atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker.
func NewWorker(source Source, applier Applier, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run processes flushes until ctx is done, Shutdown is called or the source
// channel closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	flushes := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case f, ok := <-flushes:
			if !ok {
				return
			}
			out := w.applier.Upsert(ctx, f)
			w.processed.Add(1)
			if out == session.Rejected {
				w.logger.Debug(ctx, "dropped flush without session id")
			}
		}
	}
}

// Processed returns how many flushes this worker handled.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Shutdown stops the worker and waits for it.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown %s: %w", w.name, ctx.Err())
	}
}

// Pool runs several workers over one source.
type Pool struct {
	workers []*Worker
	closer  interface{ Close() error }
	logger  logger.Logger
}

// NewPool creates count workers. A count below 1 uses runtime.NumCPU().
func NewPool(count int, source Source, applier Applier, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &Pool{workers: make([]*Worker, count), logger: logger.Nop()}
	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewWorker(source, applier, wopts...)
	}
	if c, ok := source.(interface{ Close() error }); ok {
		p.closer = c
	}
	if len(p.workers) > 0 {
		p.logger = p.workers[0].logger
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the total flushes handled by the pool.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Drain closes the source and waits until the workers finish the backlog.
func (p *Pool) Drain(ctx context.Context) error {
	if p.closer != nil {
		if err := p.closer.Close(); err != nil {
			p.logger.Error(ctx, "close flush source", logger.Error(err))
		}
	}
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			return fmt.Errorf("drain: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
