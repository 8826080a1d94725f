// Package queue carries session flushes from the HTTP edge to the workers
// that apply them to the session buffer.
package queue

import (
	"context"
	"sync"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Flush is the payload flowing through the queue: the full state of one
// session as last reported by its client.
type Flush = model.Session

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a flush. It returns false when the queue is full or
	// closed; the flush is then dropped.
	Enqueue(ctx context.Context, f Flush) bool

	// Dequeue returns the receive side. It is closed after Close.
	Dequeue() <-chan Flush

	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	flushes  chan Flush
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.flushes = make(chan Flush, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a flush to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f Flush) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordFlushDropped("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordFlushDropped("context_cancelled")
		return false
	}

	select {
	case q.flushes <- f:
		metrics.RecordFlushEnqueued()
		metrics.UpdateQueueSize(len(q.flushes))
		return true
	default:
		metrics.RecordFlushDropped("queue_full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the channel workers range over.
func (q *InMemoryQueue) Dequeue() <-chan Flush {
	return q.flushes
}

// Len returns the number of queued flushes.
func (q *InMemoryQueue) Len() int {
	n := len(q.flushes)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting flushes. Queued flushes stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.flushes)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
