// Package session holds the bounded buffer of recently flushed visiting
// sessions. It is process-lifetime state: the composition root owns one
// Buffer and injects it wherever sessions are written or read.
package session

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

// DefaultCapacity is the number of sessions kept before the oldest is evicted.
const DefaultCapacity = 500

// Outcome says what an upsert did.
type Outcome int

// Upsert outcomes.
const (
	Inserted Outcome = iota
	Replaced
	Stale
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Stale:
		return "stale"
	default:
		return "rejected"
	}
}

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithCapacity sets the buffer bound.
func WithCapacity(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithLogger sets a custom logger for the buffer.
func WithLogger(l logger.Logger) Option {
	return func(b *Buffer) {
		if l != nil {
			b.logger = l
		}
	}
}

// Buffer keeps at most capacity sessions, one per id, in first-insertion
// order. Replacing a session keeps its position.
type Buffer struct {
	mu       sync.Mutex
	byID     map[string]*list.Element
	order    *list.List // of model.Session; front is the oldest
	capacity int
	logger   logger.Logger
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		byID:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: DefaultCapacity,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upsert stores s. A session with a known id replaces the stored record in
// place unless its FlushedAt is older, in which case it is ignored. A new id
// is appended and the oldest records are evicted past capacity. Sessions
// without an id are rejected.
func (b *Buffer) Upsert(ctx context.Context, s model.Session) Outcome { //nolint:gocritic // sessions are copied on purpose
	if s.ID == "" {
		metrics.RecordFlushApplied(Rejected.String())
		return Rejected
	}
	s = s.Clone()

	b.mu.Lock()
	out, evicted := b.upsertLocked(s)
	size := b.order.Len()
	b.mu.Unlock()

	metrics.RecordFlushApplied(out.String())
	metrics.UpdateSessionBufferSize(size)
	if evicted > 0 {
		metrics.RecordSessionEvictions(evicted)
		b.logger.Debug(ctx, "evicted oldest sessions", logger.Int("count", evicted))
	}
	return out
}

func (b *Buffer) upsertLocked(s model.Session) (Outcome, int) { //nolint:gocritic // see Upsert
	if el, ok := b.byID[s.ID]; ok {
		cur := el.Value.(model.Session)
		if s.FlushedAt.Before(cur.FlushedAt) {
			return Stale, 0
		}
		el.Value = s
		return Replaced, 0
	}

	b.byID[s.ID] = b.order.PushBack(s)
	evicted := 0
	for b.order.Len() > b.capacity {
		front := b.order.Front()
		b.order.Remove(front)
		delete(b.byID, front.Value.(model.Session).ID)
		evicted++
	}
	return Inserted, evicted
}

// List returns copies of the buffered sessions in insertion order.
func (b *Buffer) List() []model.Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Session, 0, b.order.Len())
	for el := b.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(model.Session).Clone())
	}
	return out
}

// Get returns a copy of the session with id.
func (b *Buffer) Get(id string) (model.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.byID[id]
	if !ok {
		return model.Session{}, false
	}
	return el.Value.(model.Session).Clone(), true
}

// Len returns the number of buffered sessions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

// Capacity returns the buffer bound.
func (b *Buffer) Capacity() int { return b.capacity }
