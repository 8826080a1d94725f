// Package service wires the rating store, the update engine, the duel
// selector, the session buffer and the stats aggregator into the operations
// the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	flushqueue "github.com/okian/redflag/internal/adapters/mq/queue"
	workerpool "github.com/okian/redflag/internal/adapters/mq/worker"
	"github.com/okian/redflag/internal/adapters/repository"
	"github.com/okian/redflag/internal/domain/dedupe"
	"github.com/okian/redflag/internal/domain/duel"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/rating"
	"github.com/okian/redflag/internal/domain/session"
	"github.com/okian/redflag/internal/domain/stats"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 50_000
	drainTimeout      = 10 * time.Second
)

// VoteOutcome is the result of ApplyVote.
type VoteOutcome struct {
	VoteID    string         `json:"vote_id"`
	Duplicate bool           `json:"duplicate"`
	Winner    model.Element  `json:"-"`
	Loser     model.Element  `json:"-"`
	Deltas    []rating.Delta `json:"deltas,omitempty"`
}

// Service implements the API dependencies for the duel game.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	engine     *rating.Engine
	selector   *duel.Selector
	buffer     *session.Buffer
	deduper    dedupe.Deduper
	flushQueue *flushqueue.InMemoryQueue
	workerPool *workerpool.Pool
	aggregator *stats.Aggregator

	// inflight collapses concurrent submissions of one vote id.
	inflight singleflight.Group

	workerCount  int
	queueSize    int
	dedupeSize   int
	eloK         float64
	eloBase      float64
	gapBand      float64
	poolSize     int
	maxSeenChars int
	statsDays    int
	statsMaxDays int
	seed         []model.Element
	now          func() time.Time

	started bool

	logger logger.Logger
}

// New constructs a Service. Components that need no goroutines are built
// here so reads and votes work before Start; Start seeds the store and
// launches the flush workers.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		eloBase:      model.DefaultBaseRating,
		maxSeenChars: duel.DefaultMaxSeenChars,
		now:          time.Now,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithLogger(s.logger.Named("store")))
	}
	if s.buffer == nil {
		s.buffer = session.NewBuffer(session.WithLogger(s.logger.Named("sessions")))
	}
	s.engine = rating.New(rating.WithK(s.eloK), rating.WithBase(s.eloBase))
	s.selector = duel.New(s.store,
		duel.WithGapBand(s.gapBand),
		duel.WithPoolSize(s.poolSize),
		duel.WithMaxSeenChars(s.maxSeenChars),
		duel.WithLogger(s.logger.Named("selector")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.flushQueue = flushqueue.NewInMemoryQueue(flushqueue.WithCapacity(s.queueSize))
	s.aggregator = stats.New(s.store, s.buffer,
		stats.WithDays(s.statsDays),
		stats.WithMaxDays(s.statsMaxDays),
		stats.WithClock(s.now),
		stats.WithLogger(s.logger.Named("stats")),
	)
	return s
}

// Start seeds the store and launches the flush workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting duel service...")

	if len(s.seed) > 0 {
		if err := s.store.UpsertElements(ctx, s.seed); err != nil {
			return fmt.Errorf("seed elements: %w", err)
		}
		s.logger.Info(ctx, "seeded element catalog", logger.Int("elements", len(s.seed)))
	}
	metrics.UpdateElementsTotal(s.store.Count(ctx))

	s.workerPool = workerpool.NewPool(s.workerCount, s.flushQueue, s.buffer,
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	// Workers outlive the start request.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "duel service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("eloK", s.engine.K()),
	)
	return nil
}

// Stop drains pending flushes and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping duel service...")

	if err := s.workerPool.Drain(ctx); err != nil {
		s.logger.Warn(ctx, "flush drain incomplete", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "duel service stopped")
}

// ApplyVote records one player decision. A vote carrying an id already seen
// is acknowledged without being applied again; a retry arriving while the
// first submission is still in the store waits for its result. Once the
// store update begins it runs to completion even if ctx is cancelled.
func (s *Service) ApplyVote(ctx context.Context, v model.Vote) (VoteOutcome, error) { //nolint:gocritic // votes are values
	if err := v.Validate(); err != nil {
		metrics.RecordVoteRejected(rejectReason(err))
		return VoteOutcome{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
		return s.applyVote(ctx, v)
	}

	leader := false
	res, err, shared := s.inflight.Do(v.ID, func() (any, error) {
		leader = true
		if s.deduper.SeenAndRecord(ctx, v.ID) {
			return VoteOutcome{VoteID: v.ID, Duplicate: true}, nil
		}
		out, err := s.applyVote(ctx, v)
		if err != nil {
			s.deduper.Unrecord(ctx, v.ID)
		}
		return out, err
	})
	if err != nil {
		return VoteOutcome{}, err
	}
	out, _ := res.(VoteOutcome)
	if shared && !leader && !out.Duplicate {
		out = VoteOutcome{VoteID: v.ID, Duplicate: true}
	}
	if out.Duplicate {
		metrics.RecordVoteDuplicate()
		s.logger.Debug(ctx, "duplicate vote ignored", logger.String("voteID", v.ID))
	}
	return out, nil
}

func (s *Service) applyVote(ctx context.Context, v model.Vote) (VoteOutcome, error) { //nolint:gocritic // votes are values
	if v.At.IsZero() {
		v.At = s.now().UTC()
	}

	var out rating.Outcome
	res, err := s.store.ApplyVote(context.WithoutCancel(ctx), v, func(w, l *model.Element) error {
		var err error
		out, err = s.engine.Apply(w, l, v)
		return err
	})
	if errors.Is(err, repository.ErrDuplicateVote) {
		return VoteOutcome{VoteID: v.ID, Duplicate: true}, nil
	}
	if err != nil {
		metrics.RecordVoteRejected(rejectReason(err))
		metrics.RecordErrorByComponent("service", rejectReason(err))
		return VoteOutcome{}, fmt.Errorf("apply vote %s: %w", v.ID, err)
	}

	if len(out.Deltas) > 0 {
		metrics.RecordVoteApplied(out.Deltas[0].Change)
	}
	s.logger.Debug(ctx, "vote applied",
		logger.String("voteID", v.ID),
		logger.Int64("winner", v.WinnerID),
		logger.Int64("loser", v.LoserID),
		logger.Int("segments", len(out.Deltas)),
	)
	return VoteOutcome{VoteID: v.ID, Winner: res.Winner, Loser: res.Loser, Deltas: out.Deltas}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrSelfDuel):
		return "self_duel"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// NextDuel decodes the caller's seen-duels encoding and picks the next pair.
func (s *Service) NextDuel(ctx context.Context, encodedSeen string, category model.Category) (duel.Result, error) {
	seen, err := duel.ParseSeen(encodedSeen, s.selector.MaxSeenChars())
	if err != nil {
		return duel.Result{}, err
	}
	return s.selector.Next(ctx, seen, category)
}

// Flush queues a session flush for the workers. Flushes without an id or
// arriving on a full queue are dropped.
func (s *Service) Flush(ctx context.Context, sess model.Session) bool { //nolint:gocritic // sessions are values
	if sess.ID == "" {
		metrics.RecordFlushDropped("missing_id")
		return false
	}
	if sess.FlushedAt.IsZero() {
		sess.FlushedAt = s.now().UTC()
	}
	return s.flushQueue.Enqueue(ctx, sess)
}

// RecordVerdict appends a free-text verdict outcome.
func (s *Service) RecordVerdict(ctx context.Context, kind model.VerdictKind) (model.Verdict, error) {
	if kind != model.VerdictRed && kind != model.VerdictGreen {
		return model.Verdict{}, fmt.Errorf("%w: %d", model.ErrInvalidVerdict, kind)
	}
	v := model.Verdict{ID: uuid.NewString(), Kind: kind, At: s.now().UTC()}
	if err := s.store.AppendVerdict(context.WithoutCancel(ctx), v); err != nil {
		return model.Verdict{}, fmt.Errorf("record verdict: %w", err)
	}
	metrics.RecordVerdict(kind.String())
	return v, nil
}

// PublicStats returns the anonymous stats view.
func (s *Service) PublicStats(ctx context.Context) (stats.Public, error) {
	return s.aggregator.PublicStats(ctx)
}

// AdminStats returns the gated stats view over [from, to).
func (s *Service) AdminStats(ctx context.Context, from, to time.Time) (stats.Admin, error) {
	return s.aggregator.AdminStats(ctx, from, to)
}

// Demographics breaks down the buffered sessions.
func (s *Service) Demographics(ctx context.Context) (stats.Breakdown, error) {
	return s.aggregator.Demographics(ctx)
}

// GlobalVerdictCounts returns the red/green tallies.
func (s *Service) GlobalVerdictCounts(ctx context.Context) (stats.VerdictCounts, error) {
	return s.aggregator.GlobalVerdictCounts(ctx)
}

// Ranking returns the per-segment leaderboard.
func (s *Service) Ranking(ctx context.Context, segment model.Segment, category model.Category, limit int) ([]repository.Entry, error) {
	return s.store.Ranking(ctx, segment, category, limit)
}

// Sessions returns the buffered sessions in insertion order.
func (s *Service) Sessions() []model.Session {
	return s.buffer.List()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"bufferCapacity": s.buffer.Capacity(),
		"bufferLength":   s.buffer.Len(),
		"queueLength":    s.flushQueue.Len(),
		"votesTracked":   s.deduper.Size(),
		"totalElements":  s.store.Count(context.Background()),
		"eloK":           s.engine.K(),
	}
	if s.workerPool != nil {
		out["workerCount"] = s.workerPool.Size()
		out["flushesProcessed"] = s.workerPool.Processed()
	}
	return out
}
