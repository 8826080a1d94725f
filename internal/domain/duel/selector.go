// Package duel picks the next pair of elements to show a player.
//
// Hard rules: only elements of the requested category are paired, and a
// pair already in the session's seen set is never offered again. Within
// those rules the ranking is a tunable policy that favours pairs whose
// global ratings are close and whose elements have few comparisons.
package duel

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

// Default selector configuration constants.
const (
	defaultGapBand  = 200.0
	defaultPoolSize = 8
)

// ElementLister reads the elements eligible for a category.
type ElementLister interface {
	Elements(ctx context.Context, category model.Category) ([]model.Element, error)
}

// Result is the answer to a next-duel request. When Exhausted is set, A and
// B are zero.
type Result struct {
	A         model.Element
	B         model.Element
	Exhausted bool
	// Played is the number of duels already shown before this answer.
	Played int
	// Seen is the caller's updated seen-duels encoding.
	Seen string
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithGapBand sets the global-rating gap under which pairs are not penalized.
func WithGapBand(band float64) Option {
	return func(s *Selector) {
		if band > 0 {
			s.gapBand = band
		}
	}
}

// WithPoolSize sets how many of the best-ranked pairs are drawn from at random.
func WithPoolSize(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// WithMaxSeenChars sets the seen-duels encoding cap.
func WithMaxSeenChars(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxSeenChars = n
		}
	}
}

// WithRand sets the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithLogger sets a custom logger for the selector.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// Selector chooses duel pairs.
type Selector struct {
	elements     ElementLister
	gapBand      float64
	poolSize     int
	maxSeenChars int

	rngMu sync.Mutex
	rng   *rand.Rand

	logger logger.Logger
}

// New creates a selector reading elements from lister.
func New(lister ElementLister, opts ...Option) *Selector {
	s := &Selector{
		elements:     lister,
		gapBand:      defaultGapBand,
		poolSize:     defaultPoolSize,
		maxSeenChars: DefaultMaxSeenChars,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // selection fairness, not security
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSeenChars returns the configured encoding cap.
func (s *Selector) MaxSeenChars() int { return s.maxSeenChars }

type candidate struct {
	a, b int
	cost float64
}

// Next returns an unseen pair from category (model.CategoryAll for any), or
// an exhausted result. seen is updated in place when a pair is returned.
func (s *Selector) Next(ctx context.Context, seen *Seen, category model.Category) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSelectorLatency(float64(time.Since(start).Milliseconds()))
	}()

	if seen == nil {
		seen = NewSeen()
	}
	els, err := s.elements.Elements(ctx, category)
	if err != nil {
		return Result{}, fmt.Errorf("list elements: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cands := s.candidates(els, seen)
	if len(cands) == 0 {
		metrics.RecordDuelExhausted()
		s.logger.Debug(ctx, "duels exhausted",
			logger.String("category", category.Label()),
			logger.Int("played", seen.Len()),
			logger.Int("seenChars", seen.Size()),
		)
		return Result{Exhausted: true, Played: seen.Len(), Seen: seen.Encode()}, nil
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].cost < cands[j].cost })
	pool := cands
	if len(pool) > s.poolSize {
		pool = pool[:s.poolSize]
	}

	s.rngMu.Lock()
	pick := pool[s.rng.Intn(len(pool))]
	swap := s.rng.Intn(2) == 1
	s.rngMu.Unlock()

	a, b := els[pick.a], els[pick.b]
	if swap {
		a, b = b, a
	}
	played := seen.Len()
	seen.Add(a.ID, b.ID)
	metrics.RecordDuelServed()

	return Result{A: a, B: b, Played: played, Seen: seen.Encode()}, nil
}

// candidates lists every unseen pair that still fits the encoding cap,
// costed by rating gap beyond the band plus relative exposure.
func (s *Selector) candidates(els []model.Element, seen *Seen) []candidate {
	maxComparisons := 0
	for i := range els {
		if c := els[i].Ratings[model.SegmentGlobal].Comparisons; c > maxComparisons {
			maxComparisons = c
		}
	}
	norm := float64(2 * (maxComparisons + 1))

	var out []candidate
	for i := 0; i < len(els); i++ {
		ri := els[i].Ratings[model.SegmentGlobal]
		for j := i + 1; j < len(els); j++ {
			if els[i].ID == els[j].ID || seen.Contains(els[i].ID, els[j].ID) {
				continue
			}
			if !seen.Fits(PairOf(els[i].ID, els[j].ID), s.maxSeenChars) {
				continue
			}
			rj := els[j].Ratings[model.SegmentGlobal]
			over := math.Max(0, math.Abs(ri.Elo-rj.Elo)-s.gapBand) / s.gapBand
			exposure := float64(ri.Comparisons+rj.Comparisons) / norm
			out = append(out, candidate{a: i, b: j, cost: over + exposure})
		}
	}
	return out
}
