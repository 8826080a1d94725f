package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

// slot guards one element. Votes touching the element lock its slot, so
// updates to the same element serialize while disjoint pairs proceed in
// parallel.
type slot struct {
	mu sync.Mutex
	el model.Element
}

// MemoryStore is an in-process Store. It is the default for single-node
// deployments and for tests.
type MemoryStore struct {
	mu    sync.RWMutex // guards slots (the map, not the elements)
	slots map[int64]*slot

	votesMu sync.RWMutex
	votes   []model.Vote
	voteIDs map[string]struct{}

	verdictMu sync.Mutex
	verdicts  []model.Verdict

	closed atomic.Bool
	logger logger.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		slots:   make(map[int64]*slot),
		voteIDs: make(map[string]struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) check() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: memory store closed", ErrUnavailable)
	}
	return nil
}

// UpsertElements inserts catalog elements, keeping ratings of known ids.
func (s *MemoryStore) UpsertElements(ctx context.Context, elements []model.Element) error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range elements {
		if sl, ok := s.slots[e.ID]; ok {
			sl.mu.Lock()
			sl.el.Text = e.Text
			sl.el.Category = e.Category
			sl.mu.Unlock()
			continue
		}
		s.slots[e.ID] = &slot{el: e}
	}
	metrics.UpdateElementsTotal(len(s.slots))
	return nil
}

// Element returns one element by id.
func (s *MemoryStore) Element(ctx context.Context, id int64) (model.Element, error) {
	if err := s.check(); err != nil {
		return model.Element{}, err
	}
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return model.Element{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.el, nil
}

// Elements returns the elements of a category ordered by id.
func (s *MemoryStore) Elements(ctx context.Context, category model.Category) ([]model.Element, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	out := make([]model.Element, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		el := sl.el
		sl.mu.Unlock()
		if category != model.CategoryAll && el.Category != category {
			continue
		}
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ApplyVote applies one vote atomically across both elements.
func (s *MemoryStore) ApplyVote(ctx context.Context, v model.Vote, apply ApplyFunc) (VoteResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("apply_vote", float64(time.Since(start).Milliseconds()))
	}()

	if err := v.Validate(); err != nil {
		return VoteResult{}, err
	}
	if err := s.check(); err != nil {
		return VoteResult{}, err
	}

	s.mu.RLock()
	w, wok := s.slots[v.WinnerID]
	l, lok := s.slots[v.LoserID]
	s.mu.RUnlock()
	switch {
	case !wok:
		return VoteResult{}, fmt.Errorf("%w: %d", ErrNotFound, v.WinnerID)
	case !lok:
		return VoteResult{}, fmt.Errorf("%w: %d", ErrNotFound, v.LoserID)
	}

	// The id is reserved before the ratings move so a concurrent replay of
	// the same vote cannot also apply.
	if !s.reserve(v.ID) {
		return VoteResult{}, fmt.Errorf("%w: %s", ErrDuplicateVote, v.ID)
	}

	// Lock in id order so two votes on the same pair cannot deadlock.
	first, second := w, l
	if v.LoserID < v.WinnerID {
		first, second = l, w
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	winner, loser := w.el, l.el
	if err := apply(&winner, &loser); err != nil {
		s.release(v.ID)
		return VoteResult{}, err
	}

	s.votesMu.Lock()
	w.el, l.el = winner, loser
	s.votes = append(s.votes, v)
	s.votesMu.Unlock()

	return VoteResult{Winner: winner, Loser: loser}, nil
}

// reserve claims a vote id. Empty ids are never tracked.
func (s *MemoryStore) reserve(id string) bool {
	if id == "" {
		return true
	}
	s.votesMu.Lock()
	defer s.votesMu.Unlock()
	if _, ok := s.voteIDs[id]; ok {
		return false
	}
	s.voteIDs[id] = struct{}{}
	return true
}

func (s *MemoryStore) release(id string) {
	if id == "" {
		return
	}
	s.votesMu.Lock()
	delete(s.voteIDs, id)
	s.votesMu.Unlock()
}

// VoteTallies groups the votes within [from, to) by winner category and
// voter axes. Votes whose winner is unknown count under CategoryAll.
func (s *MemoryStore) VoteTallies(ctx context.Context, from, to time.Time) ([]model.VoteTally, error) {
	els, err := s.Elements(ctx, model.CategoryAll)
	if err != nil {
		return nil, err
	}
	cats := make(map[int64]model.Category, len(els))
	for i := range els {
		cats[els[i].ID] = els[i].Category
	}

	type key struct {
		cat model.Category
		sex model.Sex
		age model.AgeBracket
	}
	counts := make(map[key]int)
	s.votesMu.RLock()
	for _, v := range s.votes {
		if inRange(v.At, from, to) {
			counts[key{cats[v.WinnerID], v.Sex, v.Age}]++
		}
	}
	s.votesMu.RUnlock()

	out := make([]model.VoteTally, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.VoteTally{Category: k.cat, Sex: k.sex, Age: k.age, Votes: n})
	}
	return out, nil
}

// Votes returns a copy of the votes within [from, to).
func (s *MemoryStore) Votes(ctx context.Context, from, to time.Time) ([]model.Vote, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.votesMu.RLock()
	defer s.votesMu.RUnlock()
	out := make([]model.Vote, 0, len(s.votes))
	for _, v := range s.votes {
		if inRange(v.At, from, to) {
			out = append(out, v)
		}
	}
	return out, nil
}

// AppendVerdict records a verdict.
func (s *MemoryStore) AppendVerdict(ctx context.Context, v model.Verdict) error {
	if err := s.check(); err != nil {
		return err
	}
	s.verdictMu.Lock()
	s.verdicts = append(s.verdicts, v)
	s.verdictMu.Unlock()
	return nil
}

// VerdictCounts counts red and green verdicts.
func (s *MemoryStore) VerdictCounts(ctx context.Context) (red, green int, err error) {
	if err := s.check(); err != nil {
		return 0, 0, err
	}
	s.verdictMu.Lock()
	defer s.verdictMu.Unlock()
	for _, v := range s.verdicts {
		switch v.Kind {
		case model.VerdictRed:
			red++
		case model.VerdictGreen:
			green++
		}
	}
	return red, green, nil
}

// Ranking orders the elements of a category by their rating in segment.
func (s *MemoryStore) Ranking(ctx context.Context, segment model.Segment, category model.Category, limit int) ([]Entry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if !segment.Valid() {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidSegment, segment)
	}
	elements, err := s.Elements(ctx, category)
	if err != nil {
		return nil, err
	}
	return rank(elements, segment, limit), nil
}

// Count returns the number of elements.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Close marks the store unavailable. Further calls fail with ErrUnavailable.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// rank sorts by rating desc, then id asc, and numbers the first limit rows.
func rank(elements []model.Element, segment model.Segment, limit int) []Entry {
	sort.SliceStable(elements, func(i, j int) bool {
		ri, rj := elements[i].Ratings[segment].Elo, elements[j].Ratings[segment].Elo
		if ri != rj {
			return ri > rj
		}
		return elements[i].ID < elements[j].ID
	})
	if len(elements) > limit {
		elements = elements[:limit]
	}
	out := make([]Entry, len(elements))
	for i, e := range elements {
		r := e.Ratings[segment]
		out[i] = Entry{
			Rank:        i + 1,
			ElementID:   e.ID,
			Text:        e.Text,
			Category:    e.Category,
			Rating:      r.Elo,
			Comparisons: r.Comparisons,
		}
	}
	return out
}
