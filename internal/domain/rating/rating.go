// Package rating implements the pairwise Elo update applied to duel outcomes.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/redflag/internal/domain/model"
)

// Default engine configuration constants.
const (
	defaultK      = 32.0
	defaultSpread = 400.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithK sets the sensitivity constant used for every segment.
func WithK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// WithBase sets the rating new elements start from.
func WithBase(base float64) Option {
	return func(e *Engine) {
		if base > 0 {
			e.base = base
		}
	}
}

// WithSpread sets the logistic spread; a gap of one spread means 10:1 odds.
func WithSpread(spread float64) Option {
	return func(e *Engine) {
		if spread > 0 {
			e.spread = spread
		}
	}
}

// Delta is the change applied to one segment for one vote.
type Delta struct {
	Segment  model.Segment `json:"segment"`
	Expected float64       `json:"expected"`
	Change   float64       `json:"change"`
}

// Outcome lists the per-segment changes a vote produced.
type Outcome struct {
	Deltas []Delta `json:"deltas"`
}

// Engine converts vote outcomes into rating changes.
type Engine struct {
	k      float64
	base   float64
	spread float64
}

// New creates an engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		k:      defaultK,
		base:   model.DefaultBaseRating,
		spread: defaultSpread,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// K returns the sensitivity constant.
func (e *Engine) K() float64 { return e.k }

// Base returns the starting rating.
func (e *Engine) Base() float64 { return e.base }

// Expected returns the probability that a player rated winner beats one rated loser.
func (e *Engine) Expected(winner, loser float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (loser-winner)/e.spread))
}

// Apply mutates winner and loser for every segment the vote qualifies for.
// Segments the vote does not declare are left untouched. The caller owns
// atomicity: pass copies and commit both or neither.
func (e *Engine) Apply(winner, loser *model.Element, v model.Vote) (Outcome, error) {
	if err := v.Validate(); err != nil {
		return Outcome{}, err
	}
	if winner == nil || loser == nil {
		return Outcome{}, fmt.Errorf("apply vote %s: nil element", v.ID)
	}
	if winner.ID != v.WinnerID || loser.ID != v.LoserID {
		return Outcome{}, fmt.Errorf("apply vote %s: elements %d/%d do not match vote %d/%d",
			v.ID, winner.ID, loser.ID, v.WinnerID, v.LoserID)
	}

	segs := v.Segments()
	out := Outcome{Deltas: make([]Delta, 0, len(segs))}
	for _, s := range segs {
		w := &winner.Ratings[s]
		l := &loser.Ratings[s]
		expected := e.Expected(w.Elo, l.Elo)
		change := e.k * (1 - expected)
		w.Elo += change
		l.Elo -= change
		w.Comparisons++
		l.Comparisons++
		out.Deltas = append(out.Deltas, Delta{Segment: s, Expected: expected, Change: change})
	}
	return out, nil
}
