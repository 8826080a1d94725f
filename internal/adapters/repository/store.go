// Package repository holds the segmented rating store, the vote history and
// the verdict log.
package repository

import (
	"context"
	"time"

	"github.com/okian/redflag/internal/domain/model"
)

// Entry is one row of a per-segment ranking.
type Entry struct {
	Rank        int            `json:"rank"`
	ElementID   int64          `json:"element_id"`
	Text        string         `json:"text"`
	Category    model.Category `json:"category"`
	Rating      float64        `json:"rating"`
	Comparisons int            `json:"comparisons"`
}

// ApplyFunc mutates copies of both elements for one vote. Returning an
// error aborts the whole vote.
type ApplyFunc func(winner, loser *model.Element) error

// VoteResult carries both elements as committed.
type VoteResult struct {
	Winner model.Element
	Loser  model.Element
}

// Store provides read/write access to ratings, votes and verdicts.
type Store interface {
	// UpsertElements inserts catalog elements. Existing ids keep their ratings
	// and only refresh text and category.
	UpsertElements(ctx context.Context, elements []model.Element) error

	// Element returns one element. Returns ErrNotFound if unknown.
	Element(ctx context.Context, id int64) (model.Element, error)

	// Elements returns every element in the category, or all of them for
	// model.CategoryAll, ordered by id.
	Elements(ctx context.Context, category model.Category) ([]model.Element, error)

	// ApplyVote loads both elements, runs apply on copies, and commits both
	// ratings together with the vote record. Either everything is committed
	// or nothing is. Votes sharing an element are serialized. A vote id that
	// was already recorded fails with ErrDuplicateVote.
	ApplyVote(ctx context.Context, v model.Vote, apply ApplyFunc) (VoteResult, error)

	// Votes returns recorded votes with from <= At < to. Zero bounds are open.
	Votes(ctx context.Context, from, to time.Time) ([]model.Vote, error)

	// VoteTallies counts votes with from <= At < to grouped by the winner's
	// category and the voter's sex and age. Zero bounds are open.
	VoteTallies(ctx context.Context, from, to time.Time) ([]model.VoteTally, error)

	// AppendVerdict records one free-text verdict.
	AppendVerdict(ctx context.Context, v model.Verdict) error

	// VerdictCounts returns the number of red and green verdicts.
	VerdictCounts(ctx context.Context) (red, green int, err error)

	// Ranking returns the top limit elements by rating within a segment,
	// rating desc then id asc.
	Ranking(ctx context.Context, segment model.Segment, category model.Category, limit int) ([]Entry, error)

	// Count returns the number of elements.
	Count(ctx context.Context) int

	Close() error
}

// inRange reports whether t falls within [from, to), zero bounds being open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
