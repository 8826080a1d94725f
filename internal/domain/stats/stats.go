// Package stats derives read-side views from the vote history, the verdict
// log and the session buffer. Nothing here writes back to those sources.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

const (
	defaultDays    = 30
	defaultMaxDays = 366
	dayLayout      = "2006-01-02"
	day            = 24 * time.Hour
	secondsPerDay  = 24 * 60 * 60
)

// History is the durable side the aggregator reads.
type History interface {
	Votes(ctx context.Context, from, to time.Time) ([]model.Vote, error)
	VoteTallies(ctx context.Context, from, to time.Time) ([]model.VoteTally, error)
	VerdictCounts(ctx context.Context) (red, green int, err error)
}

// Sessions is the in-process session buffer.
type Sessions interface {
	List() []model.Session
}

// Participation counts visiting sessions currently buffered.
type Participation struct {
	Sessions       int `json:"sessions"`
	ActiveSessions int `json:"active_sessions"`
	SessionVotes   int `json:"session_votes"`
	AIRequests     int `json:"ai_requests"`
}

// VoteTotals breaks votes down by the winner's category and the voter's axes.
type VoteTotals struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	BySex      map[string]int `json:"by_sex"`
	ByAge      map[string]int `json:"by_age"`
}

// Public is the anonymous stats view.
type Public struct {
	Votes         VoteTotals    `json:"votes"`
	Participation Participation `json:"participation"`
}

// DayCount is one UTC calendar day of the vote series.
type DayCount struct {
	Day   string `json:"day"`
	Votes int    `json:"votes"`
}

// VerdictCounts tallies the free-text mode outcomes.
type VerdictCounts struct {
	Red   int `json:"red"`
	Green int `json:"green"`
}

// Admin is the gated stats view over [From, To).
type Admin struct {
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	Votes         VoteTotals    `json:"votes"`
	Participation Participation `json:"participation"`
	Verdicts      VerdictCounts `json:"verdicts"`
	Daily         []DayCount    `json:"daily"`
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithDays sets the default admin window in days.
func WithDays(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.days = n
		}
	}
}

// WithMaxDays bounds the span of an admin range in days.
func WithMaxDays(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxDays = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator builds the stats views.
type Aggregator struct {
	history  History
	sessions Sessions
	days     int
	maxDays  int
	now      func() time.Time
	logger   logger.Logger
}

// New creates an aggregator.
func New(history History, sessions Sessions, opts ...Option) *Aggregator {
	a := &Aggregator{
		history:  history,
		sessions: sessions,
		days:     defaultDays,
		maxDays:  defaultMaxDays,
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PublicStats returns vote totals over the whole history and participation
// over the buffered sessions.
func (a *Aggregator) PublicStats(ctx context.Context) (Public, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsLatency("public", float64(time.Since(start).Milliseconds())) }()

	tallies, err := a.history.VoteTallies(ctx, time.Time{}, time.Time{})
	if err != nil {
		return Public{}, fmt.Errorf("vote tallies: %w", err)
	}
	totals := countVotes(tallies)
	return Public{Votes: totals, Participation: a.participation()}, nil
}

// AdminStats returns totals and the daily vote series over [from, to).
// Zero bounds default to the last configured number of days, ending with
// today. Days are UTC calendar days and days without votes are present.
func (a *Aggregator) AdminStats(ctx context.Context, from, to time.Time) (Admin, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsLatency("admin", float64(time.Since(start).Milliseconds())) }()

	from, to, err := a.window(from, to)
	if err != nil {
		return Admin{}, err
	}

	var (
		votes      []model.Vote
		tallies    []model.VoteTally
		red, green int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		votes, err = a.history.Votes(gctx, from, to)
		if err != nil {
			return fmt.Errorf("read votes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tallies, err = a.history.VoteTallies(gctx, from, to)
		if err != nil {
			return fmt.Errorf("vote tallies: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		red, green, err = a.history.VerdictCounts(gctx)
		if err != nil {
			return fmt.Errorf("verdict counts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn(ctx, "admin stats load failed", logger.Error(err))
		return Admin{}, err
	}
	if err := ctx.Err(); err != nil {
		return Admin{}, err
	}

	totals := countVotes(tallies)
	return Admin{
		From:          from,
		To:            to,
		Votes:         totals,
		Participation: a.participation(),
		Verdicts:      VerdictCounts{Red: red, Green: green},
		Daily:         Daily(votes, from, to),
	}, nil
}

// GlobalVerdictCounts returns the red/green tallies.
func (a *Aggregator) GlobalVerdictCounts(ctx context.Context) (VerdictCounts, error) {
	red, green, err := a.history.VerdictCounts(ctx)
	if err != nil {
		return VerdictCounts{}, fmt.Errorf("verdict counts: %w", err)
	}
	return VerdictCounts{Red: red, Green: green}, nil
}

// Demographics breaks down the buffered sessions.
func (a *Aggregator) Demographics(ctx context.Context) (Breakdown, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsLatency("demographics", float64(time.Since(start).Milliseconds())) }()

	if err := ctx.Err(); err != nil {
		return Breakdown{}, err
	}
	return Demographics(a.sessions.List()), nil
}

// window normalizes an admin range to whole UTC days.
func (a *Aggregator) window(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = truncDay(a.now()).Add(day)
	}
	if from.IsZero() {
		from = truncDay(to.Add(-1)).Add(-time.Duration(a.days-1) * day)
	}
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %s is not before to %s",
			ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if n := dayCount(from, to); n > int64(a.maxDays) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days exceeds the %d day maximum",
			ErrInvalidRange, n, a.maxDays)
	}
	return from, to, nil
}

func (a *Aggregator) participation() Participation {
	var p Participation
	if a.sessions == nil {
		return p
	}
	for _, s := range a.sessions.List() {
		p.Sessions++
		if s.Votes > 0 {
			p.ActiveSessions++
		}
		p.SessionVotes += s.Votes
		p.AIRequests += s.AIRequests
	}
	return p
}

func countVotes(tallies []model.VoteTally) VoteTotals {
	t := VoteTotals{
		ByCategory: map[string]int{},
		BySex:      map[string]int{},
		ByAge:      map[string]int{},
	}
	for _, tl := range tallies {
		t.Total += tl.Votes
		t.ByCategory[tl.Category.Label()] += tl.Votes
		t.BySex[tl.Sex.Label()] += tl.Votes
		t.ByAge[tl.Age.Label()] += tl.Votes
	}
	return t
}

// Daily counts votes per UTC day over [from, to), with every day present.
// Day offsets are computed on calendar dates, so the series stays aligned
// for any span; callers bound the span to keep the slice small.
func Daily(votes []model.Vote, from, to time.Time) []DayCount {
	first := truncDay(from)
	n := dayCount(from, to)
	if n <= 0 {
		return nil
	}
	out := make([]DayCount, n)
	for i := range out {
		out[i].Day = first.AddDate(0, 0, i).Format(dayLayout)
	}
	for _, v := range votes {
		at := v.At.UTC()
		if at.Before(from) || !at.Before(to) {
			continue
		}
		out[daysBetween(first, truncDay(at))].Votes++
	}
	return out
}

// dayCount is the number of UTC calendar days touched by [from, to).
func dayCount(from, to time.Time) int64 {
	first, last := truncDay(from), truncDay(to.Add(-1))
	if last.Before(first) {
		return 0
	}
	return daysBetween(first, last) + 1
}

// daysBetween counts whole days between two UTC midnights without going
// through time.Duration, which saturates after about 292 years.
func daysBetween(a, b time.Time) int64 {
	return (b.Unix() - a.Unix()) / secondsPerDay
}

func truncDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
