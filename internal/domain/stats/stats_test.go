package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeHistory struct {
	votes      []model.Vote
	els        []model.Element
	red, green int
	err        error
}

func (f *fakeHistory) Votes(_ context.Context, from, to time.Time) ([]model.Vote, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Vote
	for _, v := range f.votes {
		if (from.IsZero() || !v.At.Before(from)) && (to.IsZero() || v.At.Before(to)) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeHistory) VoteTallies(ctx context.Context, from, to time.Time) ([]model.VoteTally, error) {
	votes, err := f.Votes(ctx, from, to)
	if err != nil {
		return nil, err
	}
	cats := map[int64]model.Category{}
	for _, e := range f.els {
		cats[e.ID] = e.Category
	}
	// One tally per vote; the aggregator must sum them.
	out := make([]model.VoteTally, 0, len(votes))
	for _, v := range votes {
		out = append(out, model.VoteTally{Category: cats[v.WinnerID], Sex: v.Sex, Age: v.Age, Votes: 1})
	}
	return out, nil
}

func (f *fakeHistory) VerdictCounts(context.Context) (int, int, error) {
	return f.red, f.green, f.err
}

type fakeSessions []model.Session

func (f fakeSessions) List() []model.Session { return f }

func day(d, h int) time.Time {
	return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC)
}

func history() *fakeHistory {
	return &fakeHistory{
		els: []model.Element{
			model.NewElement(1, "a", model.CategoryAmour, 1000),
			model.NewElement(2, "b", model.CategoryTravail, 1000),
		},
		votes: []model.Vote{
			{ID: "v1", WinnerID: 1, LoserID: 2, Sex: model.SexHomme, At: day(1, 10)},
			{ID: "v2", WinnerID: 2, LoserID: 1, Age: model.Age18To24, At: day(1, 23)},
			{ID: "v3", WinnerID: 1, LoserID: 2, Sex: model.SexFemme, At: day(4, 0)},
			{ID: "v4", WinnerID: 9, LoserID: 1, At: day(4, 5)},
		},
		red:   3,
		green: 1,
	}
}

func TestAggregator_PublicStats(t *testing.T) {
	Convey("Given a vote history and buffered sessions", t, func() {
		ctx := context.Background()
		sessions := fakeSessions{
			{ID: "s1", Votes: 4, AIRequests: 1},
			{ID: "s2"},
		}
		agg := stats.New(history(), sessions)

		Convey("When public stats are requested", func() {
			pub, err := agg.PublicStats(ctx)

			Convey("Then votes are counted per winner category and axis", func() {
				So(err, ShouldBeNil)
				So(pub.Votes.Total, ShouldEqual, 4)
				So(pub.Votes.ByCategory["amour"], ShouldEqual, 2)
				So(pub.Votes.ByCategory["travail"], ShouldEqual, 1)
				So(pub.Votes.ByCategory[model.Unknown], ShouldEqual, 1)
				So(pub.Votes.BySex["homme"], ShouldEqual, 1)
				So(pub.Votes.BySex[model.Unknown], ShouldEqual, 2)
				So(pub.Votes.ByAge["18-24"], ShouldEqual, 1)
				So(pub.Participation, ShouldResemble, stats.Participation{
					Sessions: 2, ActiveSessions: 1, SessionVotes: 4, AIRequests: 1,
				})
			})
		})

		Convey("When the store fails", func() {
			h := history()
			h.err = errors.New("db down")
			_, err := stats.New(h, sessions).PublicStats(ctx)

			Convey("Then the whole aggregation fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the caller cancels", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := agg.Demographics(cctx)

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestAggregator_AdminStats(t *testing.T) {
	Convey("Given an admin range spanning days without votes", t, func() {
		ctx := context.Background()
		agg := stats.New(history(), fakeSessions{})

		Convey("When admin stats are requested", func() {
			adm, err := agg.AdminStats(ctx, day(1, 0), day(5, 0))

			Convey("Then every UTC day in range is present", func() {
				So(err, ShouldBeNil)
				So(adm.Daily, ShouldResemble, []stats.DayCount{
					{Day: "2026-03-01", Votes: 2},
					{Day: "2026-03-02", Votes: 0},
					{Day: "2026-03-03", Votes: 0},
					{Day: "2026-03-04", Votes: 2},
				})
				So(adm.Votes.Total, ShouldEqual, 4)
				So(adm.Verdicts, ShouldResemble, stats.VerdictCounts{Red: 3, Green: 1})
			})
		})

		Convey("When the range is narrower than the history", func() {
			adm, err := agg.AdminStats(ctx, day(2, 0), day(4, 3))

			Convey("Then only votes inside it count", func() {
				So(err, ShouldBeNil)
				So(adm.Votes.Total, ShouldEqual, 1)
				So(adm.Daily, ShouldHaveLength, 3)
				So(adm.Daily[2], ShouldResemble, stats.DayCount{Day: "2026-03-04", Votes: 1})
			})
		})

		Convey("When no range is given", func() {
			agg := stats.New(history(), fakeSessions{},
				stats.WithDays(7),
				stats.WithClock(func() time.Time { return day(4, 12) }),
			)
			adm, err := agg.AdminStats(ctx, time.Time{}, time.Time{})

			Convey("Then the default window ends today", func() {
				So(err, ShouldBeNil)
				So(adm.Daily, ShouldHaveLength, 7)
				So(adm.Daily[6].Day, ShouldEqual, "2026-03-04")
				So(adm.Daily[6].Votes, ShouldEqual, 2)
			})
		})

		Convey("When the range spans more days than allowed", func() {
			_, err := agg.AdminStats(ctx, time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC), day(5, 0))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, stats.ErrInvalidRange), ShouldBeTrue)
			})
		})

		Convey("When the span is exactly the configured maximum", func() {
			agg := stats.New(history(), fakeSessions{}, stats.WithMaxDays(4))
			_, okErr := agg.AdminStats(ctx, day(1, 0), day(5, 0))
			_, tooLong := agg.AdminStats(ctx, day(1, 0), day(5, 1))

			Convey("Then it is accepted and one more day is not", func() {
				So(okErr, ShouldBeNil)
				So(errors.Is(tooLong, stats.ErrInvalidRange), ShouldBeTrue)
			})
		})

		Convey("When the range is inverted", func() {
			_, err := agg.AdminStats(ctx, day(5, 0), day(1, 0))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, stats.ErrInvalidRange), ShouldBeTrue)
			})
		})
	})
}

func TestDemographics(t *testing.T) {
	Convey("Given sessions with partially declared axes", t, func() {
		sessions := []model.Session{
			{ID: "a", Sex: model.SexHomme, Age: model.Age18To24, Category: model.CategoryAmour, Duration: 60 * time.Second, Votes: 4, ChoicesBeforeQuit: 4},
			{ID: "b", Sex: model.SexHomme, Age: model.Age18To24, Category: model.CategoryAmour, Duration: 120 * time.Second, Votes: 2, ChoicesBeforeQuit: 2},
			{ID: "c", Sex: model.SexFemme, Duration: 30 * time.Second, Votes: 1},
			{ID: "d"},
		}

		Convey("When they are aggregated", func() {
			got := stats.Demographics(sessions)

			Convey("Then undeclared axes bucket as unknown and totals add up", func() {
				So(got.Total, ShouldEqual, 4)
				So(got.BySex, ShouldResemble, map[string]int{"homme": 2, "femme": 1, model.Unknown: 1})
				sum := 0
				for _, n := range got.BySex {
					sum += n
				}
				So(sum, ShouldEqual, got.Total)
				So(got.ByAge[model.Unknown], ShouldEqual, 2)
				So(got.ByCategory[model.Unknown], ShouldEqual, 2)
			})

			Convey("Then each bucket carries averages and abandonment", func() {
				So(got.Buckets, ShouldHaveLength, 3)
				var homme stats.Bucket
				for _, b := range got.Buckets {
					if b.Sex == "homme" {
						homme = b
					}
				}
				So(homme.Sessions, ShouldEqual, 2)
				So(homme.AvgDuration, ShouldAlmostEqual, 90.0)
				So(homme.AvgVotes, ShouldAlmostEqual, 3.0)
				So(homme.Abandonment, ShouldResemble, map[int]int{4: 1, 2: 1})
			})
		})

		Convey("When there are no sessions", func() {
			got := stats.Demographics(nil)

			Convey("Then the breakdown is empty", func() {
				So(got.Total, ShouldEqual, 0)
				So(got.Buckets, ShouldBeEmpty)
			})
		})
	})
}

func TestDaily(t *testing.T) {
	Convey("Given a vote centuries after the start of the range", t, func() {
		from := time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		votes := []model.Vote{{ID: "v1", WinnerID: 1, LoserID: 2, At: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}}

		Convey("When the daily series is built", func() {
			got := stats.Daily(votes, from, to)

			Convey("Then it runs to the last day and the vote lands on its own day", func() {
				So(got[0].Day, ShouldEqual, "1700-01-01")
				last := got[len(got)-1]
				So(last.Day, ShouldEqual, "2026-01-01")
				So(last.Votes, ShouldEqual, 1)
				total := 0
				for _, d := range got {
					total += d.Votes
				}
				So(total, ShouldEqual, 1)
			})
		})
	})
}
