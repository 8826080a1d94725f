package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/redflag/internal/adapters/repository"
	service "github.com/okian/redflag/internal/app"
	"github.com/okian/redflag/internal/domain/duel"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func seed() []model.Element {
	return []model.Element{
		model.NewElement(1, "arrive en retard", model.CategoryAmour, 1000),
		model.NewElement(2, "ghoste après un rdv", model.CategoryAmour, 1000),
		model.NewElement(3, "vole tes frites", model.CategoryAmitie, 1000),
	}
}

func started(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithSeed(seed()), service.WithWorkerCount(2)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_ApplyVote(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started(service.WithElo(32, 1000))
		defer svc.Stop()

		Convey("When a vote without axes is applied", func() {
			out, err := svc.ApplyVote(ctx, model.Vote{WinnerID: 2, LoserID: 1})

			Convey("Then only the global segment moves by K/2", func() {
				So(err, ShouldBeNil)
				So(out.VoteID, ShouldNotBeEmpty)
				So(out.Winner.Ratings[model.SegmentGlobal].Elo, ShouldAlmostEqual, 1016.0, 1e-9)
				So(out.Loser.Ratings[model.SegmentGlobal].Elo, ShouldAlmostEqual, 984.0, 1e-9)
				So(out.Winner.Ratings[model.SegmentHomme].Elo, ShouldEqual, 1000.0)
				So(out.Loser.Ratings[model.SegmentFemme].Elo, ShouldEqual, 1000.0)
			})
		})

		Convey("When the same vote id is submitted twice", func() {
			v := model.Vote{ID: "decision-1", WinnerID: 2, LoserID: 1, Sex: model.SexHomme}
			_, err := svc.ApplyVote(ctx, v)
			So(err, ShouldBeNil)
			again, err := svc.ApplyVote(ctx, v)

			Convey("Then it is applied once", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				pub, err := svc.PublicStats(ctx)
				So(err, ShouldBeNil)
				So(pub.Votes.Total, ShouldEqual, 1)
			})
		})

		Convey("When a vote is a self duel", func() {
			_, err := svc.ApplyVote(ctx, model.Vote{WinnerID: 1, LoserID: 1})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrSelfDuel), ShouldBeTrue)
			})
		})

		Convey("When a vote names an unknown element", func() {
			_, err := svc.ApplyVote(ctx, model.Vote{ID: "retry-me", WinnerID: 1, LoserID: 42})

			Convey("Then it is not found and may be retried", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err := svc.ApplyVote(ctx, model.Vote{ID: "retry-me", WinnerID: 1, LoserID: 42})
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the caller cancels before the vote", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.ApplyVote(cctx, model.Vote{WinnerID: 1, LoserID: 2})

			Convey("Then the vote still completes", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

// gatedStore holds the first ApplyVote until released, then fails it.
type gatedStore struct {
	*repository.MemoryStore
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) ApplyVote(ctx context.Context, v model.Vote, apply repository.ApplyFunc) (repository.VoteResult, error) { //nolint:gocritic // votes are values
	if g.calls.Add(1) == 1 {
		g.entered <- struct{}{}
		<-g.release
		return repository.VoteResult{}, repository.ErrUnavailable
	}
	return g.MemoryStore.ApplyVote(ctx, v, apply)
}

func TestService_ApplyVoteRetries(t *testing.T) {
	Convey("Given a store whose first commit stalls and then fails", t, func() {
		ctx := context.Background()
		store := &gatedStore{
			MemoryStore: repository.NewMemoryStore(),
			entered:     make(chan struct{}, 1),
			release:     make(chan struct{}),
		}
		svc := started(service.WithStore(store))
		defer svc.Stop()
		v := model.Vote{ID: "flaky-1", WinnerID: 2, LoserID: 1}

		Convey("When the client retries while the first attempt is in flight", func() {
			firstErr := make(chan error, 1)
			go func() {
				_, err := svc.ApplyVote(ctx, v)
				firstErr <- err
			}()
			<-store.entered

			var (
				retryOut service.VoteOutcome
				retryErr error
				wg       sync.WaitGroup
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				retryOut, retryErr = svc.ApplyVote(ctx, v)
			}()
			time.Sleep(20 * time.Millisecond)
			close(store.release)
			err := <-firstErr
			wg.Wait()

			Convey("Then the retry is never acknowledged as a duplicate of the lost attempt", func() {
				So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
				So(retryErr != nil || !retryOut.Duplicate, ShouldBeTrue)

				_, err := svc.ApplyVote(ctx, v)
				So(err, ShouldBeNil)
				votes, err := store.Votes(ctx, time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(votes, ShouldHaveLength, 1)
				So(votes[0].ID, ShouldEqual, "flaky-1")
			})
		})
	})

	Convey("Given a service restarted over a store that kept its votes", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		first := started(service.WithStore(store))
		defer first.Stop()
		v := model.Vote{ID: "replayed-1", WinnerID: 2, LoserID: 1, Sex: model.SexFemme}
		applied, err := first.ApplyVote(ctx, v)
		So(err, ShouldBeNil)

		// A fresh service starts with an empty dedupe window.
		second := service.New(service.WithStore(store))

		Convey("When the same vote id is replayed", func() {
			out, err := second.ApplyVote(ctx, v)

			Convey("Then it is acknowledged as a duplicate and ratings move once", func() {
				So(err, ShouldBeNil)
				So(out.Duplicate, ShouldBeTrue)
				votes, err := store.Votes(ctx, time.Time{}, time.Time{})
				So(err, ShouldBeNil)
				So(votes, ShouldHaveLength, 1)
				winner, err := store.Element(ctx, 2)
				So(err, ShouldBeNil)
				So(winner.Ratings[model.SegmentGlobal].Elo, ShouldEqual, applied.Winner.Ratings[model.SegmentGlobal].Elo)
			})
		})
	})
}

func TestService_NextDuel(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started()
		defer svc.Stop()

		Convey("When the only amour pair was seen", func() {
			res, err := svc.NextDuel(ctx, "1-2", model.CategoryAmour)

			Convey("Then the session is exhausted", func() {
				So(err, ShouldBeNil)
				So(res.Exhausted, ShouldBeTrue)
				So(res.Played, ShouldEqual, 1)
			})
		})

		Convey("When nothing was seen", func() {
			res, err := svc.NextDuel(ctx, "", model.CategoryAll)

			Convey("Then a pair is returned with the updated encoding", func() {
				So(err, ShouldBeNil)
				So(res.Exhausted, ShouldBeFalse)
				So(res.Seen, ShouldEqual, duel.PairOf(res.A.ID, res.B.ID).String())
			})
		})

		Convey("When the encoding is malformed", func() {
			_, err := svc.NextDuel(ctx, "1-x", model.CategoryAll)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, duel.ErrMalformedSeen), ShouldBeTrue)
			})
		})
	})
}

func TestService_Flush(t *testing.T) {
	Convey("Given a service with an injected buffer", t, func() {
		ctx := context.Background()
		buf := session.NewBuffer()
		svc := started(service.WithBuffer(buf))

		Convey("When a session is flushed twice and the service stops", func() {
			t0 := time.Now()
			So(svc.Flush(ctx, model.Session{ID: "s1", Duration: 30 * time.Second, FlushedAt: t0}), ShouldBeTrue)
			So(svc.Flush(ctx, model.Session{ID: "s1", Duration: 90 * time.Second, FlushedAt: t0.Add(time.Second)}), ShouldBeTrue)
			So(svc.Flush(ctx, model.Session{}), ShouldBeFalse)
			svc.Stop()

			Convey("Then one record holds the latest duration", func() {
				list := buf.List()
				So(list, ShouldHaveLength, 1)
				So(list[0].Duration, ShouldEqual, 90*time.Second)
				So(svc.Sessions(), ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_ReadViews(t *testing.T) {
	Convey("Given a service with votes and verdicts", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
		svc := started(service.WithClock(func() time.Time { return now }), service.WithStatsDays(3))
		defer svc.Stop()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = svc.ApplyVote(ctx, model.Vote{ID: fmt.Sprintf("v%d", i), WinnerID: 1, LoserID: 2})
			}(i)
		}
		wg.Wait()
		_, err := svc.RecordVerdict(ctx, model.VerdictRed)
		So(err, ShouldBeNil)
		_, err = svc.RecordVerdict(ctx, model.VerdictGreen)
		So(err, ShouldBeNil)

		Convey("Then the ranking puts the winner first", func() {
			entries, err := svc.Ranking(ctx, model.SegmentGlobal, model.CategoryAll, 2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].ElementID, ShouldEqual, 1)
			So(entries[0].Comparisons, ShouldEqual, 20)
		})

		Convey("Then admin stats show today's votes", func() {
			adm, err := svc.AdminStats(ctx, time.Time{}, time.Time{})
			So(err, ShouldBeNil)
			So(adm.Daily, ShouldHaveLength, 3)
			So(adm.Daily[2].Votes, ShouldEqual, 20)
			So(adm.Verdicts.Red, ShouldEqual, 1)
		})

		Convey("Then verdict counts are tallied", func() {
			vc, err := svc.GlobalVerdictCounts(ctx)
			So(err, ShouldBeNil)
			So(vc.Red, ShouldEqual, 1)
			So(vc.Green, ShouldEqual, 1)
		})

		Convey("Then an invalid verdict is rejected", func() {
			_, err := svc.RecordVerdict(ctx, model.VerdictKind(9))
			So(errors.Is(err, model.ErrInvalidVerdict), ShouldBeTrue)
		})

		Convey("Then service stats report the catalog", func() {
			st := svc.GetStats()
			So(st["started"], ShouldEqual, true)
			So(st["totalElements"], ShouldEqual, 3)
		})
	})
}
