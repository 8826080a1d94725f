package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/redflag/internal/adapters/repository"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

// Runs only against a real database: REDFLAG_TEST_DATABASE_URL=postgres://...
func openTestPostgres(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("REDFLAG_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("REDFLAG_TEST_DATABASE_URL not set")
	}
	s, err := repository.OpenPostgres(context.Background(), dsn, repository.WithMigrate(true))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	store := openTestPostgres(t)

	Convey("Given two fresh elements in postgres", t, func() {
		ctx := context.Background()
		engine := rating.New(rating.WithK(32))
		// Ids unique per run so reruns against the same database do not collide.
		base := time.Now().UnixNano() % 1_000_000_000_000
		a, b := base, base+1
		So(store.UpsertElements(ctx, []model.Element{
			model.NewElement(a, "arrive en retard", model.CategoryAmour, engine.Base()),
			model.NewElement(b, "ghoste après un rdv", model.CategoryAmour, engine.Base()),
		}), ShouldBeNil)

		Convey("When a vote with a declared sex is applied", func() {
			v := model.Vote{ID: uuid.NewString(), WinnerID: a, LoserID: b, Sex: model.SexFemme, At: time.Now().UTC()}
			res, err := store.ApplyVote(ctx, v, applyWith(engine, v))

			Convey("Then global and the sex segment move and nothing else does", func() {
				So(err, ShouldBeNil)
				So(res.Winner.Ratings[model.SegmentGlobal].Elo, ShouldAlmostEqual, 1016, 1e-9)
				So(res.Loser.Ratings[model.SegmentFemme].Elo, ShouldAlmostEqual, 984, 1e-9)

				w, err := store.Element(ctx, a)
				So(err, ShouldBeNil)
				So(w.Ratings[model.SegmentGlobal].Comparisons, ShouldEqual, 1)
				So(w.Ratings[model.SegmentHomme].Elo, ShouldEqual, 1000)
				So(w.Ratings[model.SegmentHomme].Comparisons, ShouldEqual, 0)
			})
		})

		Convey("When a vote id is replayed", func() {
			v := model.Vote{ID: uuid.NewString(), WinnerID: a, LoserID: b, Sex: model.SexHomme, At: time.Now().UTC()}
			_, err := store.ApplyVote(ctx, v, applyWith(engine, v))
			So(err, ShouldBeNil)
			_, err = store.ApplyVote(ctx, v, applyWith(engine, v))

			Convey("Then the primary key conflict is reported as a duplicate and rolled back", func() {
				So(errors.Is(err, repository.ErrDuplicateVote), ShouldBeTrue)
				w, err := store.Element(ctx, a)
				So(err, ShouldBeNil)
				So(w.Ratings[model.SegmentGlobal].Comparisons, ShouldEqual, 1)

				tallies, err := store.VoteTallies(ctx, v.At, v.At.Add(time.Second))
				So(err, ShouldBeNil)
				homme := 0
				for _, tl := range tallies {
					if tl.Sex == model.SexHomme && tl.Category == model.CategoryAmour {
						homme += tl.Votes
					}
				}
				So(homme, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When the loser does not exist", func() {
			v := model.Vote{ID: uuid.NewString(), WinnerID: a, LoserID: base + 2, At: time.Now().UTC()}
			_, err := store.ApplyVote(ctx, v, applyWith(engine, v))

			Convey("Then nothing is mutated", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				w, err := store.Element(ctx, a)
				So(err, ShouldBeNil)
				So(w.Ratings[model.SegmentGlobal].Elo, ShouldEqual, 1000)
			})
		})
	})
}
