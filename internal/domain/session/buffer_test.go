package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuffer_Upsert(t *testing.T) {
	Convey("Given an empty session buffer", t, func() {
		ctx := context.Background()
		t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		Convey("When the same session is flushed twice", func() {
			b := session.NewBuffer()
			first := b.Upsert(ctx, model.Session{ID: "s1", Duration: 30 * time.Second, FlushedAt: t0})
			second := b.Upsert(ctx, model.Session{ID: "s1", Duration: 90 * time.Second, FlushedAt: t0.Add(time.Minute)})

			Convey("Then one record holds the latest state", func() {
				So(first, ShouldEqual, session.Inserted)
				So(second, ShouldEqual, session.Replaced)
				list := b.List()
				So(list, ShouldHaveLength, 1)
				So(list[0].Duration, ShouldEqual, 90*time.Second)
			})
		})

		Convey("When an identical flush repeats", func() {
			b := session.NewBuffer()
			s := model.Session{ID: "s1", Votes: 3, FlushedAt: t0}
			b.Upsert(ctx, s)
			before := b.List()
			b.Upsert(ctx, s)

			Convey("Then the buffer is unchanged", func() {
				So(b.List(), ShouldResemble, before)
			})
		})

		Convey("When an older flush arrives late", func() {
			b := session.NewBuffer()
			b.Upsert(ctx, model.Session{ID: "s1", Votes: 9, FlushedAt: t0.Add(time.Minute)})
			out := b.Upsert(ctx, model.Session{ID: "s1", Votes: 2, FlushedAt: t0})

			Convey("Then it is ignored", func() {
				So(out, ShouldEqual, session.Stale)
				got, ok := b.Get("s1")
				So(ok, ShouldBeTrue)
				So(got.Votes, ShouldEqual, 9)
			})
		})

		Convey("When a replaced session is not the newest", func() {
			b := session.NewBuffer()
			for _, id := range []string{"a", "b", "c"} {
				b.Upsert(ctx, model.Session{ID: id, FlushedAt: t0})
			}
			b.Upsert(ctx, model.Session{ID: "a", Votes: 1, FlushedAt: t0})

			Convey("Then it keeps its position", func() {
				list := b.List()
				So(list[0].ID, ShouldEqual, "a")
				So(list[0].Votes, ShouldEqual, 1)
				So(list[2].ID, ShouldEqual, "c")
			})
		})

		Convey("When 501 distinct sessions are flushed", func() {
			b := session.NewBuffer()
			for i := 1; i <= 501; i++ {
				b.Upsert(ctx, model.Session{ID: fmt.Sprintf("s%d", i), FlushedAt: t0})
			}

			Convey("Then the first is evicted and 500 remain", func() {
				So(b.Len(), ShouldEqual, session.DefaultCapacity)
				_, ok := b.Get("s1")
				So(ok, ShouldBeFalse)
				list := b.List()
				So(list[0].ID, ShouldEqual, "s2")
				So(list[499].ID, ShouldEqual, "s501")
			})
		})

		Convey("When a session has no id", func() {
			b := session.NewBuffer()

			Convey("Then it is rejected", func() {
				So(b.Upsert(ctx, model.Session{}), ShouldEqual, session.Rejected)
				So(b.Len(), ShouldEqual, 0)
			})
		})

		Convey("When callers mutate a listed session", func() {
			b := session.NewBuffer()
			b.Upsert(ctx, model.Session{ID: "s1", PageViews: []string{"/"}, FlushedAt: t0})
			list := b.List()
			list[0].PageViews[0] = "/changed"

			Convey("Then the buffer copy is untouched", func() {
				got, _ := b.Get("s1")
				So(got.PageViews[0], ShouldEqual, "/")
			})
		})

		Convey("When flushes race", func() {
			b := session.NewBuffer(session.WithCapacity(50))
			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					b.Upsert(ctx, model.Session{ID: fmt.Sprintf("s%d", i%80), Votes: i, FlushedAt: t0})
				}(i)
			}
			wg.Wait()

			Convey("Then the bound and uniqueness hold", func() {
				list := b.List()
				So(len(list), ShouldEqual, 50)
				ids := map[string]bool{}
				for _, s := range list {
					So(ids[s.ID], ShouldBeFalse)
					ids[s.ID] = true
				}
			})
		})
	})
}
