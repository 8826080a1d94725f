package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAxes(t *testing.T) {
	Convey("Given the wire values of each axis", t, func() {
		Convey("Empty values parse to the undeclared value", func() {
			sex, err := model.ParseSex("")
			So(err, ShouldBeNil)
			So(sex, ShouldEqual, model.SexUnknown)
			So(sex.Label(), ShouldEqual, model.Unknown)

			age, err := model.ParseAgeBracket("")
			So(err, ShouldBeNil)
			So(age.Label(), ShouldEqual, model.Unknown)

			cat, err := model.ParseCategory("")
			So(err, ShouldBeNil)
			So(cat, ShouldEqual, model.CategoryAll)
			So(cat.Label(), ShouldEqual, model.Unknown)
		})

		Convey("Known values round trip through text", func() {
			age, err := model.ParseAgeBracket("25-34")
			So(err, ShouldBeNil)
			b, _ := age.MarshalText()
			So(string(b), ShouldEqual, "25-34")

			var cat model.Category
			So(cat.UnmarshalText([]byte("travail")), ShouldBeNil)
			So(cat, ShouldEqual, model.CategoryTravail)
		})

		Convey("Unknown values are rejected with the axis sentinel", func() {
			_, err := model.ParseSex("x")
			So(errors.Is(err, model.ErrInvalidSex), ShouldBeTrue)
			_, err = model.ParseAgeBracket("99")
			So(errors.Is(err, model.ErrInvalidAge), ShouldBeTrue)
			_, err = model.ParseCategory("sport")
			So(errors.Is(err, model.ErrInvalidCategory), ShouldBeTrue)
			_, err = model.ParseVerdictKind("blue")
			So(errors.Is(err, model.ErrInvalidVerdict), ShouldBeTrue)
		})
	})
}

func TestSegments(t *testing.T) {
	Convey("Given the closed segment set", t, func() {
		Convey("Every segment name parses back to itself", func() {
			So(len(model.Segments()), ShouldEqual, model.SegmentCount)
			for _, s := range model.Segments() {
				got, err := model.ParseSegment(s.String())
				So(err, ShouldBeNil)
				So(got, ShouldEqual, s)
			}
		})

		Convey("Out of range values are invalid", func() {
			So(model.Segment(model.SegmentCount).Valid(), ShouldBeFalse)
			_, err := model.ParseSegment("global ")
			So(errors.Is(err, model.ErrInvalidSegment), ShouldBeTrue)
		})
	})
}

func TestVote(t *testing.T) {
	Convey("Given votes with different declared axes", t, func() {
		Convey("A vote without axes touches only the global segment", func() {
			v := model.Vote{WinnerID: 1, LoserID: 2}
			So(v.Validate(), ShouldBeNil)
			So(v.Segments(), ShouldResemble, []model.Segment{model.SegmentGlobal})
		})

		Convey("A vote with both axes touches three segments", func() {
			v := model.Vote{WinnerID: 1, LoserID: 2, Sex: model.SexFemme, Age: model.Age18To24}
			So(v.Segments(), ShouldResemble, []model.Segment{
				model.SegmentGlobal, model.SegmentFemme, model.SegmentAge18To24,
			})
		})

		Convey("A self duel is invalid", func() {
			v := model.Vote{WinnerID: 3, LoserID: 3}
			So(errors.Is(v.Validate(), model.ErrSelfDuel), ShouldBeTrue)
		})
	})
}

func TestSessionClone(t *testing.T) {
	Convey("Given a session with page views", t, func() {
		s := model.Session{
			ID:          "s1",
			PageViews:   []string{"/", "/duel"},
			GameEntries: []model.GameEntry{{Game: "duel", At: time.Unix(0, 0)}},
		}

		Convey("Mutating the clone leaves the original intact", func() {
			c := s.Clone()
			c.PageViews[0] = "/changed"
			c.GameEntries[0].Game = "verdict"
			So(s.PageViews[0], ShouldEqual, "/")
			So(s.GameEntries[0].Game, ShouldEqual, "duel")
		})
	})
}
