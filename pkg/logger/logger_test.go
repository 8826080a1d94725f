package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithWriter(&buf)), ShouldBeNil)
		So(Sync(), ShouldBeNil)
		ctx := context.Background()

		Convey("When a named logger with fields logs", func() {
			Named("duel").With(String("session", "s1")).Info(ctx, "pair served", Int("played", 3))

			Convey("Then the record carries the group, the fields and the call site", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "pair served")
				group, ok := rec["duel"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(group["session"], ShouldEqual, "s1")
				So(group["played"], ShouldEqual, 3.0)
				So(group["source"], ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Error(ctx, "shown", Error(errors.New("boom")))

			Convey("Then only the error record is written", func() {
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				So(lines, ShouldHaveLength, 1)
				So(lines[0], ShouldContainSubstring, "boom")
			})
		})
	})

	Convey("Given an unknown format", t, func() {
		err := Init(WithFormat("xml"))

		Convey("Then Init fails", func() {
			So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
		})
	})

	Convey("Given the default text format", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		Get().Warn(context.Background(), "queue full", Duration("wait", 0), Bool("dropped", true))

		Convey("Then records are key=value text", func() {
			So(buf.String(), ShouldContainSubstring, "level=WARN")
			So(buf.String(), ShouldContainSubstring, "dropped=true")
		})
	})
}

func TestNopAndLevels(t *testing.T) {
	Convey("Given the nop logger", t, func() {
		l := Nop()

		Convey("Then every method is safe and discards", func() {
			l.Info(context.Background(), "discarded", String("k", "v"), Int64("n", 1), Float64("f", 1.5), Any("a", nil))
			l.Debug(context.Background(), "discarded")
			So(l.Named("child"), ShouldNotBeNil)
			So(l.With(String("k", "v")), ShouldNotBeNil)
		})
	})

	Convey("Given level names", t, func() {
		Convey("Then known names are accepted and unknown ones rejected", func() {
			for _, level := range []string{"debug", "info", "warn", "warning", "error", "", " INFO "} {
				So(SetLevelString(level), ShouldBeNil)
			}
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}
