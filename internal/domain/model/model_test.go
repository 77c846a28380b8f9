package model_test

import (
	"math"
	"testing"

	model "github.com/okian/circlefit/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestStroke(t *testing.T) {
	convey.Convey("Given an empty stroke", t, func() {
		s := model.NewStroke()

		convey.Convey("When points are appended", func() {
			ok := s.Append(model.Point{X: 1, Y: 2}, model.Point{X: 3, Y: 4})

			convey.Convey("Then they are kept in drawing order", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(s.Len(), convey.ShouldEqual, 2)
				convey.So(s.Snapshot()[1], convey.ShouldResemble, model.Point{X: 3, Y: 4})
			})
		})

		convey.Convey("When the stroke is frozen", func() {
			s.Append(model.Point{X: 1, Y: 1})
			s.Freeze()
			ok := s.Append(model.Point{X: 2, Y: 2})

			convey.Convey("Then further appends are refused", func() {
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(s.Frozen(), convey.ShouldBeTrue)
				convey.So(s.Len(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a snapshot is modified", func() {
			s.Append(model.Point{X: 5, Y: 5})
			snap := s.Snapshot()
			snap[0].X = 99

			convey.Convey("Then the stroke is unaffected", func() {
				convey.So(s.Snapshot()[0].X, convey.ShouldEqual, 5)
			})
		})
	})
}

func TestPoint(t *testing.T) {
	convey.Convey("Given points", t, func() {
		convey.Convey("Then distance is Euclidean", func() {
			convey.So(model.Point{X: 0, Y: 0}.Dist(model.Point{X: 3, Y: 4}), convey.ShouldEqual, 5)
		})

		convey.Convey("Then non-finite coordinates are detected", func() {
			convey.So(model.Point{X: 1, Y: 1}.Finite(), convey.ShouldBeTrue)
			convey.So(model.Point{X: math.NaN(), Y: 1}.Finite(), convey.ShouldBeFalse)
			convey.So(model.Point{X: 1, Y: math.Inf(-1)}.Finite(), convey.ShouldBeFalse)
		})
	})
}

func TestScoreResult(t *testing.T) {
	convey.Convey("Given score results", t, func() {
		convey.So(model.ScoreResult{Verdict: model.VerdictValid}.Valid(), convey.ShouldBeTrue)
		convey.So(model.ScoreResult{Verdict: model.VerdictIncomplete}.Valid(), convey.ShouldBeFalse)
		convey.So(model.ScoreResult{Verdict: model.VerdictTooSmall}.Valid(), convey.ShouldBeFalse)
	})
}
