package coverage_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/okian/circlefit/internal/domain/coverage"
	"github.com/okian/circlefit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var unit = model.FittedCircle{Center: model.Point{X: 100, Y: 100}, Radius: 50}

func arc(fromDeg, toDeg float64, n int) []model.Point {
	pts := make([]model.Point, n)
	for i := range pts {
		deg := fromDeg + (toDeg-fromDeg)*float64(i)/float64(n-1)
		a := deg * math.Pi / 180
		pts[i] = model.Point{X: unit.Center.X + unit.Radius*math.Cos(a), Y: unit.Center.Y + unit.Radius*math.Sin(a)}
	}
	return pts
}

func TestDegrees(t *testing.T) {
	Convey("Given a full loop sampled every 10 degrees", t, func() {
		pts := arc(0, 350, 36)

		Convey("Then coverage is 350 degrees and the loop is complete", func() {
			So(coverage.Degrees(pts, unit), ShouldAlmostEqual, 350, 1e-9)
			So(coverage.IsComplete(pts, unit, coverage.DefaultThresholdDegrees), ShouldBeTrue)
		})
	})

	Convey("Given a half circle", t, func() {
		pts := arc(0, 180, 19)

		Convey("Then coverage is 180 degrees and the stroke is incomplete", func() {
			So(coverage.Degrees(pts, unit), ShouldAlmostEqual, 180, 1e-9)
			So(coverage.IsComplete(pts, unit, coverage.DefaultThresholdDegrees), ShouldBeFalse)
		})
	})

	Convey("Given an arc that crosses the zero angle", t, func() {
		pts := arc(-60, 200, 53)

		Convey("Then the wraparound is handled", func() {
			So(coverage.Degrees(pts, unit), ShouldAlmostEqual, 260, 1e-9)
		})
	})

	Convey("Given points that keep revisiting one angle", t, func() {
		pts := make([]model.Point, 50)
		for i := range pts {
			pts[i] = model.Point{X: 100 + float64(i+1), Y: 100}
		}

		Convey("Then coverage is zero", func() {
			So(coverage.Degrees(pts, unit), ShouldEqual, 0)
			So(coverage.IsComplete(pts, unit, coverage.DefaultThresholdDegrees), ShouldBeFalse)
		})
	})

	Convey("Given duplicated points on a full loop", t, func() {
		base := arc(0, 350, 36)
		pts := append(append([]model.Point(nil), base...), base...)

		Convey("Then duplicates do not change the widest gap", func() {
			So(coverage.Degrees(pts, unit), ShouldAlmostEqual, coverage.Degrees(base, unit), 1e-9)
		})
	})

	Convey("Given a shuffled stroke", t, func() {
		pts := arc(10, 300, 40)
		want := coverage.Degrees(pts, unit)
		rng := rand.New(rand.NewPCG(1, 2))
		rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

		Convey("Then coverage is permutation invariant", func() {
			So(coverage.Degrees(pts, unit), ShouldEqual, want)
		})
	})

	Convey("Given no points", t, func() {
		So(coverage.Degrees(nil, unit), ShouldEqual, 0)
	})
}

func TestAngles(t *testing.T) {
	Convey("Given points in every quadrant", t, func() {
		pts := []model.Point{{X: 0, Y: -1}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}}
		angles := coverage.Angles(pts, model.Point{})

		Convey("Then angles are normalized and sorted", func() {
			So(angles[0], ShouldEqual, 0)
			So(angles[1], ShouldAlmostEqual, math.Pi/2, 1e-12)
			So(angles[2], ShouldAlmostEqual, math.Pi, 1e-12)
			So(angles[3], ShouldAlmostEqual, 3*math.Pi/2, 1e-12)
		})
	})

	Convey("Given a single angle", t, func() {
		So(coverage.MaxGap([]float64{1}), ShouldEqual, 2*math.Pi)
	})
}
