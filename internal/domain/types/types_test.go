package types_test

import (
	"testing"

	"github.com/okian/circlefit/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given two attempts by one player", t, func() {
		prev := types.Entry{PlayerID: "p1", Score: 80, MeanDeviation: 4}

		Convey("Then a higher score improves", func() {
			So(types.Entry{PlayerID: "p1", Score: 81, MeanDeviation: 9}.Improves(prev), ShouldBeTrue)
		})

		Convey("Then an equal score with lower deviation improves", func() {
			So(types.Entry{PlayerID: "p1", Score: 80, MeanDeviation: 3.9}.Improves(prev), ShouldBeTrue)
		})

		Convey("Then an identical attempt does not improve", func() {
			So(prev.Improves(prev), ShouldBeFalse)
			So(types.Entry{PlayerID: "p1", Score: 79, MeanDeviation: 0}.Improves(prev), ShouldBeFalse)
		})
	})

	Convey("Given entries from different players", t, func() {
		a := types.Entry{PlayerID: "a", Score: 90, MeanDeviation: 2}
		b := types.Entry{PlayerID: "b", Score: 90, MeanDeviation: 2}
		c := types.Entry{PlayerID: "c", Score: 90, MeanDeviation: 1}
		d := types.Entry{PlayerID: "d", Score: 95, MeanDeviation: 3}

		Convey("Then ordering is score desc, deviation asc, player asc", func() {
			So(d.Before(c), ShouldBeTrue)
			So(c.Before(a), ShouldBeTrue)
			So(a.Before(b), ShouldBeTrue)
			So(b.Before(a), ShouldBeFalse)
			So(a.Before(a), ShouldBeFalse)
		})
	})
}
