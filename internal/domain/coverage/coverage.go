// Package coverage measures how far a stroke wraps around a circle.
package coverage

import (
	"math"
	"slices"

	"github.com/okian/circlefit/internal/domain/model"
)

const fullTurn = 2 * math.Pi

// DefaultThresholdDegrees is the canonical coverage a stroke needs to count
// as a closed loop.
const DefaultThresholdDegrees = 300.0

// Angles returns the polar angle of every point around center, normalized
// to [0, 2π) and sorted ascending.
func Angles(points []model.Point, center model.Point) []float64 {
	angles := make([]float64, len(points))
	for i, p := range points {
		a := math.Atan2(p.Y-center.Y, p.X-center.X)
		if a < 0 {
			a += fullTurn
		}
		// -tiny + 2π rounds to exactly 2π.
		if a >= fullTurn {
			a = 0
		}
		angles[i] = a
	}
	slices.Sort(angles)
	return angles
}

// MaxGap returns the widest angular gap between consecutive sorted angles,
// including the wraparound gap 2π − (last − first). An empty input has a
// gap of a full turn.
func MaxGap(sorted []float64) float64 {
	if len(sorted) == 0 {
		return fullTurn
	}
	maxGap := fullTurn - (sorted[len(sorted)-1] - sorted[0])
	for i := 1; i < len(sorted); i++ {
		if gap := sorted[i] - sorted[i-1]; gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

// Degrees returns the angular span, in [0, 360], that points sweep around
// the circle's center: a full turn minus the widest gap.
func Degrees(points []model.Point, circle model.FittedCircle) float64 {
	gap := MaxGap(Angles(points, circle.Center))
	deg := 360 - gap*180/math.Pi
	return math.Max(0, math.Min(360, deg))
}

// IsComplete reports whether points cover at least thresholdDegrees.
func IsComplete(points []model.Point, circle model.FittedCircle, thresholdDegrees float64) bool {
	return Degrees(points, circle) >= thresholdDegrees
}
