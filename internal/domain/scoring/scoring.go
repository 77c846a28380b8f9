// Package scoring turns a fitted circle into a bounded roundness score and
// runs the full evaluation pipeline over a stroke.
package scoring

import (
	"math"

	"github.com/okian/circlefit/internal/domain/model"
)

const (
	maxScore = 100
	minScore = 0
)

// Deviations returns |dist(p, center) - radius| for every point, in input order.
func Deviations(points []model.Point, circle model.FittedCircle) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = math.Abs(p.Dist(circle.Center) - circle.Radius)
	}
	return out
}

// Scorer maps mean radial deviation to an integer score in [0, 100].
type Scorer struct {
	sensitivity float64
}

// NewScorer returns a scorer that loses sensitivity points per pixel of mean
// deviation. Non-positive values fall back to the default.
func NewScorer(sensitivity float64) Scorer {
	if !(sensitivity > 0) || math.IsInf(sensitivity, 0) {
		sensitivity = DefaultDeviationSensitivity
	}
	return Scorer{sensitivity: sensitivity}
}

// Sensitivity returns the per-pixel penalty.
func (s Scorer) Sensitivity() float64 { return s.sensitivity }

// Score computes the score of points against circle.
func (s Scorer) Score(points []model.Point, circle model.FittedCircle) int {
	if len(points) == 0 {
		return minScore
	}
	var sum float64
	for _, d := range Deviations(points, circle) {
		sum += d
	}
	return s.FromMeanDeviation(sum / float64(len(points)))
}

// FromMeanDeviation returns clamp(0, 100, round(100 - mean*sensitivity)).
// A NaN mean scores 0.
func (s Scorer) FromMeanDeviation(mean float64) int {
	if math.IsNaN(mean) {
		return minScore
	}
	raw := math.Round(maxScore - mean*s.sensitivity)
	return int(math.Max(minScore, math.Min(maxScore, raw)))
}
