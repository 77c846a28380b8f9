package model

import "time"

// FittedCircle is the best-fit circle for a stroke.
type FittedCircle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
	// Degenerate is set when the points were (near) collinear and the
	// center is the centroid rather than a least-squares solution.
	Degenerate bool `json:"degenerate"`
}

// Verdict classifies an evaluated stroke.
type Verdict string

// Verdicts produced by the evaluator.
const (
	VerdictValid      Verdict = "valid"
	VerdictIncomplete Verdict = "incomplete"
	VerdictTooSmall   Verdict = "too_small"
)

// ScoreResult is produced once per evaluation and never mutated afterwards.
type ScoreResult struct {
	Score           int          `json:"score"`
	Verdict         Verdict      `json:"verdict"`
	Circle          FittedCircle `json:"circle"`
	Deviations      []float64    `json:"deviations"`
	MeanDeviation   float64      `json:"mean_deviation"`
	StdDeviation    float64      `json:"std_deviation"`
	MaxDeviation    float64      `json:"max_deviation"`
	CoverageDegrees float64      `json:"coverage_degrees"`
	PointCount      int          `json:"point_count"`
}

// Valid reports whether the result carries a meaningful score.
func (r ScoreResult) Valid() bool { return r.Verdict == VerdictValid }

// Submission is a stroke submitted for asynchronous, ranked scoring.
type Submission struct {
	ID         string    // unique id for idempotency
	PlayerID   string    // who drew it
	Points     []Point   // frozen stroke snapshot
	ReceivedAt time.Time // acceptance time
}
