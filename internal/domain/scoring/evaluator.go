package scoring

import (
	"fmt"

	"github.com/okian/circlefit/internal/domain/coverage"
	"github.com/okian/circlefit/internal/domain/fit"
	"github.com/okian/circlefit/internal/domain/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Evaluator runs count, fit, size, coverage and score checks in that order.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	policy Policy
	scorer Scorer
}

// NewEvaluator creates an evaluator. The resulting policy must validate.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}
	e.scorer = NewScorer(e.policy.DeviationSensitivity)
	return e, nil
}

// Policy returns the thresholds in effect.
func (e *Evaluator) Policy() Policy { return e.policy }

// Scorer returns the scorer derived from the policy.
func (e *Evaluator) Scorer() Scorer { return e.scorer }

// Evaluate scores a frozen point sequence. Strokes shorter than the policy
// minimum fail with fit.ErrInsufficientPoints; non-finite coordinates fail
// with fit.ErrInvalidPoint. Rejected verdicts carry score 0 but keep the
// fitted circle, deviations and coverage so callers can still draw them.
func (e *Evaluator) Evaluate(points []model.Point) (model.ScoreResult, error) {
	if len(points) < e.policy.MinPoints {
		return model.ScoreResult{}, fmt.Errorf("%w: got %d, need at least %d",
			fit.ErrInsufficientPoints, len(points), e.policy.MinPoints)
	}

	circle, err := fit.Kasa(points)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("fit circle: %w", err)
	}

	devs := Deviations(points, circle)
	mean, std := stat.MeanStdDev(devs, nil)
	res := model.ScoreResult{
		Circle:          circle,
		Deviations:      devs,
		MeanDeviation:   mean,
		StdDeviation:    std,
		MaxDeviation:    floats.Max(devs),
		CoverageDegrees: coverage.Degrees(points, circle),
		PointCount:      len(points),
	}

	switch {
	case circle.Radius < e.policy.MinRadius:
		res.Verdict = model.VerdictTooSmall
	case res.CoverageDegrees < e.policy.CoverageThresholdDegrees:
		res.Verdict = model.VerdictIncomplete
	default:
		res.Verdict = model.VerdictValid
		res.Score = e.scorer.FromMeanDeviation(mean)
	}
	return res, nil
}
