package scoring

import (
	"fmt"

	"github.com/okian/circlefit/internal/domain/coverage"
	"github.com/okian/circlefit/internal/domain/fit"
)

// Default policy values.
const (
	DefaultMinPoints            = 10
	DefaultMinRadius            = 50.0
	DefaultDeviationSensitivity = 5.0
)

// Policy holds the tunable thresholds applied by the Evaluator.
type Policy struct {
	// MinPoints is the smallest stroke that will be fitted at all.
	MinPoints int `json:"min_points"`
	// CoverageThresholdDegrees is the angular span a closed loop must reach.
	CoverageThresholdDegrees float64 `json:"coverage_threshold_degrees"`
	// MinRadius rejects circles smaller than this many pixels.
	MinRadius float64 `json:"min_radius"`
	// DeviationSensitivity is the score lost per pixel of mean deviation.
	DeviationSensitivity float64 `json:"deviation_sensitivity"`
}

// DefaultPolicy returns the canonical thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinPoints:                DefaultMinPoints,
		CoverageThresholdDegrees: coverage.DefaultThresholdDegrees,
		MinRadius:                DefaultMinRadius,
		DeviationSensitivity:     DefaultDeviationSensitivity,
	}
}

// Validate reports the first out-of-range field.
func (p Policy) Validate() error {
	switch {
	case p.MinPoints < fit.MinPoints:
		return fmt.Errorf("%w: min_points must be at least %d, got %d", ErrInvalidPolicy, fit.MinPoints, p.MinPoints)
	case !(p.CoverageThresholdDegrees > 0 && p.CoverageThresholdDegrees <= 360):
		return fmt.Errorf("%w: coverage_threshold_degrees must be in (0, 360], got %g", ErrInvalidPolicy, p.CoverageThresholdDegrees)
	case !(p.MinRadius >= 0):
		return fmt.Errorf("%w: min_radius must be non-negative, got %g", ErrInvalidPolicy, p.MinRadius)
	case !(p.DeviationSensitivity > 0):
		return fmt.Errorf("%w: deviation_sensitivity must be positive, got %g", ErrInvalidPolicy, p.DeviationSensitivity)
	}
	return nil
}
