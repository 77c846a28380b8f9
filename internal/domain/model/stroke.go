// Package model contains domain models passed between layers.
package model

import "math"

// Point is a sample on the drawing surface. Origin is top-left, units are
// surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Stroke is an append-only sequence of points in drawing order.
// The zero value is an empty, unfrozen stroke.
type Stroke struct {
	points []Point
	frozen bool
}

// NewStroke returns a stroke pre-populated with pts (copied).
func NewStroke(pts ...Point) *Stroke {
	s := &Stroke{points: make([]Point, 0, len(pts))}
	s.points = append(s.points, pts...)
	return s
}

// Append adds points to the end of the stroke. It reports false, and
// appends nothing, once the stroke is frozen.
func (s *Stroke) Append(pts ...Point) bool {
	if s.frozen {
		return false
	}
	s.points = append(s.points, pts...)
	return true
}

// Freeze stops further appends.
func (s *Stroke) Freeze() { s.frozen = true }

// Frozen reports whether the stroke accepts more points.
func (s *Stroke) Frozen() bool { return s.frozen }

// Len returns the number of recorded points.
func (s *Stroke) Len() int { return len(s.points) }

// Snapshot returns a copy of the recorded points. Computations receive
// snapshots so the capture side keeps exclusive ownership of the buffer.
func (s *Stroke) Snapshot() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}
