// Package fit computes best-fit circles for point sets.
package fit

import (
	"fmt"
	"math"

	"github.com/okian/circlefit/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// MinPoints is the smallest point set a circle can be fitted to.
const MinPoints = 3

// degenerateEpsilon bounds CE-D² relative to CE. Below it the normal
// equations are singular for practical purposes (collinear input).
const degenerateEpsilon = 1e-9

// Kasa fits a circle to points with the algebraic (Kasa) least-squares
// method. The center solves the 2x2 normal equations
//
//	C = nΣx² − (Σx)²,  D = nΣxy − ΣxΣy,  E = nΣy² − (Σy)²
//	G = ½(nΣx³ + nΣxy² − (Σx²+Σy²)Σx)
//	H = ½(nΣy³ + nΣx²y − (Σx²+Σy²)Σy)
//	center = ((GE−DH)/(CE−D²), (CH−DG)/(CE−D²))
//
// and the radius is the mean distance from the points to that center. When
// the system is degenerate the centroid is used instead and the result is
// flagged Degenerate. Point order does not matter. Coordinates large enough
// to overflow the moment sums fail with ErrInvalidPoint.
func Kasa(points []model.Point) (model.FittedCircle, error) {
	n := len(points)
	if n < MinPoints {
		return model.FittedCircle{}, fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientPoints, n, MinPoints)
	}

	var sumX, sumY, sumX2, sumY2, sumXY, sumX3, sumY3, sumX2Y, sumXY2 float64
	for i, p := range points {
		if !p.Finite() {
			return model.FittedCircle{}, fmt.Errorf("%w: index %d", ErrInvalidPoint, i)
		}
		x, y := p.X, p.Y
		sumX += x
		sumY += y
		sumX2 += x * x
		sumY2 += y * y
		sumXY += x * y
		sumX3 += x * x * x
		sumY3 += y * y * y
		sumX2Y += x * x * y
		sumXY2 += x * y * y
	}

	nf := float64(n)
	c := nf*sumX2 - sumX*sumX
	d := nf*sumXY - sumX*sumY
	e := nf*sumY2 - sumY*sumY
	g := 0.5 * (nf*sumX3 + nf*sumXY2 - (sumX2+sumY2)*sumX)
	h := 0.5 * (nf*sumY3 + nf*sumX2Y - (sumX2+sumY2)*sumY)
	den := c*e - d*d
	if !finite(c, d, e, g, h, den) {
		return model.FittedCircle{}, fmt.Errorf("%w: coordinates too large to fit", ErrInvalidPoint)
	}

	var circle model.FittedCircle
	if degenerate(c, e, den, nf*(sumX2+sumY2)) {
		circle.Center = Centroid(points)
		circle.Degenerate = true
	} else {
		circle.Center = model.Point{
			X: (g*e - d*h) / den,
			Y: (c*h - d*g) / den,
		}
	}
	circle.Radius = MeanDistance(points, circle.Center)
	if !finite(circle.Center.X, circle.Center.Y, circle.Radius) {
		return model.FittedCircle{}, fmt.Errorf("%w: coordinates too large to fit", ErrInvalidPoint)
	}
	return circle, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// degenerate reports whether the normal equations are too close to singular.
// C and E are n² times the coordinate variances and CE-D² is n⁴ var_x var_y
// (1-ρ²), so every test is made relative to the spread of the points.
// moment is n times the raw second moment; a spread that small next to it is
// cancellation noise (all points coincide).
func degenerate(c, e, den, moment float64) bool {
	scale := c + e
	if scale <= degenerateEpsilon*moment {
		return true
	}
	if c <= degenerateEpsilon*scale || e <= degenerateEpsilon*scale {
		return true
	}
	return den <= degenerateEpsilon*c*e
}

// Centroid returns the arithmetic mean of points.
func Centroid(points []model.Point) model.Point {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return model.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}

// MeanDistance returns the average distance from points to center.
func MeanDistance(points []model.Point, center model.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	dists := make([]float64, len(points))
	for i, p := range points {
		dists[i] = p.Dist(center)
	}
	return stat.Mean(dists, nil)
}
