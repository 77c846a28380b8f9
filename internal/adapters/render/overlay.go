// Package render draws a stroke and its best-fit circle into a PNG overlay.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"

	"github.com/okian/circlefit/internal/domain/model"
)

// bezierK places cubic control points for a quarter circle.
const bezierK = 0.5522847498

var (
	background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	goodInk    = colorful.Color{R: 0.18, G: 0.62, B: 0.27}
	badInk     = colorful.Color{R: 0.84, G: 0.15, B: 0.24}
	validRing  = mustHex("#1b7f3b")
	rejectRing = mustHex("#c0392b")
	centerInk  = mustHex("#34495e")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("render: bad color %q: %v", s, err))
	}
	return c
}

// DeviationColor maps a radial deviation onto the green-to-red heat map.
// Deviations at or beyond scale are fully red.
func DeviationColor(dev, scale float64) color.Color {
	t := 0.0
	if scale > 0 && !math.IsNaN(dev) {
		t = math.Max(0, math.Min(1, dev/scale))
	}
	return goodInk.BlendLab(badInk, t).Clamped()
}

// RingColor returns the fitted-circle color for a verdict.
func RingColor(v model.Verdict) color.Color {
	if v == model.VerdictValid {
		return validRing
	}
	return rejectRing
}

// Overlay renders points over a white canvas, each segment colored by the
// deviation of its end point, with the fitted circle and its center drawn
// on top. A zero result draws only the stroke.
func Overlay(points []model.Point, res model.ScoreResult, opts ...Option) *image.NRGBA {
	o := options{
		width:          DefaultWidth,
		height:         DefaultHeight,
		strokeWidth:    defaultStrokeWidth,
		ringWidth:      defaultRingWidth,
		deviationScale: defaultDeviationScale,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &canvas{dst: imaging.New(o.width, o.height, background), z: &vector.Rasterizer{}}
	hw := o.strokeWidth / 2
	devAt := func(i int) float64 {
		if i < len(res.Deviations) {
			return res.Deviations[i]
		}
		return 0
	}

	for i, p := range points {
		ink := DeviationColor(devAt(i), o.deviationScale)
		if i > 0 {
			c.segment(points[i-1], p, hw, ink)
		}
		c.disc(p, hw, ink)
	}

	if res.Circle.Radius > 0 {
		c.ring(res.Circle.Center, float32(res.Circle.Radius), o.ringWidth/2, RingColor(res.Verdict))
		m := float64(markerSize)
		ctr := res.Circle.Center
		c.segment(model.Point{X: ctr.X - m, Y: ctr.Y}, model.Point{X: ctr.X + m, Y: ctr.Y}, 1, centerInk)
		c.segment(model.Point{X: ctr.X, Y: ctr.Y - m}, model.Point{X: ctr.X, Y: ctr.Y + m}, 1, centerInk)
	}
	return c.dst
}

// EncodePNG writes img as PNG, first shrinking it to fit a maxSide square
// when maxSide is positive and smaller than the image.
func EncodePNG(w io.Writer, img image.Image, maxSide int) error {
	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return nil
}

// canvas rasterizes each shape in a rasterizer sized to the shape's
// clipped bounding box.
type canvas struct {
	dst *image.NRGBA
	z   *vector.Rasterizer
}

// begin prepares the rasterizer for a shape covering [minX,maxX]x[minY,maxY]
// and returns the clipped target rectangle. ok is false when nothing is
// visible.
func (c *canvas) begin(minX, minY, maxX, maxY float32) (r image.Rectangle, ok bool) {
	r = image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	).Intersect(c.dst.Bounds())
	if r.Empty() {
		return r, false
	}
	c.z.Reset(r.Dx(), r.Dy())
	return r, true
}

func (c *canvas) fill(r image.Rectangle, ink color.Color) {
	c.z.Draw(c.dst, r, image.NewUniform(ink), image.Point{})
}

func (c *canvas) segment(a, b model.Point, hw float32, ink color.Color) {
	ax, ay, bx, by := float32(a.X), float32(a.Y), float32(b.X), float32(b.Y)
	dx, dy := bx-ax, by-ay
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw

	r, ok := c.begin(min(ax, bx)-hw, min(ay, by)-hw, max(ax, bx)+hw, max(ay, by)+hw)
	if !ok {
		return
	}
	ox, oy := float32(r.Min.X), float32(r.Min.Y)
	c.z.MoveTo(ax+nx-ox, ay+ny-oy)
	c.z.LineTo(bx+nx-ox, by+ny-oy)
	c.z.LineTo(bx-nx-ox, by-ny-oy)
	c.z.LineTo(ax-nx-ox, ay-ny-oy)
	c.z.ClosePath()
	c.fill(r, ink)
}

func (c *canvas) disc(p model.Point, radius float32, ink color.Color) {
	cx, cy := float32(p.X), float32(p.Y)
	r, ok := c.begin(cx-radius, cy-radius, cx+radius, cy+radius)
	if !ok {
		return
	}
	circlePath(c.z, cx-float32(r.Min.X), cy-float32(r.Min.Y), radius, false)
	c.fill(r, ink)
}

// ring draws an annulus of half-width hw around radius. The inner circle
// winds the other way so its interior cancels out.
func (c *canvas) ring(center model.Point, radius, hw float32, ink color.Color) {
	cx, cy := float32(center.X), float32(center.Y)
	outer := radius + hw
	r, ok := c.begin(cx-outer, cy-outer, cx+outer, cy+outer)
	if !ok {
		return
	}
	lx, ly := cx-float32(r.Min.X), cy-float32(r.Min.Y)
	circlePath(c.z, lx, ly, outer, false)
	if inner := radius - hw; inner > 0 {
		circlePath(c.z, lx, ly, inner, true)
	}
	c.fill(r, ink)
}

// circlePath adds a closed circle made of four cubic Bézier arcs.
func circlePath(z *vector.Rasterizer, cx, cy, radius float32, clockwise bool) {
	kr := float32(bezierK) * radius
	z.MoveTo(cx, cy-radius)
	if clockwise {
		z.CubeTo(cx-kr, cy-radius, cx-radius, cy-kr, cx-radius, cy)
		z.CubeTo(cx-radius, cy+kr, cx-kr, cy+radius, cx, cy+radius)
		z.CubeTo(cx+kr, cy+radius, cx+radius, cy+kr, cx+radius, cy)
		z.CubeTo(cx+radius, cy-kr, cx+kr, cy-radius, cx, cy-radius)
	} else {
		z.CubeTo(cx+kr, cy-radius, cx+radius, cy-kr, cx+radius, cy)
		z.CubeTo(cx+radius, cy+kr, cx+kr, cy+radius, cx, cy+radius)
		z.CubeTo(cx-kr, cy+radius, cx-radius, cy+kr, cx-radius, cy)
		z.CubeTo(cx-radius, cy-kr, cx-kr, cy-radius, cx, cy-radius)
	}
	z.ClosePath()
}
