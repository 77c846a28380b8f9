package strokegen

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/circlefit/internal/domain/model"
)

// Shape names a family of generated strokes.
type Shape string

// Generated shapes.
const (
	ShapeClean    Shape = "clean"    // full loop, sub-pixel jitter
	ShapeNoisy    Shape = "noisy"    // full loop, several pixels of jitter
	ShapeArc      Shape = "arc"      // open arc well short of a loop
	ShapeTiny     Shape = "tiny"     // full loop below the size floor
	ShapeScribble Shape = "scribble" // random walk
)

// Canvas the generated strokes live in.
const (
	canvasWidth  = 800.0
	canvasHeight = 600.0
)

// shapeWeights sets how often each shape is drawn, in percent.
var shapeWeights = []struct {
	shape  Shape
	weight int
}{
	{ShapeClean, 30},
	{ShapeNoisy, 40},
	{ShapeArc, 12},
	{ShapeTiny, 10},
	{ShapeScribble, 8},
}

// Generator produces deterministic strokes for a seed.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Players returns n player ids.
func Players(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("player-%04d-%s", i, uuid.NewString()[:8])
	}
	return ids
}

// Generate returns n strokes spread over players.
func (g *Generator) Generate(n int, players []string) []Stroke {
	out := make([]Stroke, n)
	for i := range out {
		shape := g.pickShape()
		out[i] = Stroke{
			SubmissionID: uuid.NewString(),
			PlayerID:     players[g.rng.IntN(len(players))],
			Shape:        shape,
			Expect:       Expected(shape),
			Points:       g.Shape(shape),
		}
	}
	return out
}

func (g *Generator) pickShape() Shape {
	r := g.rng.IntN(100)
	for _, w := range shapeWeights {
		if r < w.weight {
			return w.shape
		}
		r -= w.weight
	}
	return ShapeNoisy
}

// Expected returns the verdict shape should earn under the default policy.
// Scribbles can land anywhere and have none.
func Expected(shape Shape) model.Verdict {
	switch shape {
	case ShapeClean, ShapeNoisy:
		return model.VerdictValid
	case ShapeArc:
		return model.VerdictIncomplete
	case ShapeTiny:
		return model.VerdictTooSmall
	default:
		return ""
	}
}

// Shape draws one stroke of the given family.
func (g *Generator) Shape(shape Shape) []model.Point {
	switch shape {
	case ShapeClean:
		return g.loop(g.between(120, 250), 360+g.between(0, 20), 0.3, 72+g.rng.IntN(60))
	case ShapeNoisy:
		return g.loop(g.between(100, 250), 340+g.between(0, 40), g.between(2, 12), 60+g.rng.IntN(120))
	case ShapeArc:
		return g.loop(g.between(100, 250), g.between(90, 240), 1, 30+g.rng.IntN(40))
	case ShapeTiny:
		return g.loop(g.between(10, 35), 360, 0.2, 24+g.rng.IntN(24))
	default:
		return g.scribble(20 + g.rng.IntN(80))
	}
}

func (g *Generator) between(lo, hi float64) float64 { return lo + g.rng.Float64()*(hi-lo) }

// loop walks spanDeg degrees around a circle of radius r kept inside the
// canvas, pushing each point radially by up to jitter pixels.
func (g *Generator) loop(r, spanDeg, jitter float64, n int) []model.Point {
	margin := r + jitter + 5
	cx := g.between(margin, math.Max(margin, canvasWidth-margin))
	cy := g.between(margin, math.Max(margin, canvasHeight-margin))
	start := g.rng.Float64() * 2 * math.Pi
	dir := 1.0
	if g.rng.IntN(2) == 0 {
		dir = -1
	}
	span := spanDeg * math.Pi / 180
	pts := make([]model.Point, n)
	for i := range pts {
		a := start + dir*span*float64(i)/float64(n-1)
		rr := r + (g.rng.Float64()*2-1)*jitter
		pts[i] = model.Point{X: cx + rr*math.Cos(a), Y: cy + rr*math.Sin(a)}
	}
	return pts
}

func (g *Generator) scribble(n int) []model.Point {
	pts := make([]model.Point, n)
	p := model.Point{X: g.between(100, canvasWidth-100), Y: g.between(100, canvasHeight-100)}
	for i := range pts {
		p.X = math.Min(canvasWidth, math.Max(0, p.X+g.between(-25, 25)))
		p.Y = math.Min(canvasHeight, math.Max(0, p.Y+g.between(-25, 25)))
		pts[i] = p
	}
	return pts
}
