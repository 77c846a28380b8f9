package render

// Default overlay geometry.
const (
	DefaultWidth          = 800
	DefaultHeight         = 600
	defaultStrokeWidth    = 4
	defaultRingWidth      = 3
	defaultDeviationScale = 20
	markerSize            = 6
)

type options struct {
	width, height  int
	strokeWidth    float32
	ringWidth      float32
	deviationScale float64
}

// Option configures Overlay.
type Option func(*options)

// WithSize sets the canvas size in pixels.
func WithSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithStrokeWidth sets the drawn stroke thickness.
func WithStrokeWidth(w float32) Option {
	return func(o *options) {
		if w > 0 {
			o.strokeWidth = w
		}
	}
}

// WithRingWidth sets the fitted circle thickness.
func WithRingWidth(w float32) Option {
	return func(o *options) {
		if w > 0 {
			o.ringWidth = w
		}
	}
}

// WithDeviationScale sets the deviation, in pixels, that maps to the
// "bad" end of the heat map. Typically 100 divided by the scoring
// sensitivity, i.e. the deviation that scores zero.
func WithDeviationScale(px float64) Option {
	return func(o *options) {
		if px > 0 {
			o.deviationScale = px
		}
	}
}
