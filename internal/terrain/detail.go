package terrain

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"
)

// DetailNoise is a world-space simplex layer added on top of the fractal
// heightfield. Sampling at world coordinates keeps it continuous across tiles.
// It is safe for concurrent use.
type DetailNoise struct {
	noise     opensimplex.Noise
	amplitude float64
	frequency float64
}

// NewDetailNoise returns a detail layer, or nil when amplitude is zero.
func NewDetailNoise(seed int64, amplitude, frequency float64) *DetailNoise {
	if amplitude == 0 || frequency == 0 {
		return nil
	}
	return &DetailNoise{
		noise:     opensimplex.New(seed),
		amplitude: amplitude,
		frequency: frequency,
	}
}

// At returns the elevation offset at a world position.
func (n *DetailNoise) At(world mgl64.Vec2) float64 {
	if n == nil {
		return 0
	}
	return n.amplitude * n.noise.Eval2(world.X()*n.frequency, world.Y()*n.frequency)
}
