package crowd

import (
	"math"

	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

type Vec2 = frame.Vec2

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

func add(a, b Vec2) Vec2           { return Vec2{X: a.X + b.X, Y: a.Y + b.Y} }
func sub(a, b Vec2) Vec2           { return Vec2{X: a.X - b.X, Y: a.Y - b.Y} }
func scale(a Vec2, f float64) Vec2 { return Vec2{X: a.X * f, Y: a.Y * f} }
func det(a, b Vec2) float64        { return a.X*b.Y - a.Y*b.X }

func approxEqual(a, b Vec2) bool {
	return math.Abs(a.X-b.X) <= 1e-9 && math.Abs(a.Y-b.Y) <= 1e-9
}

// normalize returns a unit vector along a, or fallback when a is null.
func normalize(a, fallback Vec2) Vec2 {
	n := a.Norm()
	if n < epsilon {
		return fallback
	}
	return scale(a, 1/n)
}

// capNorm shortens a to at most limit, keeping its direction.
func capNorm(a Vec2, limit float64) Vec2 {
	sq := a.X*a.X + a.Y*a.Y
	switch {
	case limit*limit >= sq:
		return a
	case sq > 0 && limit > 0:
		return scale(a, limit/math.Sqrt(sq))
	default:
		return Vec2{}
	}
}
