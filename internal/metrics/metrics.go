// Package metrics summarizes crowd frames: how fast agents move and how
// close they get to each other.
package metrics

import (
	"math"

	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

// Metric accumulates one value over a sequence of frames.
type Metric interface {
	Name() string
	Observe(agents []frame.AgentSnapshot, t float64)
	Value() float64
	Reset()
}

// Standard returns the metrics reported by the CLI, in display order.
func Standard() []Metric {
	return []Metric{NewMeanSpeed(), NewOverlapFree(), NewMinClearance()}
}

// AverageSpeed is the mean velocity norm of one frame; zero for no agents.
func AverageSpeed(agents []frame.AgentSnapshot) float64 {
	if len(agents) == 0 {
		return 0
	}
	var sum float64
	for _, a := range agents {
		sum += a.Velocity.Norm()
	}
	return sum / float64(len(agents))
}

// clearance is the smallest edge to edge distance between two agents of
// one frame, negative when discs overlap. It is +Inf for fewer than two agents.
func clearance(agents []frame.AgentSnapshot) float64 {
	best := math.Inf(1)
	for i := range agents {
		for j := i + 1; j < len(agents); j++ {
			a, b := agents[i], agents[j]
			d := math.Hypot(a.Position.X-b.Position.X, a.Position.Y-b.Position.Y) - a.Radius - b.Radius
			best = math.Min(best, d)
		}
	}
	return best
}
