package metrics

import (
	"math"

	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

// OverlapFree is the fraction of frames in which no two agents overlap.
type OverlapFree struct {
	violations int
	samples    int
}

func NewOverlapFree() *OverlapFree { return &OverlapFree{} }

func (o *OverlapFree) Name() string { return "overlap_free" }

func (o *OverlapFree) Observe(agents []frame.AgentSnapshot, t float64) {
	o.samples++
	if clearance(agents) < 0 {
		o.violations++
	}
}

func (o *OverlapFree) Value() float64 {
	if o.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(o.violations)/float64(o.samples)
}

func (o *OverlapFree) Reset() {
	o.violations = 0
	o.samples = 0
}

// MinClearance is the smallest gap between two agents over all frames.
// It reads 0 until a frame with two agents has been observed.
type MinClearance struct {
	min float64
}

func NewMinClearance() *MinClearance { return &MinClearance{min: math.Inf(1)} }

func (m *MinClearance) Name() string { return "min_clearance" }

func (m *MinClearance) Observe(agents []frame.AgentSnapshot, t float64) {
	m.min = math.Min(m.min, clearance(agents))
}

func (m *MinClearance) Value() float64 {
	if math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinClearance) Reset() { m.min = math.Inf(1) }
