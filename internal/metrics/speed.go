package metrics

import "github.com/cloderic/rusty-pedestrians/internal/frame"

// MeanSpeed averages AverageSpeed over the observed frames.
type MeanSpeed struct {
	sum     float64
	samples int
}

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{} }

func (m *MeanSpeed) Name() string { return "mean_speed" }

func (m *MeanSpeed) Observe(agents []frame.AgentSnapshot, t float64) {
	m.sum += AverageSpeed(agents)
	m.samples++
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanSpeed) Reset() {
	m.sum = 0
	m.samples = 0
}
