package frame

import "math"

// Stride is the number of values per agent in the engine's flat buffer.
const Stride = 7

// Vec2 is a planar vector as serialized by the engine.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// AgentSnapshot is the rendering-relevant state of one agent in one frame.
// Index is the ordinal within the frame, not a persistent identity.
type AgentSnapshot struct {
	Index     int     `json:"index"`
	Position  Vec2    `json:"position"`
	Direction Vec2    `json:"direction"`
	Velocity  Vec2    `json:"velocity"`
	Radius    float64 `json:"radius"`
}

// Decode partitions buf into consecutive groups of Stride values. It fails
// rather than truncating when the length is not a multiple of Stride.
func Decode(buf []float64) ([]AgentSnapshot, error) {
	if len(buf)%Stride != 0 {
		return nil, &DecodeError{Length: len(buf), Stride: Stride}
	}
	agents := make([]AgentSnapshot, len(buf)/Stride)
	for i := range agents {
		g := buf[i*Stride : (i+1)*Stride]
		agents[i] = AgentSnapshot{
			Index:     i,
			Position:  Vec2{g[0], g[1]},
			Direction: Vec2{g[2], g[3]},
			Velocity:  Vec2{g[4], g[5]},
			Radius:    g[6],
		}
	}
	return agents, nil
}

// Encode is the inverse of Decode. Index fields are ignored; slice order wins.
func Encode(agents []AgentSnapshot) []float64 {
	buf := make([]float64, 0, len(agents)*Stride)
	for _, a := range agents {
		buf = append(buf,
			a.Position.X, a.Position.Y,
			a.Direction.X, a.Direction.Y,
			a.Velocity.X, a.Velocity.Y,
			a.Radius,
		)
	}
	return buf
}
