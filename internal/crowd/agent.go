package crowd

import "github.com/cloderic/rusty-pedestrians/internal/frame"

const (
	DefaultDesiredSpeed        = 2.1
	DefaultMaximumSpeed        = 3.0
	DefaultMaximumAcceleration = 3.0
	DefaultRadius              = 0.35
)

type Agent struct {
	Position            Vec2
	Velocity            Vec2
	Direction           Vec2
	Target              Vec2
	DesiredSpeed        float64
	MaximumSpeed        float64
	MaximumAcceleration float64
	Radius              float64
}

// NewAgent places an agent at position, heading toward target.
func NewAgent(position, target Vec2) Agent {
	return Agent{
		Position:            position,
		Direction:           normalize(sub(target, position), Vec2{X: 1}),
		Target:              target,
		DesiredSpeed:        DefaultDesiredSpeed,
		MaximumSpeed:        DefaultMaximumSpeed,
		MaximumAcceleration: DefaultMaximumAcceleration,
		Radius:              DefaultRadius,
	}
}

// step applies reach-target steering, then moves and turns the agent.
func (a *Agent) step(dt float64) {
	desired := capNorm(sub(a.Target, a.Position), a.DesiredSpeed)
	accel := capNorm(scale(sub(desired, a.Velocity), 1/dt), a.MaximumAcceleration)
	a.Velocity = capNorm(add(a.Velocity, scale(accel, dt)), a.MaximumSpeed)
	a.Position = add(a.Position, scale(a.Velocity, dt))
	a.Direction = normalize(a.Velocity, a.Direction)
}

func (a Agent) snapshot(index int) frame.AgentSnapshot {
	return frame.AgentSnapshot{
		Index:     index,
		Position:  a.Position,
		Direction: a.Direction,
		Velocity:  a.Velocity,
		Radius:    a.Radius,
	}
}

func (a Agent) detail() frame.AgentDetail {
	return frame.AgentDetail{
		Position:            a.Position,
		Velocity:            a.Velocity,
		Direction:           a.Direction,
		Target:              a.Target,
		DesiredSpeed:        a.DesiredSpeed,
		MaximumSpeed:        a.MaximumSpeed,
		MaximumAcceleration: a.MaximumAcceleration,
		Radius:              a.Radius,
	}
}
