package crowd

import (
	"errors"
	"fmt"

	"github.com/cloderic/rusty-pedestrians/internal/engine"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

var (
	// ErrAgentIndex indicates a debug info request for an agent that does not exist.
	ErrAgentIndex = errors.New("crowd: agent index out of range")

	// ErrTimestep indicates a non-positive update step.
	ErrTimestep = errors.New("crowd: timestep must be positive")
)

// Universe holds one running simulation. It is not safe for concurrent use;
// the controller serializes every call.
type Universe struct {
	agents   []Agent
	navmesh  *Navmesh
	scenario Scenario
	time     float64
}

var _ engine.Engine = (*Universe)(nil)

// NewUniverse starts with the empty scenario loaded.
func NewUniverse() *Universe {
	u := &Universe{}
	u.load(Empty{})
	return u
}

func (u *Universe) LoadScenario(data string) error {
	u.load(ParseScenario(data))
	return nil
}

func (u *Universe) load(s Scenario) {
	u.scenario = s
	u.agents, u.navmesh = s.Generate()
	u.time = 0
}

func (u *Universe) Update(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: %f", ErrTimestep, dt)
	}
	for i := range u.agents {
		u.agents[i].step(dt)
	}
	u.time += dt
	return nil
}

func (u *Universe) RenderAgents() ([]float64, error) {
	snaps := make([]frame.AgentSnapshot, len(u.agents))
	for i, a := range u.agents {
		snaps[i] = a.snapshot(i)
	}
	return frame.Encode(snaps), nil
}

func (u *Universe) RenderDebugInfo(index int) (string, error) {
	if index < 0 || index >= len(u.agents) {
		return "", fmt.Errorf("%w: %d of %d", ErrAgentIndex, index, len(u.agents))
	}
	p := frame.DebugPayload{
		Agent:           u.agents[index].detail(),
		OrcaConstraints: []frame.HalfPlane{},
	}
	return p.Render()
}

func (u *Universe) RenderNavmesh() (string, error) {
	return u.navmesh.OBJ(), nil
}

// CountAgents reports the number of agents in the loaded scenario.
func (u *Universe) CountAgents() int { return len(u.agents) }

// Time reports the simulated seconds since the last load.
func (u *Universe) Time() float64 { return u.time }

// Scenario returns the loaded scenario.
func (u *Universe) Scenario() Scenario { return u.scenario }
