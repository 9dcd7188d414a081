package frame

import (
	"encoding/json"
	"fmt"
)

// AgentDetail is the extended per-agent state included in a debug payload.
type AgentDetail struct {
	Position            Vec2    `json:"position"`
	Velocity            Vec2    `json:"velocity"`
	Direction           Vec2    `json:"direction"`
	Target              Vec2    `json:"target"`
	DesiredSpeed        float64 `json:"desired_speed"`
	MaximumSpeed        float64 `json:"maximum_speed"`
	MaximumAcceleration float64 `json:"maximum_acceleration"`
	Radius              float64 `json:"radius"`
}

// HalfPlane is one velocity constraint: the half plane left of Direction
// through Origin. It is serialized as a two element array.
type HalfPlane struct {
	Origin    Vec2
	Direction Vec2
}

func (h HalfPlane) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Vec2{h.Origin, h.Direction})
}

func (h *HalfPlane) UnmarshalJSON(data []byte) error {
	var pair []Vec2
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("half plane: expected [origin, direction], got %d elements", len(pair))
	}
	h.Origin, h.Direction = pair[0], pair[1]
	return nil
}

// DebugPayload is the debug view of exactly one agent.
// Constraint order only matters for drawing.
type DebugPayload struct {
	// Index is the agent the payload was requested for; the engine does
	// not echo it.
	Index           int         `json:"-"`
	Agent           AgentDetail `json:"agent"`
	OrcaConstraints []HalfPlane `json:"orca_constraints"`
}

// ParseDebugInfo decodes the engine's serialized debug info for agent index.
func ParseDebugInfo(index int, data string) (*DebugPayload, error) {
	var p DebugPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, &DebugInfoError{Index: index, Wrapped: err}
	}
	if p.OrcaConstraints == nil {
		p.OrcaConstraints = []HalfPlane{}
	}
	p.Index = index
	return &p, nil
}

// Render serializes p the way the engine does.
func (p *DebugPayload) Render() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
