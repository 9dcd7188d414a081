package crowd

import (
	"encoding/json"
	"math"
)

// Scenario generates the initial agents and walkable area of a simulation.
type Scenario interface {
	Generate() ([]Agent, *Navmesh)
}

type AntipodalCircle struct {
	AgentsCount int     `json:"agents_count"`
	Radius      float64 `json:"radius"`
}

// Generate spreads the agents evenly on the circle; each one walks to the
// diametrically opposite point.
func (s AntipodalCircle) Generate() ([]Agent, *Navmesh) {
	agents := make([]Agent, 0, s.AgentsCount)
	for i := 0; i < s.AgentsCount; i++ {
		angle := float64(i) * 2 * math.Pi / float64(s.AgentsCount)
		from := Vec2{X: s.Radius * math.Cos(angle), Y: s.Radius * math.Sin(angle)}
		agents = append(agents, NewAgent(from, scale(from, -1)))
	}
	half := s.Radius * 1.5
	return agents, NewNavmeshBuilder().AddQuad(Vec2{X: -half, Y: -half}, Vec2{X: half, Y: half}).Build()
}

type Corridor struct {
	AgentsPerSideCount int     `json:"agents_per_side_count"`
	Length             float64 `json:"length"`
	Width              float64 `json:"width"`
}

// Generate puts AgentsPerSideCount agents at each end of the corridor,
// each walking straight to the other end.
func (s Corridor) Generate() ([]Agent, *Navmesh) {
	hw, hl := s.Width/2, s.Length/2
	margin := s.Width / float64(s.AgentsPerSideCount+1)
	agents := make([]Agent, 0, 2*s.AgentsPerSideCount)
	for _, side := range []float64{-1, 1} {
		for i := 0; i < s.AgentsPerSideCount; i++ {
			y := -hw + float64(i+1)*margin
			agents = append(agents, NewAgent(Vec2{X: hl * side, Y: y}, Vec2{X: -hl * side, Y: y}))
		}
	}
	return agents, NewNavmeshBuilder().AddQuad(Vec2{X: -hl - margin, Y: -hw}, Vec2{X: hl + margin, Y: hw}).Build()
}

type Empty struct{}

func (Empty) Generate() ([]Agent, *Navmesh) {
	return nil, NewNavmeshBuilder().AddQuad(Vec2{}, Vec2{X: 1, Y: 1}).Build()
}

// ParseScenario decodes a tagged scenario. Missing fields take the defaults;
// anything unrecognized, including a negative count, yields Empty.
func ParseScenario(data string) Scenario {
	var tag struct {
		Scenario string `json:"scenario"`
	}
	if err := json.Unmarshal([]byte(data), &tag); err != nil {
		return Empty{}
	}
	switch tag.Scenario {
	case "AntipodalCircle":
		s := AntipodalCircle{AgentsCount: 2, Radius: 5}
		if err := json.Unmarshal([]byte(data), &s); err != nil || s.AgentsCount < 0 {
			return Empty{}
		}
		return s
	case "Corridor":
		s := Corridor{AgentsPerSideCount: 1, Length: 10, Width: 1}
		if err := json.Unmarshal([]byte(data), &s); err != nil || s.AgentsPerSideCount < 0 {
			return Empty{}
		}
		return s
	default:
		return Empty{}
	}
}
