// Package store records agent trajectories and writes them as JSON.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
)

// Recording is every frame of one scenario run.
type Recording struct {
	Scenario  config.Scenario         `json:"scenario"`
	Frequency float64                 `json:"frequency"`
	Steps     int                     `json:"steps"`
	Times     []float64               `json:"times"`
	Frames    [][]frame.AgentSnapshot `json:"frames"`
	Metrics   map[string]float64      `json:"metrics,omitempty"`
}

func NewRecording(s config.Scenario, frequency float64) *Recording {
	return &Recording{Scenario: s, Frequency: frequency, Metrics: map[string]float64{}}
}

// Add appends one frame. The snapshot slice is copied.
func (r *Recording) Add(t float64, agents []frame.AgentSnapshot) {
	r.Times = append(r.Times, t)
	r.Frames = append(r.Frames, append([]frame.AgentSnapshot(nil), agents...))
	r.Steps = len(r.Times)
}

// Trajectory returns the positions of one agent across the recording.
func (r *Recording) Trajectory(index int) []frame.Vec2 {
	var out []frame.Vec2
	for _, agents := range r.Frames {
		if index >= 0 && index < len(agents) {
			out = append(out, agents[index].Position)
		}
	}
	return out
}

func WriteJSON(w io.Writer, r *Recording) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func ExportJSON(path string, r *Recording) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, r)
}

func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Recording
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recording %s: %w", path, err)
	}
	return &r, nil
}
