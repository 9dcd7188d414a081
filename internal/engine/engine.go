// Package engine defines the boundary to the pedestrian simulation engine.
//
// The engine owns the agents, the navigation mesh and the avoidance
// algorithm. This repository only drives it through [Engine].
package engine

import (
	"errors"
	"fmt"
)

// Engine is the capability surface the controller needs from a simulation.
type Engine interface {
	// LoadScenario replaces the simulation with the serialized scenario.
	LoadScenario(data string) error
	// Update advances the simulation by dt seconds.
	Update(dt float64) error
	// RenderAgents returns 7 values per agent:
	// posX, posY, dirX, dirY, velX, velY, radius.
	RenderAgents() ([]float64, error)
	// RenderDebugInfo returns the serialized debug payload of one agent.
	RenderDebugInfo(index int) (string, error)
	// RenderNavmesh returns the navigation mesh as OBJ text.
	RenderNavmesh() (string, error)
}

// Operation names used in EngineError.
const (
	OpLoadScenario    = "load_scenario"
	OpUpdate          = "update"
	OpRenderAgents    = "render_agents"
	OpRenderDebugInfo = "render_debug_info"
	OpRenderNavmesh   = "render_navmesh"
)

// ErrPanic marks an engine call that panicked instead of returning an error.
var ErrPanic = errors.New("engine: panic")

// EngineError wraps a failure of one engine call.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Guard runs fn and reports its error, or a recovered panic, as an
// *EngineError for op. A nil error from fn yields nil.
func Guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EngineError{Op: op, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &EngineError{Op: op, Err: ferr}
	}
	return nil
}
