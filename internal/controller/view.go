package controller

import (
	"errors"

	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
	"github.com/google/uuid"
)

var (
	// ErrRunning is returned by SingleStep while the loop is playing.
	ErrRunning = errors.New("controller: single step while running")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("controller: closed")

	// ErrFrequency rejects a tick rate that is not positive and finite.
	ErrFrequency = errors.New("controller: frequency must be positive and finite")
)

// View is what the controller publishes to its host after each frame.
// The slices are owned by the view; callers must treat them as read-only.
type View struct {
	Agents    []frame.AgentSnapshot
	DebugInfo *frame.DebugPayload
	Navmesh   string

	Started  bool
	Paused   bool
	Selected *int
	Scenario config.Scenario
	LoadID   uuid.UUID

	// Time is the simulated seconds since the last load.
	Time float64
	// Frame counts successful publishes since construction.
	Frame uint64
	// Err is the failure that forced the loop to pause, if any. A view
	// carrying Err repeats the last good agents of the current load. When a
	// load fails before its first frame, the view has the new Scenario, no
	// agents, no navmesh and a nil LoadID.
	Err error
}

// Running is the negation of Paused, for hosts that read better that way.
func (v View) Running() bool { return !v.Paused }

// SelectedAgent returns the selected index and whether one is set.
func (v View) SelectedAgent() (int, bool) {
	if v.Selected == nil {
		return 0, false
	}
	return *v.Selected, true
}
