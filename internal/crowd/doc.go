// Package crowd is an in-process reference implementation of engine.Engine.
//
// It generates the same scenarios as the production engine and moves agents
// with plain reach-target steering. It performs no collision avoidance, so
// the ORCA constraint list in its debug payloads is always empty. It exists
// so the viewer, the CLI and the controller tests can run without the
// production engine.
//
// Scenarios are JSON objects tagged by "scenario":
//
//	{"scenario": "AntipodalCircle", "agents_count": 9, "radius": 6}
//	{"scenario": "Corridor", "agents_per_side_count": 1, "length": 15, "width": 1.5}
//	{"scenario": "Empty"}
//
// Unknown or malformed input loads the empty scenario.
package crowd
