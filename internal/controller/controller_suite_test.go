package controller_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cloderic/rusty-pedestrians/internal/frame"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestController(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controller Suite")
}

// fakeEngine serves a fixed set of agents and counts every call.
type fakeEngine struct {
	mu sync.Mutex

	agents   []float64
	scenario string

	loads, updates, renders, debugs, navmeshes int
	dts                                        []float64

	updateErr  error
	loadErr    error
	navmeshErr error
	panicOn    string
	badBuffer bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeEngine(n int) *fakeEngine {
	agents := make([]frame.AgentSnapshot, n)
	for i := range agents {
		agents[i] = frame.AgentSnapshot{
			Position:  frame.Vec2{X: float64(i)},
			Direction: frame.Vec2{X: 1},
			Radius:    0.35,
		}
	}
	return &fakeEngine{agents: frame.Encode(agents)}
}

func (f *fakeEngine) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	return func() {
		f.mu.Unlock()
		f.inFlight.Add(-1)
	}
}

func (f *fakeEngine) LoadScenario(data string) error {
	defer f.enter()()
	if f.panicOn == "load" {
		panic("load exploded")
	}
	f.loads++
	f.scenario = data
	return f.loadErr
}

func (f *fakeEngine) Update(dt float64) error {
	defer f.enter()()
	if f.panicOn == "update" {
		panic("update exploded")
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.dts = append(f.dts, dt)
	return nil
}

func (f *fakeEngine) RenderAgents() ([]float64, error) {
	defer f.enter()()
	f.renders++
	out := append([]float64(nil), f.agents...)
	if f.badBuffer {
		out = append(out, 1)
	}
	return out, nil
}

func (f *fakeEngine) RenderDebugInfo(index int) (string, error) {
	defer f.enter()()
	f.debugs++
	return fmt.Sprintf(`{"agent":{"position":{"x":%d,"y":0},"radius":0.35},"orca_constraints":[]}`, index), nil
}

func (f *fakeEngine) RenderNavmesh() (string, error) {
	defer f.enter()()
	f.navmeshes++
	if f.navmeshErr != nil {
		return "", f.navmeshErr
	}
	return "v 0.000 0.000 0.0\nv 1.000 0.000 0.0\nv 1.000 1.000 0.0\nf 1 2 3\n", nil
}

func (f *fakeEngine) counts() (loads, updates, renders, debugs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.updates, f.renders, f.debugs
}

func (f *fakeEngine) updateCount() int {
	_, u, _, _ := f.counts()
	return u
}

func (f *fakeEngine) debugCount() int {
	_, _, _, d := f.counts()
	return d
}

func (f *fakeEngine) timesteps() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.dts...)
}

func (f *fakeEngine) set(fn func(f *fakeEngine)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
