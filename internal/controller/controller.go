// Package controller drives an engine.Engine at a fixed cadence and turns
// its output into views for a host.
//
// Every operation and every tick runs under one lock, so engine calls never
// overlap and a tick can never interleave with a reload. At most one loop
// handle is live at a time; a tick from a handle that has since been
// replaced or stopped is dropped before it touches the engine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/engine"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
	"github.com/cloderic/rusty-pedestrians/internal/logging"
	"github.com/cloderic/rusty-pedestrians/internal/loop"
	"github.com/cloderic/rusty-pedestrians/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Controller struct {
	mu sync.Mutex

	eng     engine.Engine
	sched   loop.Scheduler
	freq    float64
	log     logging.Logger
	metrics *observability.Collector
	tracer  trace.Tracer
	publish func(View)

	paused   bool
	started  bool
	selected *int
	scenario config.Scenario
	loadID   uuid.UUID
	navmesh  string
	steps    int

	// handle is the live tick source, gen identifies it to its callback.
	handle loop.Handle
	gen    uint64

	view   View
	frames uint64
	closed bool
}

// New returns a paused controller for eng. Nothing is loaded until the
// first call to Load.
func New(eng engine.Engine, opts ...Option) (*Controller, error) {
	if eng == nil {
		return nil, errors.New("controller: nil engine")
	}
	c := &Controller{
		eng:    eng,
		freq:   DefaultFrequency,
		paused: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if !config.ValidFrequency(c.freq) {
		return nil, fmt.Errorf("%w: %v", ErrFrequency, c.freq)
	}
	if c.sched == nil {
		c.sched = loop.NewTicker()
	}
	if c.log == nil {
		c.log = logging.Noop()
	}
	if c.tracer == nil {
		c.tracer = observability.Tracer()
	}
	if c.metrics == nil {
		m, err := observability.NewCollector(nil)
		if err != nil {
			return nil, err
		}
		c.metrics = m
	}
	c.view = View{Paused: true}
	return c, nil
}

// Frequency reports the tick rate in hertz.
func (c *Controller) Frequency() float64 { return c.freq }

// Metrics returns the collector the controller records into.
func (c *Controller) Metrics() *observability.Collector { return c.metrics }

// Load pauses the loop, hands the scenario to the engine and publishes the
// initial frame. The scenario becomes current even when loading fails, so
// Restart can retry it.
func (c *Controller) Load(ctx context.Context, s config.Scenario) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.loadLocked(ctx, s)
}

// SetScenario switches to a new scenario. The loop is paused before the
// engine sees the new scenario.
func (c *Controller) SetScenario(ctx context.Context, s config.Scenario) error {
	return c.Load(ctx, s)
}

// Restart reloads the current scenario from its initial state.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.loadLocked(ctx, c.scenario)
}

// Reset is Restart under the name the scenario selector uses.
func (c *Controller) Reset(ctx context.Context) error {
	return c.Restart(ctx)
}

// TogglePlayPause starts the loop when paused and stops it when running.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.paused {
		return c.playLocked(ctx)
	}
	return c.pauseLocked(ctx)
}

// Play starts the loop; it is a no-op while running.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.paused {
		return nil
	}
	return c.playLocked(ctx)
}

// Pause stops the loop; it is a no-op while paused.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.paused {
		return nil
	}
	return c.pauseLocked(ctx)
}

// SingleStep advances one tick while paused. It fails with ErrRunning,
// without calling the engine, while the loop is playing.
func (c *Controller) SingleStep(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.paused {
		return ErrRunning
	}
	return c.stepLocked(ctx, observability.PathStep)
}

// Select marks an agent for debug info. It takes effect at the next
// publish; a negative index clears the selection.
func (c *Controller) Select(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		c.selected = nil
		return
	}
	c.selected = &index
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// View returns the last published view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Close stops the loop. Later operations fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopLocked()
	c.paused = true
	c.closed = true
}

func (c *Controller) loadLocked(ctx context.Context, s config.Scenario) error {
	ctx, span := c.tracer.Start(ctx, "controller.load", trace.WithAttributes(
		attribute.String("scenario", s.Scenario),
	))
	defer span.End()

	c.stopLocked()
	c.paused = true
	c.scenario = s
	c.clearViewLocked()

	data, err := s.Serialize()
	if err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}
	if err := engine.Guard(engine.OpLoadScenario, func() error { return c.eng.LoadScenario(data) }); err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}
	c.loadID = uuid.New()
	c.metrics.Loads.Inc()
	span.SetAttributes(attribute.String("load_id", c.loadID.String()))

	var navmesh string
	err = engine.Guard(engine.OpRenderNavmesh, func() (err error) {
		navmesh, err = c.eng.RenderNavmesh()
		return err
	})
	if err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}
	c.navmesh = navmesh

	c.log.Info(ctx, "scenario loaded",
		logging.String("scenario", s.Scenario),
		logging.String("load_id", c.loadID.String()),
	)
	if err := c.publishLocked(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Controller) playLocked(ctx context.Context) error {
	c.paused = false
	c.gen++
	gen := c.gen
	c.handle = c.sched.Every(loop.Interval(c.freq), func() { c.tick(gen) })
	c.metrics.ActiveTickSource.Set(1)
	c.log.Debug(ctx, "loop started", logging.Float("frequency", c.freq))
	return c.publishLocked(ctx)
}

// pauseLocked stops the loop and republishes the current frame without
// advancing time.
func (c *Controller) pauseLocked(ctx context.Context) error {
	c.stopLocked()
	c.paused = true
	c.log.Debug(ctx, "loop paused")
	return c.publishLocked(ctx)
}

func (c *Controller) stopLocked() {
	if c.handle == nil {
		return
	}
	c.handle.Stop()
	c.handle = nil
	c.gen++
	c.metrics.ActiveTickSource.Set(0)
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.handle == nil || gen != c.gen {
		return
	}
	start := time.Now()
	c.metrics.Ticks.Inc()
	_ = c.stepLocked(context.Background(), observability.PathTimer)
	c.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (c *Controller) stepLocked(ctx context.Context, path string) error {
	ctx, span := c.tracer.Start(ctx, "controller.step", trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	dt := 1 / c.freq
	if err := engine.Guard(engine.OpUpdate, func() error { return c.eng.Update(dt) }); err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}
	c.metrics.Updates.WithLabelValues(path).Inc()
	c.started = true
	c.steps++
	if err := c.publishLocked(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// publishLocked renders the agents and, when the selection points at one
// of them, its debug info. A frame that fails to decode is never published.
func (c *Controller) publishLocked(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "controller.publish")
	defer span.End()

	var buf []float64
	err := engine.Guard(engine.OpRenderAgents, func() (err error) {
		buf, err = c.eng.RenderAgents()
		return err
	})
	if err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}
	agents, err := frame.Decode(buf)
	if err != nil {
		span.RecordError(err)
		return c.failLocked(ctx, err)
	}

	var debug *frame.DebugPayload
	if c.selected != nil && *c.selected < len(agents) {
		index := *c.selected
		var data string
		err := engine.Guard(engine.OpRenderDebugInfo, func() (err error) {
			data, err = c.eng.RenderDebugInfo(index)
			return err
		})
		if err != nil {
			span.RecordError(err)
			return c.failLocked(ctx, err)
		}
		if debug, err = frame.ParseDebugInfo(index, data); err != nil {
			span.RecordError(err)
			return c.failLocked(ctx, err)
		}
	}

	c.frames++
	c.view = View{
		Agents:    agents,
		DebugInfo: debug,
		Navmesh:   c.navmesh,
		Started:   c.started,
		Paused:    c.paused,
		Selected:  c.selectedCopy(),
		Scenario:  c.scenario,
		LoadID:    c.loadID,
		Time:      float64(c.steps) / c.freq,
		Frame:     c.frames,
	}
	c.metrics.FrameAgents.Set(float64(len(agents)))
	span.SetAttributes(attribute.Int("agents", len(agents)))
	c.emit()
	return nil
}

// failLocked halts the loop and hands err to the host along with the last
// good frame.
func (c *Controller) failLocked(ctx context.Context, err error) error {
	var engErr *engine.EngineError
	var decErr *frame.DecodeError
	switch {
	case errors.As(err, &engErr):
		c.metrics.EngineFailures.WithLabelValues(engErr.Op).Inc()
	case errors.As(err, &decErr):
		c.metrics.DecodeErrors.Inc()
	}
	c.stopLocked()
	c.paused = true
	c.log.Error(ctx, "simulation halted", logging.Err(err))

	c.view.Paused = true
	c.view.Started = c.started
	c.view.Scenario = c.scenario
	c.view.Err = err
	c.emit()
	return err
}

// clearViewLocked drops everything the previous load published, so a load
// that fails before its first frame reports no agents rather than stale ones.
func (c *Controller) clearViewLocked() {
	c.started = false
	c.steps = 0
	c.navmesh = ""
	c.view.Agents = nil
	c.view.DebugInfo = nil
	c.view.Navmesh = ""
	c.view.LoadID = uuid.Nil
	c.view.Time = 0
}

func (c *Controller) emit() {
	if c.publish != nil {
		c.publish(c.view)
	}
}

func (c *Controller) selectedCopy() *int {
	if c.selected == nil {
		return nil
	}
	i := *c.selected
	return &i
}
