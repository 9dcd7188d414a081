package controller

import (
	"github.com/cloderic/rusty-pedestrians/internal/logging"
	"github.com/cloderic/rusty-pedestrians/internal/loop"
	"github.com/cloderic/rusty-pedestrians/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFrequency is the simulation rate in hertz when none is configured.
const DefaultFrequency = 60.0

// Option customises Controller construction.
type Option func(*Controller)

// WithScheduler replaces the wall-clock ticker, typically with a loop.Manual.
func WithScheduler(s loop.Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithFrequency sets the tick rate. Every update advances the engine by
// 1/frequency seconds.
func WithFrequency(hz float64) Option {
	return func(c *Controller) {
		c.freq = hz
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

func WithMetrics(m *observability.Collector) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// WithPublisher registers the function receiving every published view.
// It runs with the controller lock held and must not call back into the
// controller.
func WithPublisher(fn func(View)) Option {
	return func(c *Controller) {
		c.publish = fn
	}
}
