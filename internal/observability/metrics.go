// Package observability holds the Prometheus collector and tracing setup
// for the simulation controller. Nothing here opens a listener: metrics are
// gathered in-process from the registry the caller provides.
package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Update paths label values.
const (
	PathTimer = "timer"
	PathStep  = "step"
)

// Collector exposes controller metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Ticks            prometheus.Counter
	Updates          *prometheus.CounterVec
	Loads            prometheus.Counter
	DecodeErrors     prometheus.Counter
	EngineFailures   *prometheus.CounterVec
	ActiveTickSource prometheus.Gauge
	FrameAgents      prometheus.Gauge
	TickDuration     prometheus.Histogram
}

// NewCollector registers the controller metrics against reg. A nil reg
// gets a fresh private registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedsim_ticks_total",
			Help: "Timer ticks that advanced the simulation.",
		}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedsim_engine_updates_total",
			Help: "Engine update calls by trigger path.",
		}, []string{"path"}),
		Loads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedsim_loads_total",
			Help: "Scenario loads, including restarts.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pedsim_decode_errors_total",
			Help: "Agent buffers rejected for a stride mismatch.",
		}),
		EngineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedsim_engine_failures_total",
			Help: "Engine calls that returned an error or panicked.",
		}, []string{"op"}),
		ActiveTickSource: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pedsim_active_tick_sources",
			Help: "Live repeating tick handles owned by the controller (0 or 1).",
		}),
		FrameAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pedsim_frame_agents",
			Help: "Agents in the last published frame.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pedsim_tick_duration_seconds",
			Help:    "Wall time of one tick: update, decode and publish.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}

	var err error
	if c.Ticks, err = register(reg, c.Ticks); err != nil {
		return nil, err
	}
	if c.Updates, err = register(reg, c.Updates); err != nil {
		return nil, err
	}
	if c.Loads, err = register(reg, c.Loads); err != nil {
		return nil, err
	}
	if c.DecodeErrors, err = register(reg, c.DecodeErrors); err != nil {
		return nil, err
	}
	if c.EngineFailures, err = register(reg, c.EngineFailures); err != nil {
		return nil, err
	}
	if c.ActiveTickSource, err = register(reg, c.ActiveTickSource); err != nil {
		return nil, err
	}
	if c.FrameAgents, err = register(reg, c.FrameAgents); err != nil {
		return nil, err
	}
	if c.TickDuration, err = register(reg, c.TickDuration); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the gatherer associated with the collector's registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// register adopts an already registered collector with the same descriptor,
// so two controllers can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}
