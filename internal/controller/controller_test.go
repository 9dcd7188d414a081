package controller_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/controller"
	"github.com/cloderic/rusty-pedestrians/internal/crowd"
	"github.com/cloderic/rusty-pedestrians/internal/engine"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
	"github.com/cloderic/rusty-pedestrians/internal/loop"
	"github.com/cloderic/rusty-pedestrians/internal/observability"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var corridor = config.Scenario{Scenario: "Corridor", AgentsPerSideCount: 1, Length: 10, Width: 1}

type recorder struct {
	mu    sync.Mutex
	views []controller.View
}

func (r *recorder) publish(v controller.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recorder) last() controller.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// leakyScheduler hands out handles whose Stop does nothing, so stale tick
// callbacks can be fired by hand.
type leakyScheduler struct {
	fns []func()
}

type leakyHandle struct{}

func (leakyHandle) Stop() {}

func (s *leakyScheduler) Every(_ time.Duration, fn func()) loop.Handle {
	s.fns = append(s.fns, fn)
	return leakyHandle{}
}

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		eng    *fakeEngine
		manual *loop.Manual
		rec    *recorder
		ctrl   *controller.Controller
		tick   time.Duration
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newFakeEngine(2)
		manual = loop.NewManual()
		rec = &recorder{}
		tick = loop.Interval(controller.DefaultFrequency)

		metrics, err := observability.NewCollector(nil)
		Expect(err).NotTo(HaveOccurred())

		ctrl, err = controller.New(eng,
			controller.WithScheduler(manual),
			controller.WithMetrics(metrics),
			controller.WithPublisher(rec.publish),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctrl.Load(ctx, corridor)).To(Succeed())
	})

	AfterEach(func() {
		ctrl.Close()
	})

	Describe("New", func() {
		It("rejects a nil engine", func() {
			_, err := controller.New(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a frequency that is not positive and finite", func() {
			for _, f := range []float64{0, -60, math.NaN(), math.Inf(1)} {
				_, err := controller.New(eng, controller.WithFrequency(f))
				Expect(err).To(MatchError(controller.ErrFrequency), "frequency %v", f)
			}
		})

		It("starts paused with an empty view", func() {
			c, err := controller.New(eng, controller.WithScheduler(manual))
			Expect(err).NotTo(HaveOccurred())
			v := c.View()
			Expect(v.Paused).To(BeTrue())
			Expect(v.Agents).To(BeEmpty())
			Expect(v.LoadID).To(Equal(uuid.Nil))
		})
	})

	Describe("Load", func() {
		It("publishes the initial frame paused and not started", func() {
			v := rec.last()
			Expect(v.Agents).To(HaveLen(2))
			Expect(v.Paused).To(BeTrue())
			Expect(v.Started).To(BeFalse())
			Expect(v.Navmesh).To(ContainSubstring("f 1 2 3"))
			Expect(v.LoadID).NotTo(Equal(uuid.Nil))
			Expect(v.Scenario).To(Equal(corridor))
			Expect(v.Err).NotTo(HaveOccurred())
		})

		It("hands the serialized scenario to the engine", func() {
			want, err := corridor.Serialize()
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.scenario).To(Equal(want))
		})

		It("pauses a running loop before reloading", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			Expect(manual.Active()).To(Equal(1))

			Expect(ctrl.SetScenario(ctx, config.Scenario{Scenario: "Empty"})).To(Succeed())
			Expect(manual.Active()).To(Equal(0))

			before := eng.updateCount()
			manual.Advance(10 * tick)
			Expect(eng.updateCount()).To(Equal(before))
			Expect(ctrl.View().Paused).To(BeTrue())
			Expect(ctrl.View().Scenario.Scenario).To(Equal("Empty"))
		})

		It("assigns a fresh load id on every reload", func() {
			first := ctrl.View().LoadID
			Expect(ctrl.Restart(ctx)).To(Succeed())
			Expect(ctrl.View().LoadID).NotTo(Equal(first))
		})

		It("counts loads", func() {
			Expect(ctrl.Reset(ctx)).To(Succeed())
			Expect(testutil.ToFloat64(ctrl.Metrics().Loads)).To(Equal(2.0))
		})

		It("keeps the scenario when the engine rejects it so restart can retry", func() {
			eng.set(func(f *fakeEngine) { f.loadErr = errors.New("bad scenario") })
			err := ctrl.Load(ctx, config.Scenario{Scenario: "AntipodalCircle", AgentsCount: 3})

			var engErr *engine.EngineError
			Expect(errors.As(err, &engErr)).To(BeTrue())
			Expect(engErr.Op).To(Equal(engine.OpLoadScenario))
			Expect(rec.last().Err).To(MatchError(err))
			Expect(rec.last().Scenario.Scenario).To(Equal("AntipodalCircle"))

			eng.set(func(f *fakeEngine) { f.loadErr = nil })
			Expect(ctrl.Restart(ctx)).To(Succeed())
			Expect(ctrl.View().Scenario.AgentsCount).To(Equal(3))
			Expect(ctrl.View().Err).NotTo(HaveOccurred())
		})

		It("reports an engine panic as an error", func() {
			eng.set(func(f *fakeEngine) { f.panicOn = "load" })
			err := ctrl.Restart(ctx)
			Expect(err).To(MatchError(engine.ErrPanic))
			Expect(testutil.ToFloat64(ctrl.Metrics().EngineFailures.WithLabelValues(engine.OpLoadScenario))).To(Equal(1.0))
		})
	})

	Describe("TogglePlayPause", func() {
		It("owns exactly one tick source while running and none when paused", func() {
			Expect(ctrl.TogglePlayPause(ctx)).To(Succeed())
			Expect(manual.Active()).To(Equal(1))
			Expect(ctrl.View().Paused).To(BeFalse())
			Expect(testutil.ToFloat64(ctrl.Metrics().ActiveTickSource)).To(Equal(1.0))

			Expect(ctrl.TogglePlayPause(ctx)).To(Succeed())
			Expect(manual.Active()).To(Equal(0))
			Expect(ctrl.View().Paused).To(BeTrue())
			Expect(testutil.ToFloat64(ctrl.Metrics().ActiveTickSource)).To(Equal(0.0))
		})

		It("advances once per interval while running", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			manual.Advance(3 * tick)
			Expect(eng.updateCount()).To(Equal(3))
			Expect(ctrl.View().Started).To(BeTrue())
			Expect(testutil.ToFloat64(ctrl.Metrics().Ticks)).To(Equal(3.0))
			Expect(testutil.ToFloat64(ctrl.Metrics().Updates.WithLabelValues(observability.PathTimer))).To(Equal(3.0))
		})

		It("republishes the current frame on pause without advancing", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			manual.Advance(tick)
			published := rec.count()

			Expect(ctrl.Pause(ctx)).To(Succeed())
			Expect(rec.count()).To(Equal(published + 1))
			Expect(eng.updateCount()).To(Equal(1))

			manual.Advance(5 * tick)
			Expect(eng.updateCount()).To(Equal(1))
		})

		It("treats Play and Pause as idempotent", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			Expect(ctrl.Play(ctx)).To(Succeed())
			Expect(manual.Started()).To(Equal(1))
			Expect(ctrl.Pause(ctx)).To(Succeed())
			Expect(ctrl.Pause(ctx)).To(Succeed())
			Expect(manual.Active()).To(Equal(0))
		})

		It("drops ticks from a handle that is no longer active", func() {
			leaky := &leakyScheduler{}
			c, err := controller.New(eng, controller.WithScheduler(leaky))
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()
			Expect(c.Load(ctx, corridor)).To(Succeed())

			Expect(c.Play(ctx)).To(Succeed())
			Expect(c.Pause(ctx)).To(Succeed())
			Expect(c.Play(ctx)).To(Succeed())
			Expect(leaky.fns).To(HaveLen(2))

			before := eng.updateCount()
			leaky.fns[0]()
			Expect(eng.updateCount()).To(Equal(before))
			leaky.fns[1]()
			Expect(eng.updateCount()).To(Equal(before + 1))

			c.Close()
			leaky.fns[1]()
			Expect(eng.updateCount()).To(Equal(before + 1))
		})
	})

	Describe("SingleStep", func() {
		It("advances one tick of 1/frequency seconds while paused", func() {
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(eng.timesteps()).To(Equal([]float64{1.0 / 60}))
			Expect(ctrl.View().Started).To(BeTrue())
			Expect(ctrl.View().Paused).To(BeTrue())
			Expect(testutil.ToFloat64(ctrl.Metrics().Updates.WithLabelValues(observability.PathStep))).To(Equal(1.0))
		})

		It("is refused while running and leaves stepping to the timer", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			Expect(ctrl.SingleStep(ctx)).To(MatchError(controller.ErrRunning))
			Expect(eng.updateCount()).To(Equal(0))

			manual.Advance(tick)
			Expect(eng.updateCount()).To(Equal(1))
		})

		It("resets started on restart", func() {
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(ctrl.Restart(ctx)).To(Succeed())
			Expect(ctrl.View().Started).To(BeFalse())
		})
	})

	Describe("Selection", func() {
		It("publishes no debug info for an index past the last agent", func() {
			ctrl.Select(2)
			Expect(ctrl.SingleStep(ctx)).To(Succeed())

			v := ctrl.View()
			Expect(v.DebugInfo).To(BeNil())
			Expect(eng.debugCount()).To(Equal(0))
			i, ok := v.SelectedAgent()
			Expect(ok).To(BeTrue())
			Expect(i).To(Equal(2))
		})

		It("takes effect at the next publish", func() {
			ctrl.Select(1)
			Expect(ctrl.View().DebugInfo).To(BeNil())

			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			v := ctrl.View()
			Expect(v.DebugInfo).NotTo(BeNil())
			Expect(v.DebugInfo.Index).To(Equal(1))
			Expect(v.DebugInfo.Agent.Position.X).To(Equal(1.0))
		})

		It("stops fetching once cleared", func() {
			ctrl.Select(0)
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(eng.debugCount()).To(Equal(1))

			ctrl.ClearSelection()
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(eng.debugCount()).To(Equal(1))
			Expect(ctrl.View().DebugInfo).To(BeNil())
			Expect(ctrl.View().Selected).To(BeNil())
		})

		It("clears on a negative index", func() {
			ctrl.Select(1)
			ctrl.Select(-1)
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(ctrl.View().Selected).To(BeNil())
		})
	})

	Describe("Failures", func() {
		It("never publishes a frame with a partial agent", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			good := ctrl.View()

			eng.set(func(f *fakeEngine) { f.badBuffer = true })
			manual.Advance(tick)

			v := rec.last()
			Expect(v.Err).To(MatchError(frame.ErrStride))
			Expect(v.Agents).To(Equal(good.Agents))
			Expect(v.Frame).To(Equal(good.Frame))
			Expect(v.Paused).To(BeTrue())
			Expect(manual.Active()).To(Equal(0))
			Expect(testutil.ToFloat64(ctrl.Metrics().DecodeErrors)).To(Equal(1.0))
		})

		It("returns decode errors from a single step", func() {
			eng.set(func(f *fakeEngine) { f.badBuffer = true })
			err := ctrl.SingleStep(ctx)

			var decErr *frame.DecodeError
			Expect(errors.As(err, &decErr)).To(BeTrue())
			Expect(decErr.Length).To(Equal(15))
		})

		It("halts the loop and reports engine failures from the timer", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			eng.set(func(f *fakeEngine) { f.updateErr = errors.New("diverged") })
			manual.Advance(3 * tick)

			v := rec.last()
			var engErr *engine.EngineError
			Expect(errors.As(v.Err, &engErr)).To(BeTrue())
			Expect(engErr.Op).To(Equal(engine.OpUpdate))
			Expect(v.Paused).To(BeTrue())
			Expect(manual.Active()).To(Equal(0))
			Expect(testutil.ToFloat64(ctrl.Metrics().EngineFailures.WithLabelValues(engine.OpUpdate))).To(Equal(1.0))
		})

		It("publishes an empty view when a reload fails before its first frame", func() {
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
			Expect(rec.last().Agents).To(HaveLen(2))

			eng.set(func(f *fakeEngine) { f.navmeshErr = errors.New("no mesh") })
			circle := config.Scenario{Scenario: "AntipodalCircle", AgentsCount: 3, Radius: 2}
			err := ctrl.SetScenario(ctx, circle)

			var engErr *engine.EngineError
			Expect(errors.As(err, &engErr)).To(BeTrue())
			Expect(engErr.Op).To(Equal(engine.OpRenderNavmesh))

			v := rec.last()
			Expect(v.Err).To(MatchError(err))
			Expect(v.Scenario).To(Equal(circle))
			Expect(v.Agents).To(BeEmpty())
			Expect(v.DebugInfo).To(BeNil())
			Expect(v.Navmesh).To(BeEmpty())
			Expect(v.LoadID).To(Equal(uuid.Nil))
			Expect(v.Started).To(BeFalse())
			Expect(v.Time).To(BeZero())
		})

		It("publishes an empty view when the first frame of a load does not decode", func() {
			eng.set(func(f *fakeEngine) { f.badBuffer = true })
			Expect(ctrl.Restart(ctx)).To(MatchError(frame.ErrStride))

			v := rec.last()
			Expect(v.Agents).To(BeEmpty())
			Expect(v.Navmesh).To(BeEmpty())
			Expect(v.Scenario).To(Equal(corridor))
		})

		It("recovers a panicking update", func() {
			eng.set(func(f *fakeEngine) { f.panicOn = "update" })
			Expect(ctrl.SingleStep(ctx)).To(MatchError(engine.ErrPanic))
			Expect(ctrl.View().Paused).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("stops the loop and refuses further operations", func() {
			Expect(ctrl.Play(ctx)).To(Succeed())
			ctrl.Close()
			Expect(manual.Active()).To(Equal(0))

			Expect(ctrl.SingleStep(ctx)).To(MatchError(controller.ErrClosed))
			Expect(ctrl.TogglePlayPause(ctx)).To(MatchError(controller.ErrClosed))
			Expect(ctrl.Restart(ctx)).To(MatchError(controller.ErrClosed))
			ctrl.Close()
		})
	})
})

var _ = Describe("Controller with the reference engine", func() {
	var (
		ctx  context.Context
		ctrl *controller.Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		ctrl, err = controller.New(crowd.NewUniverse(), controller.WithScheduler(loop.NewManual()))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Close()
	})

	It("passes an explicit zero agent count through to the engine", func() {
		scenario := config.Scenario{Scenario: "AntipodalCircle", AgentsCount: 0, Radius: 6.5}
		Expect(ctrl.Load(ctx, scenario)).To(Succeed())
		Expect(ctrl.View().Agents).To(BeEmpty())
	})

	It("loads a negative count as the empty scenario", func() {
		scenario := config.Scenario{Scenario: "Corridor", AgentsPerSideCount: -1, Length: 10, Width: 1}
		Expect(ctrl.Load(ctx, scenario)).To(Succeed())
		Expect(ctrl.View().Agents).To(BeEmpty())
		Expect(ctrl.View().Err).NotTo(HaveOccurred())
	})

	It("places an antipodal circle and aims every agent across it", func() {
		scenario := config.Scenario{Scenario: "AntipodalCircle", AgentsCount: 5, Radius: 6.5}
		Expect(ctrl.Load(ctx, scenario)).To(Succeed())

		agents := ctrl.View().Agents
		Expect(agents).To(HaveLen(5))
		for i, a := range agents {
			Expect(a.Index).To(Equal(i))
			Expect(a.Position.Norm()).To(BeNumerically("~", 6.5, 1e-9))
			Expect(a.Direction.X).To(BeNumerically("~", -a.Position.X/6.5, 1e-9))
			Expect(a.Direction.Y).To(BeNumerically("~", -a.Position.Y/6.5, 1e-9))

			ctrl.Select(i)
			Expect(ctrl.Restart(ctx)).To(Succeed())
			target := ctrl.View().DebugInfo.Agent.Target
			Expect(target.X).To(BeNumerically("~", -a.Position.X, 1e-9))
			Expect(target.Y).To(BeNumerically("~", -a.Position.Y, 1e-9))
		}
	})

	It("restarts to an identical initial frame", func() {
		Expect(ctrl.Load(ctx, *config.GetPreset("Corridor - 6"))).To(Succeed())
		for i := 0; i < 30; i++ {
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
		}
		Expect(ctrl.Restart(ctx)).To(Succeed())
		first := ctrl.View()

		for i := 0; i < 30; i++ {
			Expect(ctrl.SingleStep(ctx)).To(Succeed())
		}
		Expect(ctrl.Restart(ctx)).To(Succeed())
		second := ctrl.View()

		Expect(second.Agents).To(Equal(first.Agents))
		Expect(second.Navmesh).To(Equal(first.Navmesh))
		Expect(second.Started).To(BeFalse())
	})

	It("moves agents only when time advances", func() {
		Expect(ctrl.Load(ctx, *config.GetPreset("Antipodal Circle - 9"))).To(Succeed())
		before := ctrl.View().Agents
		Expect(ctrl.SingleStep(ctx)).To(Succeed())
		after := ctrl.View().Agents
		for i := range before {
			moved := math.Hypot(after[i].Position.X-before[i].Position.X, after[i].Position.Y-before[i].Position.Y)
			Expect(moved).To(BeNumerically(">", 0))
		}
	})
})

var _ = Describe("Controller on the wall clock", func() {
	It("steps at 60 Hz without overlapping engine calls", func() {
		eng := newFakeEngine(3)
		ctrl, err := controller.New(eng)
		Expect(err).NotTo(HaveOccurred())
		defer ctrl.Close()
		Expect(ctrl.Load(context.Background(), corridor)).To(Succeed())

		Expect(ctrl.Play(context.Background())).To(Succeed())
		time.Sleep(600 * time.Millisecond)
		Expect(ctrl.Pause(context.Background())).To(Succeed())

		updates := eng.updateCount()
		Expect(updates).To(BeNumerically(">=", 24))
		Expect(updates).To(BeNumerically("<=", 37))
		for _, dt := range eng.timesteps() {
			Expect(dt).To(Equal(1.0 / 60))
		}
		Expect(eng.maxInFlight.Load()).To(Equal(int32(1)))

		settled := eng.updateCount()
		time.Sleep(100 * time.Millisecond)
		Expect(eng.updateCount()).To(Equal(settled))
	})
})
