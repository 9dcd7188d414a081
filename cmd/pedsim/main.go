package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/controller"
	"github.com/cloderic/rusty-pedestrians/internal/crowd"
	"github.com/cloderic/rusty-pedestrians/internal/export"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
	"github.com/cloderic/rusty-pedestrians/internal/logging"
	"github.com/cloderic/rusty-pedestrians/internal/metrics"
	"github.com/cloderic/rusty-pedestrians/internal/observability"
	"github.com/cloderic/rusty-pedestrians/internal/store"
	"github.com/cloderic/rusty-pedestrians/internal/tui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	watchFile  string
	traceFile  string
	logLevel   string
	logFormat  string
	logFile    string
	frequency  float64
	duration   float64
	steps      int
	selectIdx  int
	outFile    string
	svgFile    string
)

// main registers the commands and runs the viewer when no subcommand is given.
func main() {
	rootCmd := &cobra.Command{
		Use:          "pedsim",
		Short:        "pedestrian crowd simulation viewer",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runViewer,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (yaml)")
	flags.StringVar(&watchFile, "watch", "", "scenario file (yaml) to load and reload on change")
	flags.StringVar(&traceFile, "trace", "", "write OpenTelemetry spans to this file")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&logFile, "log-file", "", "log file (the viewer discards logs without one)")
	flags.Float64Var(&frequency, "freq", config.DefaultFrequency, "simulation frequency in Hz")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "play a scenario headless on the wall clock",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHeadless,
	}
	runCmd.Flags().Float64Var(&duration, "time", 5.0, "wall-clock seconds to play")
	runCmd.Flags().IntVar(&selectIdx, "select", -1, "agent index to print debug info for")

	stepCmd := &cobra.Command{
		Use:   "step [preset]",
		Short: "single-step a scenario and print every frame as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSteps,
	}
	stepCmd.Flags().IntVar(&steps, "steps", 10, "number of single steps")
	stepCmd.Flags().IntVar(&selectIdx, "select", -1, "agent index to include debug info for")
	stepCmd.Flags().StringVar(&outFile, "out", "", "also write the trajectory recording to this JSON file")
	stepCmd.Flags().StringVar(&svgFile, "svg", "", "also draw the trajectories to this SVG file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenario presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPresets(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, stepCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command shares: resolved config, logger, metrics and
// the tracing shutdown hook.
type app struct {
	cfg      *config.Config
	scenario config.Scenario
	preset   string
	log      logging.Logger
	registry *prometheus.Registry
	metrics  *observability.Collector
	closers  []func() error
}

func setup(cmd *cobra.Command, args []string, logOut io.Writer) (*app, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("freq") {
		cfg.Frequency = frequency
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, preset: cfg.Preset}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f.Close)
		logOut = f
	}
	a.log = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})

	switch {
	case len(args) > 0:
		p := config.GetPreset(args[0])
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		a.scenario, a.preset = *p, args[0]
	case watchFile != "":
		s, err := config.LoadScenario(watchFile)
		if err != nil {
			return nil, err
		}
		a.scenario, a.preset = s, ""
	default:
		s, err := cfg.ResolveScenario()
		if err != nil {
			return nil, err
		}
		a.scenario = s
		if cfg.Scenario != nil {
			a.preset = ""
		}
	}

	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			return nil, err
		}
		shutdown, err := observability.InitTracing(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			return shutdown(context.Background())
		}, f.Close)
	}

	a.registry = prometheus.NewRegistry()
	collector, err := observability.NewCollector(a.registry)
	if err != nil {
		return nil, err
	}
	a.metrics = collector
	return a, nil
}

func (a *app) newController(opts ...controller.Option) (*controller.Controller, error) {
	base := []controller.Option{
		controller.WithFrequency(a.cfg.Frequency),
		controller.WithLogger(a.log),
		controller.WithMetrics(a.metrics),
		controller.WithTracer(observability.Tracer()),
	}
	return controller.New(crowd.NewUniverse(), append(base, opts...)...)
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn(context.Background(), "shutdown", logging.Err(err))
		}
	}
}

// watch reloads the scenario file into ctrl until ctx is done. after runs
// once per successful reload.
func (a *app) watch(ctx context.Context, ctrl *controller.Controller, after func(context.Context)) error {
	if watchFile == "" {
		return nil
	}
	w, err := config.NewWatcher(watchFile)
	if err != nil {
		return fmt.Errorf("watch %s: %w", watchFile, err)
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Changes():
				s, err := config.LoadScenario(watchFile)
				if err != nil {
					a.log.Warn(ctx, "scenario reload skipped", logging.String("path", watchFile), logging.Err(err))
					continue
				}
				if err := ctrl.SetScenario(ctx, s); err != nil {
					a.log.Error(ctx, "scenario reload failed", logging.Err(err))
					continue
				}
				a.log.Info(ctx, "scenario reloaded", logging.String("path", watchFile))
				if after != nil {
					after(ctx)
				}
			}
		}
	}()
	return nil
}

func runViewer(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args, io.Discard)
	if err != nil {
		return err
	}
	defer a.close()

	bridge := &tui.Bridge{}
	ctrl, err := a.newController(controller.WithPublisher(bridge.Publish))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	m := tui.New(ctrl, config.ListPresets(), a.preset)
	if a.preset == "" {
		m = m.WithScenario(a.scenario)
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.Attach(p)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := a.watch(ctx, ctrl, nil); err != nil {
		return err
	}

	_, err = p.Run()
	return err
}

func runHeadless(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	stats := newFrameStats()
	ctrl, err := a.newController(controller.WithPublisher(stats.observe))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := ctrl.Load(ctx, a.scenario); err != nil {
		return err
	}
	if selectIdx >= 0 {
		ctrl.Select(selectIdx)
	}
	if err := a.watch(ctx, ctrl, func(ctx context.Context) { _ = ctrl.Play(ctx) }); err != nil {
		return err
	}
	if err := ctrl.Play(ctx); err != nil {
		return err
	}

	select {
	case <-time.After(time.Duration(duration * float64(time.Second))):
	case <-ctx.Done():
	}
	if err := ctrl.Pause(context.Background()); err != nil && !errors.Is(err, controller.ErrClosed) {
		return err
	}

	v := ctrl.View()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  t=%.2fs  frames=%d\n\n", v.Scenario.Scenario, v.Time, v.Frame)
	if err := printAgents(out, v.Agents); err != nil {
		return err
	}
	if v.DebugInfo != nil {
		rendered, err := json.MarshalIndent(v.DebugInfo, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nagent %d debug info:\n%s\n", v.DebugInfo.Index, rendered)
	}
	fmt.Fprintln(out)
	if err := printFrameMetrics(out, stats.values()); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := printMetrics(out, a.registry); err != nil {
		return err
	}
	return v.Err
}

// frameStats feeds every published frame of the current load into the
// standard crowd metrics.
type frameStats struct {
	mu      sync.Mutex
	loadID  string
	tracked []metrics.Metric
}

func newFrameStats() *frameStats {
	return &frameStats{tracked: metrics.Standard()}
}

func (f *frameStats) observe(v controller.View) {
	if v.Err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id := v.LoadID.String(); id != f.loadID {
		f.loadID = id
		for _, m := range f.tracked {
			m.Reset()
		}
	}
	for _, m := range f.tracked {
		m.Observe(v.Agents, v.Time)
	}
}

func (f *frameStats) values() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.tracked))
	for _, m := range f.tracked {
		out[m.Name()] = m.Value()
	}
	return out
}

// stepFrame is one line of `pedsim step` output.
type stepFrame struct {
	Frame     uint64                `json:"frame"`
	Time      float64               `json:"time"`
	Agents    []frame.AgentSnapshot `json:"agents"`
	DebugInfo *frame.DebugPayload   `json:"debug_info,omitempty"`
}

func runSteps(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	ctrl, err := a.newController()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx := cmd.Context()
	if err := ctrl.Load(ctx, a.scenario); err != nil {
		return err
	}
	if selectIdx >= 0 {
		ctrl.Select(selectIdx)
	}

	rec := store.NewRecording(a.scenario, ctrl.Frequency())
	tracked := metrics.Standard()
	initial := ctrl.View()
	rec.Add(initial.Time, initial.Agents)
	for _, m := range tracked {
		m.Observe(initial.Agents, initial.Time)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for i := 0; i < steps; i++ {
		if err := ctrl.SingleStep(ctx); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		v := ctrl.View()
		rec.Add(v.Time, v.Agents)
		for _, m := range tracked {
			m.Observe(v.Agents, v.Time)
		}
		if err := enc.Encode(stepFrame{Frame: v.Frame, Time: v.Time, Agents: v.Agents, DebugInfo: v.DebugInfo}); err != nil {
			return err
		}
	}

	if svgFile != "" {
		if err := os.WriteFile(svgFile, []byte(export.RecordingToSVG(rec, 800, 600)), 0644); err != nil {
			return fmt.Errorf("failed to write svg: %w", err)
		}
		a.log.Info(ctx, "trajectories drawn", logging.String("path", svgFile))
	}
	if outFile == "" {
		return nil
	}
	for _, m := range tracked {
		rec.Metrics[m.Name()] = m.Value()
	}
	if err := store.ExportJSON(outFile, rec); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	a.log.Info(ctx, "recording written", logging.String("path", outFile), logging.Int("steps", rec.Steps))
	return nil
}

func printAgents(w io.Writer, agents []frame.AgentSnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tX\tY\tVX\tVY\tSPEED\tRADIUS")
	for _, a := range agents {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.2f\n",
			a.Index,
			a.Position.X, a.Position.Y,
			a.Velocity.X, a.Velocity.Y,
			a.Velocity.Norm(),
			a.Radius,
		)
	}
	return tw.Flush()
}

func printFrameMetrics(w io.Writer, values map[string]float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CROWD\tVALUE")
	for _, m := range metrics.Standard() {
		fmt.Fprintf(tw, "%s\t%.4f\n", m.Name(), values[m.Name()])
	}
	return tw.Flush()
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	samples, err := observability.Summarize(g)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%g\n", s.Name, s.Value)
	}
	return tw.Flush()
}

func printPresets(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRESET\tSCENARIO\tJSON")
	for _, name := range config.ListPresets() {
		s := config.GetPreset(name)
		data, err := s.Serialize()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, s.Scenario, data)
	}
	return tw.Flush()
}
