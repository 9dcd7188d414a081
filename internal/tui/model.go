// Package tui is a terminal viewer for the simulation controller.
//
// The model never calls the controller from Update: every operation runs as
// a tea.Cmd, and frames come back as FrameMsg through a Bridge. This keeps
// the controller's publisher from blocking on a busy event loop.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloderic/rusty-pedestrians/internal/config"
	"github.com/cloderic/rusty-pedestrians/internal/controller"
	"github.com/cloderic/rusty-pedestrians/internal/frame"
	"github.com/cloderic/rusty-pedestrians/internal/metrics"
	"github.com/google/uuid"
	"github.com/guptarohit/asciigraph"
)

const (
	canvasWidth     = 60
	canvasHeight    = 22
	historyCapacity = 240
)

// Controls is the part of the controller the viewer drives.
type Controls interface {
	TogglePlayPause(ctx context.Context) error
	SingleStep(ctx context.Context) error
	Restart(ctx context.Context) error
	SetScenario(ctx context.Context, s config.Scenario) error
	Select(index int)
	ClearSelection()
}

// FrameMsg carries a published controller view into the program.
type FrameMsg controller.View

type errMsg struct{ err error }

// Bridge forwards controller publishes to a program attached after the
// controller was built.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
}

// Publish is a controller publisher. Views published before Attach are dropped.
func (b *Bridge) Publish(v controller.View) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(FrameMsg(v))
	}
}

type Model struct {
	ctrl    Controls
	presets []string
	preset  int
	// custom is loaded instead of the current preset until s is pressed.
	custom *config.Scenario

	view     controller.View
	mesh     mesh
	loadID   uuid.UUID
	selected int
	speeds   []float64
	err      error

	canvas        *Canvas
	width, height int
	help          help.Model
	showHelp      bool
}

// New builds a viewer cycling through presets, starting at initial. The
// first preset is used when initial is not in the list.
func New(ctrl Controls, presets []string, initial string) Model {
	m := Model{
		ctrl:     ctrl,
		presets:  presets,
		selected: -1,
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		help:     help.New(),
		view:     controller.View{Paused: true},
	}
	for i, name := range presets {
		if name == initial {
			m.preset = i
		}
	}
	return m
}

// WithScenario makes the viewer open on s rather than on a preset.
func (m Model) WithScenario(s config.Scenario) Model {
	m.custom = &s
	return m
}

func (m Model) Init() tea.Cmd {
	if m.custom != nil {
		s := *m.custom
		return m.run(func(ctx context.Context) error { return m.ctrl.SetScenario(ctx, s) })
	}
	return m.loadPreset()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		w := max(20, msg.Width-52)
		h := max(8, msg.Height-6)
		m.canvas = NewCanvas(w, h)

	case FrameMsg:
		m.applyFrame(controller.View(msg))

	case errMsg:
		m.err = msg.err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.PlayPause):
		return m, m.run(m.ctrl.TogglePlayPause)

	case key.Matches(msg, keys.Step):
		if m.view.Paused {
			return m, m.run(m.ctrl.SingleStep)
		}

	case key.Matches(msg, keys.Restart):
		if m.view.Started {
			return m, m.run(m.ctrl.Restart)
		}

	case key.Matches(msg, keys.Next):
		if n := len(m.view.Agents); n > 0 {
			m.selected = (m.selected + 1) % n
			return m, m.selectAgent(m.selected)
		}

	case key.Matches(msg, keys.Prev):
		if n := len(m.view.Agents); n > 0 {
			if m.selected <= 0 {
				m.selected = n - 1
			} else {
				m.selected--
			}
			return m, m.selectAgent(m.selected)
		}

	case key.Matches(msg, keys.Clear):
		m.selected = -1
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.ClearSelection()
			return nil
		}

	case key.Matches(msg, keys.Scenario):
		if len(m.presets) > 0 {
			if m.custom != nil {
				m.custom = nil
			} else {
				m.preset = (m.preset + 1) % len(m.presets)
			}
			return m, m.loadPreset()
		}

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

func (m *Model) applyFrame(v controller.View) {
	if v.LoadID != m.loadID {
		m.loadID = v.LoadID
		m.mesh = parseOBJ(v.Navmesh)
		m.speeds = m.speeds[:0]
	}
	m.view = v
	m.err = v.Err
	if v.Err == nil {
		m.speeds = append(m.speeds, metrics.AverageSpeed(v.Agents))
		if len(m.speeds) > historyCapacity {
			m.speeds = m.speeds[1:]
		}
	}
}

func (m Model) run(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := op(context.Background()); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) selectAgent(i int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Select(i)
		return nil
	}
}

func (m Model) loadPreset() tea.Cmd {
	if len(m.presets) == 0 {
		return nil
	}
	name := m.presets[m.preset]
	ctrl := m.ctrl
	return func() tea.Msg {
		s := config.GetPreset(name)
		if s == nil {
			return errMsg{fmt.Errorf("unknown preset %q", name)}
		}
		if err := ctrl.SetScenario(context.Background(), *s); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	title := m.view.Scenario.Scenario
	if m.custom == nil && len(m.presets) > 0 {
		title = m.presets[m.preset]
	}
	s.WriteString(headerStyle.Render(strings.ToUpper(title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(m.speeds) > 1 {
		chart := asciigraph.Plot(m.speeds, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Mean speed"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(row("Time", fmt.Sprintf("%.2fs", m.view.Time)))
	s.WriteString(row("Frame", fmt.Sprintf("%d", m.view.Frame)))
	s.WriteString(row("Agents", fmt.Sprintf("%d", len(m.view.Agents))))
	if len(m.speeds) > 0 {
		s.WriteString(row("Mean speed", fmt.Sprintf("%.2f m/s", m.speeds[len(m.speeds)-1])))
	}

	s.WriteString(sectionStyle.Render("SELECTION") + "\n")
	s.WriteString(m.selection())

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render(m.help.View(m.enabledKeys())))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("HALTED")
	case !m.view.Paused:
		return runningStyle.Render("RUNNING")
	case m.view.Started:
		return pausedStyle.Render("PAUSED")
	default:
		return pausedStyle.Render("READY")
	}
}

func (m Model) selection() string {
	if m.selected < 0 {
		return labelStyle.Render("  (none)") + "\n"
	}
	d := m.view.DebugInfo
	if d == nil || d.Index != m.selected {
		return row("Agent", fmt.Sprintf("#%d", m.selected)) + disabledStyle.Render("  no debug info yet") + "\n"
	}
	a := d.Agent
	var s strings.Builder
	s.WriteString(row("Agent", fmt.Sprintf("#%d", d.Index)))
	s.WriteString(row("Position", vec(a.Position)))
	s.WriteString(row("Velocity", vec(a.Velocity)))
	s.WriteString(row("Target", vec(a.Target)))
	s.WriteString(row("Speed", fmt.Sprintf("%.2f / %.2f", a.Velocity.Norm(), a.DesiredSpeed)))
	s.WriteString(row("ORCA", fmt.Sprintf("%d constraints", len(d.OrcaConstraints))))
	return s.String()
}

// enabledKeys hides bindings the current state does not accept.
func (m Model) enabledKeys() keyMap {
	k := keys
	k.Step.SetEnabled(m.view.Paused)
	k.Restart.SetEnabled(m.view.Started)
	return k
}

func (m *Model) draw() {
	c := m.canvas
	c.Clear()
	lo, hi := bounds(m.mesh, m.view.Agents)
	p := newProjection(lo, hi, c.Width*2, c.Height*4)

	for _, f := range m.mesh.faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if a >= len(m.mesh.vertices) || b >= len(m.mesh.vertices) {
				continue
			}
			x0, y0 := p.point(m.mesh.vertices[a])
			x1, y1 := p.point(m.mesh.vertices[b])
			c.DrawLine(x0, y0, x1, y1)
		}
	}

	for _, a := range m.view.Agents {
		x, y := p.point(a.Position)
		r := a.Radius * p.scale
		c.DrawCircle(x, y, r)
		tip := frame.Vec2{
			X: a.Position.X + a.Direction.X*a.Radius*1.8,
			Y: a.Position.Y + a.Direction.Y*a.Radius*1.8,
		}
		tx, ty := p.point(tip)
		c.DrawLine(x, y, tx, ty)
		if a.Index == m.selected {
			c.DrawCircle(x, y, r+2)
		}
	}

	if d := m.view.DebugInfo; d != nil && d.Index == m.selected {
		tx, ty := p.point(d.Agent.Target)
		c.DrawLine(tx-1, ty-1, tx+1, ty+1)
		c.DrawLine(tx-1, ty+1, tx+1, ty-1)
	}
}

// projection maps world coordinates to canvas dots, y up, keeping the
// aspect ratio.
type projection struct {
	lo     frame.Vec2
	scale  float64
	ox, oy int
	h      int
}

func newProjection(lo, hi frame.Vec2, w, h int) projection {
	const margin = 2
	spanX := math.Max(hi.X-lo.X, 1e-9)
	spanY := math.Max(hi.Y-lo.Y, 1e-9)
	scale := math.Min(float64(w-2*margin)/spanX, float64(h-2*margin)/spanY)
	return projection{
		lo:    lo,
		scale: scale,
		ox:    margin + int((float64(w-2*margin)-spanX*scale)/2),
		oy:    margin + int((float64(h-2*margin)-spanY*scale)/2),
		h:     h,
	}
}

func (p projection) point(v frame.Vec2) (int, int) {
	x := p.ox + int(math.Round((v.X-p.lo.X)*p.scale))
	y := p.h - 1 - (p.oy + int(math.Round((v.Y-p.lo.Y)*p.scale)))
	return x, y
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func vec(v frame.Vec2) string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}
