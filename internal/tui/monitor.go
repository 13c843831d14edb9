// Package tui renders the interactive liveness monitor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
)

const (
	DefaultInterval = 200 * time.Millisecond
	historyLen      = 120
	graphWidth      = 60
)

// Probe is what the monitor observes and controls.
type Probe interface {
	EngineRunning() bool
	PollerActive() bool
	StartPoller(ctx context.Context)
	StopPoller()
}

type TickMsg time.Time

type Model struct {
	ctx      context.Context
	probe    Probe
	address  string
	interval time.Duration
	styles   Styles
	spinner  spinner.Model

	started     time.Time
	history     []float64
	running     bool
	transitions int
	lastChange  time.Time
	quitting    bool
}

func NewModel(ctx context.Context, probe Probe, address string, theme Theme) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	styles := NewStyles(theme)
	sp.Style = styles.Title

	now := time.Now()
	return Model{
		ctx:        ctx,
		probe:      probe,
		address:    address,
		interval:   DefaultInterval,
		styles:     styles,
		spinner:    sp,
		started:    now,
		lastChange: now,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p":
			if m.probe.PollerActive() {
				m.probe.StopPoller()
			} else {
				m.probe.StartPoller(m.ctx)
			}
			return m, nil
		case "c":
			m.history = m.history[:0]
			m.transitions = 0
			return m, nil
		}

	case TickMsg:
		m.sample(time.Time(msg))
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) sample(now time.Time) {
	running := m.probe.EngineRunning()
	if len(m.history) > 0 && running != m.running {
		m.transitions++
		m.lastChange = now
	}
	m.running = running

	v := 0.0
	if running {
		v = 1
	}
	m.history = append(m.history, v)
	if len(m.history) > historyLen {
		m.history = m.history[len(m.history)-historyLen:]
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("cmctl monitor") + "  " + s.Subtle.Render(m.address) + "\n")
	b.WriteString(s.Separator(graphWidth) + "\n\n")

	engine := s.Stopped.Render("STOPPED")
	if m.running {
		engine = s.Running.Render("RUNNING")
	}
	poller := s.Idle.Render("paused")
	if m.probe.PollerActive() {
		poller = m.spinner.View() + " " + s.Value.Render("polling")
	}

	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("engine     "), engine)
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("poller     "), poller)
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("uptime     "), s.Value.Render(time.Since(m.started).Truncate(time.Second).String()))
	fmt.Fprintf(&b, "%s %s\n", s.Label.Render("transitions"), s.Value.Render(fmt.Sprint(m.transitions)))
	fmt.Fprintf(&b, "%s %s\n\n", s.Label.Render("history    "), Sparkline(m.history, graphWidth))

	if len(m.history) > 1 {
		b.WriteString(asciigraph.Plot(m.history,
			asciigraph.Height(4),
			asciigraph.Width(graphWidth),
			asciigraph.LowerBound(0),
			asciigraph.UpperBound(1),
			asciigraph.Caption("engine running"),
		))
		b.WriteString("\n\n")
	}

	b.WriteString(s.KeyHint.Render("p pause/resume polling  c clear  q quit"))
	return s.Panel.Render(b.String())
}

// Run starts the monitor on the terminal.
func Run(ctx context.Context, probe Probe, address string, theme Theme) error {
	_, err := tea.NewProgram(NewModel(ctx, probe, address, theme), tea.WithContext(ctx)).Run()
	return err
}
