// Package ui provides the Bubbletea live monitor for one source.
package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/studio"
)

// Studio is the part of studio.Studio the monitor drives.
type Studio interface {
	Status() studio.Status
	LoadPreset(ctx context.Context, id engine.PresetID) error
	PrepareExport(ctx context.Context) (engine.ExportConfig, error)
	SetAggressiveness(level float64) float64
	Aggressiveness() float64
	SetAutoEQ(on bool)
	SetAutoNR(on bool)
	ZoomIn() float64
	ZoomOut() float64
	ResetZoom() float64
	IncreaseExposure() float64
	DecreaseExposure() float64
	ResetExposure() float64
}

const (
	refreshInterval = 250 * time.Millisecond
	maxLog          = 6
	aggressiveStep  = 0.1
)

// Model is the Bubbletea model for the monitor.
type Model struct {
	studio  Studio
	events  <-chan events.Event
	presets []engine.PresetID

	Status   studio.Status
	Level    float64
	Peak     float64
	Silent   bool
	Clipping bool
	Log      []string
	Export   *engine.ExportConfig
	Quitting bool

	presetIndex int
	Width       int
	Height      int
}

// NewModel returns a monitor for s. evs may be nil; presets is the cycle
// order for the preset key.
func NewModel(s Studio, evs <-chan events.Event, presets []engine.PresetID) Model {
	if len(presets) == 0 {
		presets = []engine.PresetID{engine.FlatPreset}
	}
	return Model{
		studio:  s,
		events:  evs,
		presets: presets,
		Status:  s.Status(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		m.Status = m.studio.Status()
		return m, tick()

	case EventMsg:
		m = m.applyEvent(events.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.events = nil

	case ExportMsg:
		if msg.Err != nil {
			m = m.logf("export refused: %v", msg.Err)
			break
		}
		cfg := msg.Config
		m.Export = &cfg
		if cfg.Valid {
			m = m.logf("export prepared (%s)", cfg.Handle)
		} else {
			m = m.logf("export without post-processing")
		}

	case PresetMsg:
		if msg.Err != nil {
			m = m.logf("preset %s: %v", msg.ID, msg.Err)
		} else {
			m = m.logf("preset %s loaded", msg.ID)
		}
		m.Status = m.studio.Status()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.studio
	switch msg.String() {
	case "q", "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	case "+", "=":
		s.ZoomIn()
	case "-":
		s.ZoomOut()
	case "0":
		s.ResetZoom()
		s.ResetExposure()
	case "]":
		s.IncreaseExposure()
	case "[":
		s.DecreaseExposure()
	case "a":
		s.SetAggressiveness(s.Aggressiveness() + aggressiveStep)
	case "z":
		s.SetAggressiveness(s.Aggressiveness() - aggressiveStep)
	case "e":
		s.SetAutoEQ(!m.Status.AutoEQ)
	case "n":
		s.SetAutoNR(!m.Status.AutoNR)
	case "p":
		m.presetIndex = (m.presetIndex + 1) % len(m.presets)
		return m, loadPreset(s, m.presets[m.presetIndex])
	case "x":
		return m, prepareExport(s)
	default:
		return m, nil
	}
	m.Status = s.Status()
	return m, nil
}

func (m Model) applyEvent(ev events.Event) Model {
	switch ev.Type {
	case events.TypeLevel:
		if ev.Level != nil {
			m.Level = *ev.Level
			m.Peak = max(m.Peak, m.Level)
		}
		m.Silent, m.Clipping = ev.Silent, ev.Clipping
		if ev.CPU != nil {
			m.Status.CPUUsage = *ev.CPU
		}
	case events.TypeState:
		m.Status.State = ev.State
		m = m.logf("state: %s", ev.State)
	case events.TypeFailure:
		m = m.logf("%s failed (%s): %s", ev.Op, ev.Kind, ev.Error)
	case events.TypeParams:
		m.Status = m.studio.Status()
	}
	return m
}

func (m Model) logf(format string, args ...any) Model {
	line := time.Now().Format("15:04:05 ") + fmt.Sprintf(format, args...)
	m.Log = append(m.Log[max(0, len(m.Log)-maxLog+1):], line)
	return m
}

// View renders the UI
func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	return renderMonitor(m)
}

// waitForEvent creates a command that waits for the next bus event
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadPreset(s Studio, id engine.PresetID) tea.Cmd {
	return func() tea.Msg {
		return PresetMsg{ID: id, Err: s.LoadPreset(context.Background(), id)}
	}
}

func prepareExport(s Studio) tea.Cmd {
	return func() tea.Msg {
		cfg, err := s.PrepareExport(context.Background())
		return ExportMsg{Config: cfg, Err: err}
	}
}
