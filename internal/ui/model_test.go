package ui

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/studio"
)

type fakeStudio struct {
	st      studio.Status
	presets []engine.PresetID
}

func newFake() *fakeStudio {
	return &fakeStudio{st: studio.Status{
		Source: "cam0", State: "attached", Zoom: 1, Aggressiveness: 1.5,
		AutoEQ: true, AutoNR: true, Preset: "flat",
	}}
}

func (f *fakeStudio) Status() studio.Status { return f.st }
func (f *fakeStudio) LoadPreset(_ context.Context, id engine.PresetID) error {
	if id == "broken" {
		return errors.New("unknown preset")
	}
	f.presets = append(f.presets, id)
	f.st.Preset = string(id)
	return nil
}
func (f *fakeStudio) PrepareExport(context.Context) (engine.ExportConfig, error) {
	return engine.ExportConfig{Valid: true, Handle: "export-1", Preset: engine.PresetID(f.st.Preset)}, nil
}
func (f *fakeStudio) SetAggressiveness(v float64) float64 {
	f.st.Aggressiveness = engine.ClampAggressiveness(v)
	return f.st.Aggressiveness
}
func (f *fakeStudio) Aggressiveness() float64 { return f.st.Aggressiveness }
func (f *fakeStudio) SetAutoEQ(on bool)       { f.st.AutoEQ = on }
func (f *fakeStudio) SetAutoNR(on bool)       { f.st.AutoNR = on }
func (f *fakeStudio) ZoomIn() float64         { f.st.Zoom += 0.5; return f.st.Zoom }
func (f *fakeStudio) ZoomOut() float64        { f.st.Zoom -= 0.5; return f.st.Zoom }
func (f *fakeStudio) ResetZoom() float64      { f.st.Zoom = 1; return 1 }
func (f *fakeStudio) IncreaseExposure() float64 {
	f.st.Exposure += 1.0 / 3
	return f.st.Exposure
}
func (f *fakeStudio) DecreaseExposure() float64 {
	f.st.Exposure -= 1.0 / 3
	return f.st.Exposure
}
func (f *fakeStudio) ResetExposure() float64 { f.st.Exposure = 0; return 0 }

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestKeysDriveStudio(t *testing.T) {
	f := newFake()
	m := NewModel(f, nil, nil)

	m, _ = update(t, m, key("+"))
	m, _ = update(t, m, key("+"))
	m, _ = update(t, m, key("]"))
	m, _ = update(t, m, key("a"))
	m, _ = update(t, m, key("e"))

	if m.Status.Zoom != 2 {
		t.Errorf("zoom = %v, want 2", m.Status.Zoom)
	}
	if m.Status.Exposure <= 0 {
		t.Errorf("exposure = %v, want positive", m.Status.Exposure)
	}
	if math.Abs(m.Status.Aggressiveness-1.6) > 1e-9 {
		t.Errorf("aggressiveness = %v, want 1.6", m.Status.Aggressiveness)
	}
	if m.Status.AutoEQ {
		t.Error("auto EQ still on")
	}

	m, _ = update(t, m, key("0"))
	if m.Status.Zoom != 1 || m.Status.Exposure != 0 {
		t.Errorf("reset gave zoom %v exposure %v", m.Status.Zoom, m.Status.Exposure)
	}
}

func TestPresetCycleAndExport(t *testing.T) {
	f := newFake()
	m := NewModel(f, nil, []engine.PresetID{"flat", "voice", "broken"})

	m, cmd := update(t, m, key("p"))
	if cmd == nil {
		t.Fatal("preset key returned no command")
	}
	m, _ = update(t, m, cmd())
	if m.Status.Preset != "voice" {
		t.Errorf("preset = %q, want voice", m.Status.Preset)
	}

	m, cmd = update(t, m, key("p"))
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.Log[len(m.Log)-1], "unknown preset") {
		t.Errorf("failure not logged: %v", m.Log)
	}

	m, cmd = update(t, m, key("x"))
	m, _ = update(t, m, cmd())
	if m.Export == nil || !m.Export.Valid {
		t.Fatalf("export = %+v", m.Export)
	}
	view := m.View()
	if !strings.Contains(view, "Noise reduction") || !strings.Contains(view, "16 kHz") {
		t.Errorf("export summary missing from view:\n%s", view)
	}
}

func TestEventsUpdateMeter(t *testing.T) {
	ch := make(chan events.Event, 4)
	m := NewModel(newFake(), ch, nil)

	ch <- events.Event{Type: events.TypeLevel, Level: events.F(0.9), Clipping: true, CPU: events.F(0.25)}
	cmd := waitForEvent(ch)
	m, next := update(t, m, cmd())
	if next == nil {
		t.Error("model stopped listening after an event")
	}
	if m.Level != 0.9 || m.Peak != 0.9 || !m.Clipping || m.Status.CPUUsage != 0.25 {
		t.Errorf("meter = %+v", m)
	}

	m, _ = update(t, m, EventMsg{Type: events.TypeLevel, Level: events.F(0.2)})
	if m.Peak != 0.9 {
		t.Errorf("peak dropped to %v", m.Peak)
	}

	m, _ = update(t, m, EventMsg{Type: events.TypeFailure, Op: "applyGains", Kind: "timeout", Error: "slow"})
	if !strings.Contains(m.Log[len(m.Log)-1], "applyGains failed (timeout)") {
		t.Errorf("failure log = %v", m.Log)
	}

	close(ch)
	m, _ = update(t, m, waitForEvent(ch)())
	if m.events != nil {
		t.Error("closed stream still attached")
	}
	if !strings.Contains(m.View(), "CLIP") {
		t.Error("clipping flag not rendered")
	}
}

func TestLogIsBounded(t *testing.T) {
	m := NewModel(newFake(), nil, nil)
	for range 20 {
		m = m.logf("line")
	}
	if len(m.Log) != maxLog {
		t.Errorf("log length = %d, want %d", len(m.Log), maxLog)
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(newFake(), nil, nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !m.Quitting || m.View() != "" {
		t.Error("ctrl+c did not quit")
	}
}

func TestRenderGainBar(t *testing.T) {
	tests := []struct {
		db   float64
		want string
	}{
		{0, "    │    "},
		{6, "    │▓▓▓▓"},
		{-3, "  ▓▓│    "},
		{-9, "▓▓▓▓│    "},
	}
	for _, tt := range tests {
		if got := renderGainBar(tt.db, 4); got != tt.want {
			t.Errorf("renderGainBar(%v) = %q, want %q", tt.db, got, tt.want)
		}
	}
}
