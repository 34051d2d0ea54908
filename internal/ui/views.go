package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/logging"
)

var (
	accent = lipgloss.Color("#D9480F")
	muted  = lipgloss.Color("#888888")
	good   = lipgloss.Color("#00AA00")
	warn   = lipgloss.Color("#FFA500")

	panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1).
		Width(64)
)

// renderMonitor renders the whole screen
func renderMonitor(m Model) string {
	var b strings.Builder
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderMeter(m))
	b.WriteString("\n")
	b.WriteString(renderEqualizer(m))
	b.WriteString("\n")
	b.WriteString(renderParameters(m))
	b.WriteString("\n")
	if m.Export != nil {
		b.WriteString(panel.Render(logging.ExportSummary(*m.Export).String()))
		b.WriteString("\n")
	}
	if len(m.Log) > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(muted).Render(strings.Join(m.Log, "\n")))
		b.WriteString("\n")
	}
	b.WriteString(renderHelp())
	return b.String()
}

func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accent).
		Render("mediactl monitor")

	state := m.Status.State
	color := good
	switch state {
	case "unavailable", "destroyed":
		color = warn
	}
	sub := fmt.Sprintf("%s  %s  cpu %.0f%%",
		m.Status.Source,
		lipgloss.NewStyle().Foreground(color).Render(state),
		m.Status.CPUUsage*100)
	if m.Status.Processing {
		sub += "  " + lipgloss.NewStyle().Foreground(warn).Render("adjusting")
	}
	return title + "\n" + lipgloss.NewStyle().Foreground(muted).Italic(true).Render(sub)
}

// renderMeter renders the level meter with silence and clipping flags
func renderMeter(m Model) string {
	flags := ""
	if m.Silent {
		flags += " " + lipgloss.NewStyle().Foreground(muted).Render("silent")
	}
	if m.Clipping {
		flags += " " + lipgloss.NewStyle().Foreground(accent).Bold(true).Render("CLIP")
	}
	return panel.Render(fmt.Sprintf("Level %s\nPeak  %s%s",
		renderBar(m.Level, 40), renderBar(m.Peak, 40), flags))
}

// renderBar renders a 0..1 value as a bar
func renderBar(v float64, width int) string {
	v = math.Max(0, math.Min(1, v))
	filled := int(v * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3.0f%%", v*100)
}

// renderGainBar centres a band gain on a fixed-width track
func renderGainBar(db float64, half int) string {
	n := int(math.Round(math.Abs(db) / engine.MaxBandGain * float64(half)))
	n = min(n, half)
	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	if db < 0 {
		left = strings.Repeat(" ", half-n) + strings.Repeat("▓", n)
	} else {
		right = strings.Repeat("▓", n) + strings.Repeat(" ", half-n)
	}
	return left + "│" + right
}

func renderEqualizer(m Model) string {
	var b strings.Builder
	auto := "manual"
	if m.Status.AutoEQ {
		auto = "auto"
	}
	fmt.Fprintf(&b, "EQ %s  preset %s  master %+.0f dB\n", auto, m.Status.Preset, m.Status.Master)
	for i, hz := range engine.BandCentres {
		label := fmt.Sprintf("%5.0f", hz)
		if hz >= 1000 {
			label = fmt.Sprintf("%4.0fk", hz/1000)
		}
		fmt.Fprintf(&b, "%s %s %+4.1f", label, renderGainBar(m.Status.Gains[i], 12), m.Status.Gains[i])
		if i < len(engine.BandCentres)-1 {
			b.WriteString("\n")
		}
	}
	return panel.Render(b.String())
}

func renderParameters(m Model) string {
	nr := "manual"
	if m.Status.AutoNR {
		nr = "auto"
	}
	lines := []string{
		fmt.Sprintf("Noise reduction %.2f (%s)", m.Status.Aggressiveness, nr),
		fmt.Sprintf("Zoom %.1fx   Exposure %+.2f EV", m.Status.Zoom, m.Status.Exposure),
	}
	if m.Status.AntiBandingHz > 0 {
		lines = append(lines, fmt.Sprintf("Anti-banding %d Hz", m.Status.AntiBandingHz))
	}
	return panel.Render(strings.Join(lines, "\n"))
}

func renderHelp() string {
	return lipgloss.NewStyle().Foreground(muted).Render(
		"+/- zoom  [/] exposure  0 reset  a/z nr  e auto-eq  n auto-nr  p preset  x export  q quit")
}
