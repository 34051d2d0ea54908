package logging

import (
	"fmt"
	"math"
	"strings"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/store"
)

// MissingValue is the placeholder for unavailable values.
const MissingValue = "-"

// MetricRow is one labelled row of pre-formatted values.
type MetricRow struct {
	Label  string
	Values []string
	Note   string // optional trailing column
}

// MetricTable renders rows as aligned text columns.
type MetricTable struct {
	Headers []string
	Rows    []MetricRow
}

// NewMetricTable returns an empty table with the given column headers.
func NewMetricTable(headers ...string) *MetricTable {
	return &MetricTable{Headers: headers}
}

// AddRow appends a row. Missing trailing values render as MissingValue.
func (t *MetricTable) AddRow(label string, values ...string) *MetricRow {
	t.Rows = append(t.Rows, MetricRow{Label: label, Values: values})
	return &t.Rows[len(t.Rows)-1]
}

// String renders the table. Labels are left-aligned, values right-aligned,
// and the note column only appears when a row has one.
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	labelWidth := 0
	hasNote := false
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
		hasNote = hasNote || row.Note != ""
		for i := range widths {
			widths[i] = max(widths[i], len(cell(row.Values, i)))
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", labelWidth))
	for i, h := range t.Headers {
		fmt.Fprintf(&sb, "  %*s", widths[i], h)
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-*s", labelWidth, row.Label)
		for i := range t.Headers {
			fmt.Fprintf(&sb, "  %*s", widths[i], cell(row.Values, i))
		}
		if hasNote && row.Note != "" {
			sb.WriteString("  " + row.Note)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func cell(values []string, i int) string {
	if i < len(values) && values[i] != "" {
		return values[i]
	}
	return MissingValue
}

// formatMetric formats value with the given decimals. NaN and Inf render
// as MissingValue.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatSigned always shows the sign, for dB offsets.
func formatSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// FormatGains renders a gain vector as compact signed dB values.
func FormatGains(v engine.GainVector) string {
	parts := make([]string, len(v))
	for i, g := range v {
		parts[i] = formatSigned(g, 0)
	}
	return strings.Join(parts, " ")
}

// HistoryTable lays out export records, newest first as given.
func HistoryTable(records []store.ExportRecord) *MetricTable {
	t := NewMetricTable("Source", "Preset", "NR", "Codec", "Valid")
	for _, rec := range records {
		cfg := rec.Config
		codec := cfg.Encoding.Codec
		if cfg.Encoding.BitrateKbps > 0 {
			codec = fmt.Sprintf("%s/%dk", codec, cfg.Encoding.BitrateKbps)
		}
		valid := "yes"
		if !cfg.Valid {
			valid = "no"
		}
		row := t.AddRow(rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.SourceID, string(cfg.Preset), formatMetric(cfg.Aggressiveness, 1), codec, valid)
		row.Note = FormatGains(cfg.Gains)
	}
	return t
}

// ExportSummary describes one export record band by band.
func ExportSummary(cfg engine.ExportConfig) *MetricTable {
	t := NewMetricTable("Gain dB")
	for i, hz := range engine.BandCentres {
		label := fmt.Sprintf("%.0f Hz", hz)
		if hz >= 1000 {
			label = fmt.Sprintf("%.0f kHz", hz/1000)
		}
		t.AddRow(label, formatSigned(cfg.Gains[i], 1))
	}
	t.AddRow("Noise reduction", formatMetric(cfg.Aggressiveness, 2))
	t.AddRow("Preset", string(cfg.Preset))
	if !cfg.Valid {
		t.Rows[len(t.Rows)-1].Note = "engine unavailable, export without post-processing"
	}
	return t
}
