// Package store persists user presets and export history in SQLite.
package store

import (
	"time"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// PresetRecord is a saved equalizer preset.
type PresetRecord struct {
	ID        string
	Name      string
	Bands     engine.GainVector
	Baseline  float64
	CreatedAt time.Time
}

// ExportRecord is one produced export configuration.
type ExportRecord struct {
	ID        int64
	SourceID  string
	Config    engine.ExportConfig
	CreatedAt time.Time
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
