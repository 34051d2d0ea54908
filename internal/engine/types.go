// Package engine defines the boundary between the control core and the
// external native media engine: parameter types, the Engine interface and
// the typed errors every boundary call returns.
package engine

import (
	"time"

	"github.com/linuxmatters/mediactl/internal/limiter"
)

// Bands is the number of equalizer bands.
const Bands = 10

// Parameter bounds owned by the engine boundary.
const (
	MinBandGain = -6.0 // dB
	MaxBandGain = 6.0  // dB

	MinAggressiveness     = 0.5
	MaxAggressiveness     = 3.0
	DefaultAggressiveness = 1.5
)

// BandCentres lists the nominal centre frequency of each band in Hz.
var BandCentres = [Bands]float64{31, 62, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// GainVector holds per-band equalizer gains in dB. It is an array, so
// assignment copies it and a stored vector can never be partially updated.
type GainVector [Bands]float64

// Clamped returns v with every band restricted to [MinBandGain, MaxBandGain].
func (v GainVector) Clamped() GainVector {
	for i := range v {
		v[i] = limiter.Clamp(v[i], MinBandGain, MaxBandGain)
	}
	return v
}

// Offset adds db to every band and clamps the result.
func (v GainVector) Offset(db float64) GainVector {
	for i := range v {
		v[i] += db
	}
	return v.Clamped()
}

// Slice returns the bands as a slice, for wire encoding.
func (v GainVector) Slice() []float64 {
	return append([]float64(nil), v[:]...)
}

// GainVectorFrom copies up to Bands values from s. Missing bands are 0 dB.
func GainVectorFrom(s []float64) GainVector {
	var v GainVector
	copy(v[:], s)
	return v.Clamped()
}

// ClampAggressiveness restricts a noise-reduction strength to its bounds.
func ClampAggressiveness(a float64) float64 {
	return limiter.Clamp(a, MinAggressiveness, MaxAggressiveness)
}

// PresetID names an equalizer configuration.
type PresetID string

// FlatPreset is the neutral preset used when none is set.
const FlatPreset PresetID = "flat"

// SessionID is the engine's opaque session identifier.
type SessionID string

// ExportHandle identifies a configuration bound to the export step.
type ExportHandle string

// SourceKind classifies a recording or preview source.
type SourceKind string

const (
	SourceCamera     SourceKind = "camera"
	SourceMicrophone SourceKind = "microphone"
	SourceScreen     SourceKind = "screen"
)

// SourceRef identifies the source a session is bound to.
type SourceRef struct {
	ID            string
	Kind          SourceKind
	AntiBandingHz int // mains frequency hint for camera sources, 0 = engine default
}

// TargetRef identifies the playback or recording target of an attached session.
type TargetRef struct {
	ID   string
	Kind string
}

// LevelSample is one loudness observation pushed by the engine.
type LevelSample struct {
	Level    float64 // normalised [0, 1]
	Silent   bool
	Clipping bool
	At       time.Time
}

// EncodingParams are passed through untouched to the export step.
type EncodingParams struct {
	Codec       string `json:"codec,omitempty"`
	BitrateKbps int    `json:"bitrateKbps,omitempty"`
	SampleRate  int    `json:"sampleRate,omitempty"`
}

// ExportConfig is the snapshot handed to the export stage. Valid is false
// when no engine was ever attached; callers then export without audio
// post-processing.
type ExportConfig struct {
	SessionID      SessionID      `json:"sessionId,omitempty"`
	Gains          GainVector     `json:"gains"`
	Aggressiveness float64        `json:"aggressiveness"`
	Preset         PresetID       `json:"preset"`
	Valid          bool           `json:"valid"`
	Encoding       EncodingParams `json:"encoding"`
	Handle         ExportHandle   `json:"handle,omitempty"`
}

// Disabled returns a record that tells the export stage to skip audio
// post-processing.
func Disabled(enc EncodingParams) ExportConfig {
	return ExportConfig{
		Aggressiveness: DefaultAggressiveness,
		Preset:         FlatPreset,
		Encoding:       enc,
	}
}

// EventKind discriminates engine stream events.
type EventKind int

const (
	EventLevel EventKind = iota
	EventTelemetry
)

// Event is one item of the engine's pushed stream: either a level sample
// or raw telemetry used for CPU usage reporting.
type Event struct {
	Kind      EventKind
	SessionID SessionID
	Sample    LevelSample
	CPUUsage  float64 // percent
}
