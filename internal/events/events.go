// Package events carries session notifications (state changes, parameter
// updates, recovered failures, exports) to observers such as the WebSocket
// stream and the TUI.
package events

import (
	"time"
)

// Topic is the watermill topic all session events share.
const Topic = "mediactl.session"

// Type discriminates events.
type Type string

const (
	TypeState   Type = "session.state"
	TypeParams  Type = "session.params"
	TypeLevel   Type = "session.level"
	TypeFailure Type = "engine.failure"
	TypeExport  Type = "export.prepared"
)

// Event is the JSON payload of every bus message. Optional fields are
// pointers so zero values survive the round trip.
type Event struct {
	Type      Type      `json:"type"`
	Source    string    `json:"source,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	At        time.Time `json:"at"`

	State string `json:"state,omitempty"`

	Gains          []float64 `json:"gains,omitempty"`
	Master         *float64  `json:"master,omitempty"`
	Preset         string    `json:"preset,omitempty"`
	Aggressiveness *float64  `json:"aggressiveness,omitempty"`
	Zoom           *float64  `json:"zoom,omitempty"`
	Exposure       *float64  `json:"exposure,omitempty"`
	Adjusting      *bool     `json:"adjusting,omitempty"`

	Level    *float64 `json:"level,omitempty"`
	Silent   bool     `json:"silent,omitempty"`
	Clipping bool     `json:"clipping,omitempty"`
	CPU      *float64 `json:"cpu,omitempty"`

	Op    string `json:"op,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`

	Valid  *bool  `json:"valid,omitempty"`
	Handle string `json:"handle,omitempty"`
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// B returns a pointer to v.
func B(v bool) *bool { return &v }
