package ui

import (
	"time"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
)

// EventMsg carries one session event from the bus.
type EventMsg events.Event

// tickMsg refreshes the status panel.
type tickMsg time.Time

// ExportMsg reports the result of an export request.
type ExportMsg struct {
	Config engine.ExportConfig
	Err    error
}

// PresetMsg reports the result of a preset change.
type PresetMsg struct {
	ID  engine.PresetID
	Err error
}

// streamClosedMsg means the event channel is gone.
type streamClosedMsg struct{}
