// Package wire defines the JSON messages exchanged with an external media
// engine, shared by the Unix-socket and NATS transports.
package wire

import (
	"errors"
	"time"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// Command names.
const (
	CmdCreateSession       = engine.OpCreateSession
	CmdAttach              = engine.OpAttach
	CmdApplyGains          = engine.OpApplyGains
	CmdApplyAggressiveness = engine.OpApplyAggressiveness
	CmdApplyZoom           = engine.OpApplyZoom
	CmdApplyExposure       = engine.OpApplyExposure
	CmdPrepareExport       = engine.OpPrepareExport
	CmdDestroySession      = engine.OpDestroySession
	CmdSubscribe           = engine.OpSubscribe
)

// Event names.
const (
	EventLevel     = "level"
	EventTelemetry = "telemetry"
)

// Command is a request sent to the engine.
type Command struct {
	Cmd       string    `json:"cmd"`
	SessionID string    `json:"sessionId,omitempty"`
	Source    *Source   `json:"source,omitempty"`
	Target    *Target   `json:"target,omitempty"`
	Gains     []float64 `json:"gains,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Export    *Export   `json:"export,omitempty"`
}

// Source mirrors engine.SourceRef.
type Source struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	AntiBandingHz int    `json:"antiBandingHz,omitempty"`
}

// Target mirrors engine.TargetRef.
type Target struct {
	ID   string `json:"id"`
	Kind string `json:"kind,omitempty"`
}

// Export carries the snapshot bound by prepareExport.
type Export struct {
	Gains          []float64 `json:"gains"`
	Aggressiveness float64   `json:"aggressiveness"`
	Preset         string    `json:"preset"`
	Codec          string    `json:"codec,omitempty"`
	BitrateKbps    int       `json:"bitrateKbps,omitempty"`
	SampleRate     int       `json:"sampleRate,omitempty"`
}

// Response is the engine's reply to one Command.
type Response struct {
	OK           bool   `json:"ok"`
	SessionID    string `json:"sessionId,omitempty"`
	ExportHandle string `json:"exportHandle,omitempty"`
	Error        string `json:"error,omitempty"`
	Unavailable  bool   `json:"unavailable,omitempty"`
}

// Event is an item pushed on a subscription.
type Event struct {
	Event     string   `json:"event"`
	SessionID string   `json:"sessionId,omitempty"`
	Level     *float64 `json:"level,omitempty"`
	Silent    bool     `json:"silent,omitempty"`
	Clipping  bool     `json:"clipping,omitempty"`
	CPU       *float64 `json:"cpu,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// NewCreateSession builds a createSession command.
func NewCreateSession(src engine.SourceRef) Command {
	return Command{
		Cmd:    CmdCreateSession,
		Source: &Source{ID: src.ID, Kind: string(src.Kind), AntiBandingHz: src.AntiBandingHz},
	}
}

// NewAttach builds an attach command.
func NewAttach(id engine.SessionID, target engine.TargetRef) Command {
	return Command{
		Cmd:       CmdAttach,
		SessionID: string(id),
		Target:    &Target{ID: target.ID, Kind: target.Kind},
	}
}

// NewApplyGains builds an applyGains command.
func NewApplyGains(id engine.SessionID, gains engine.GainVector) Command {
	return Command{Cmd: CmdApplyGains, SessionID: string(id), Gains: gains.Slice()}
}

// NewValue builds one of the scalar apply commands.
func NewValue(cmd string, id engine.SessionID, v float64) Command {
	return Command{Cmd: cmd, SessionID: string(id), Value: Float(v)}
}

// NewPrepareExport builds a prepareExport command.
func NewPrepareExport(id engine.SessionID, cfg engine.ExportConfig) Command {
	return Command{
		Cmd:       CmdPrepareExport,
		SessionID: string(id),
		Export: &Export{
			Gains:          cfg.Gains.Slice(),
			Aggressiveness: cfg.Aggressiveness,
			Preset:         string(cfg.Preset),
			Codec:          cfg.Encoding.Codec,
			BitrateKbps:    cfg.Encoding.BitrateKbps,
			SampleRate:     cfg.Encoding.SampleRate,
		},
	}
}

// NewSession builds a command that only carries a session id.
func NewSession(cmd string, id engine.SessionID) Command {
	return Command{Cmd: cmd, SessionID: string(id)}
}

// Err converts a negative response into a typed engine error.
func (r Response) Err(op string) error {
	if r.OK {
		return nil
	}
	if r.Unavailable {
		return &engine.Error{Op: op, Kind: engine.KindUnavailable, Err: engine.ErrUnavailable}
	}
	msg := r.Error
	if msg == "" {
		msg = "request refused"
	}
	return &engine.Error{Op: op, Kind: engine.KindRejected, Err: errors.New(msg)}
}

// ToEngine converts a wire event. Unknown event names report false.
func (e Event) ToEngine(now time.Time) (engine.Event, bool) {
	switch e.Event {
	case EventLevel:
		if e.Level == nil {
			return engine.Event{}, false
		}
		return engine.Event{
			Kind:      engine.EventLevel,
			SessionID: engine.SessionID(e.SessionID),
			Sample: engine.LevelSample{
				Level:    *e.Level,
				Silent:   e.Silent,
				Clipping: e.Clipping,
				At:       now,
			},
		}, true
	case EventTelemetry:
		if e.CPU == nil {
			return engine.Event{}, false
		}
		return engine.Event{
			Kind:      engine.EventTelemetry,
			SessionID: engine.SessionID(e.SessionID),
			CPUUsage:  *e.CPU,
		}, true
	default:
		return engine.Event{}, false
	}
}

// FromEngine converts an engine event to its wire form.
func FromEngine(ev engine.Event) Event {
	switch ev.Kind {
	case engine.EventTelemetry:
		return Event{Event: EventTelemetry, SessionID: string(ev.SessionID), CPU: Float(ev.CPUUsage)}
	default:
		return Event{
			Event:     EventLevel,
			SessionID: string(ev.SessionID),
			Level:     Float(ev.Sample.Level),
			Silent:    ev.Sample.Silent,
			Clipping:  ev.Sample.Clipping,
		}
	}
}
