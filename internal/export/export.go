// Package export produces the configuration handed to the export stage when
// a session ends.
package export

import (
	"context"
	"errors"
	"time"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/store"
)

// Preparer is the session manager's export step.
type Preparer interface {
	PrepareExport(ctx context.Context, enc engine.EncodingParams) (engine.ExportConfig, error)
}

// Flusher pushes any debounced value still waiting for its quiet window.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Recorder stores produced configurations.
type Recorder interface {
	RecordExport(ctx context.Context, rec store.ExportRecord) (int64, error)
}

// Publisher receives export.prepared events.
type Publisher interface {
	Emit(ev events.Event)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFlushers registers the control channels to drain before the snapshot.
func WithFlushers(f ...Flusher) Option {
	return func(c *Coordinator) { c.flushers = append(c.flushers, f...) }
}

// WithRecorder stores every produced config.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.history = r }
}

// WithPublisher announces every produced config.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.pub = p }
}

// WithReporter receives flush and history failures.
func WithReporter(r engine.Reporter) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.report = r
		}
	}
}

// WithEncoding sets the encoding parameters passed through to the engine.
func WithEncoding(enc engine.EncodingParams) Option {
	return func(c *Coordinator) { c.enc = enc }
}

// Coordinator prepares the export record for one source.
type Coordinator struct {
	session  Preparer
	source   string
	flushers []Flusher
	history  Recorder
	pub      Publisher
	report   engine.Reporter
	enc      engine.EncodingParams
	now      func() time.Time
}

// NewCoordinator returns a coordinator for the session bound to source.
func NewCoordinator(session Preparer, source string, opts ...Option) *Coordinator {
	c := &Coordinator{
		session: session,
		source:  source,
		report:  engine.NopReporter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encoding returns the configured encoding parameters.
func (c *Coordinator) Encoding() engine.EncodingParams { return c.enc }

// Prepare drains pending pushes and returns the export record using the
// configured encoding parameters.
func (c *Coordinator) Prepare(ctx context.Context) (engine.ExportConfig, error) {
	return c.PrepareWith(ctx, c.enc)
}

// PrepareWith is Prepare with caller-supplied encoding parameters, which
// are passed through untouched. A disabled record is a normal result: the
// export proceeds without post-processing. Only a caller error such as
// exporting before attach is returned.
func (c *Coordinator) PrepareWith(ctx context.Context, enc engine.EncodingParams) (engine.ExportConfig, error) {
	var flushErr error
	for _, f := range c.flushers {
		flushErr = errors.Join(flushErr, f.Flush(ctx))
	}
	if flushErr != nil {
		// A failed final push leaves the local value as the source of truth.
		c.report.Report(engine.OpPrepareExport, flushErr)
	}

	cfg, err := c.session.PrepareExport(ctx, enc)
	if err != nil {
		return cfg, err
	}

	if c.history != nil {
		_, herr := c.history.RecordExport(ctx, store.ExportRecord{
			SourceID:  c.source,
			Config:    cfg,
			CreatedAt: c.now(),
		})
		if herr != nil {
			c.report.Report("recordExport", herr)
		}
	}

	if c.pub != nil {
		c.pub.Emit(events.Event{
			Type:           events.TypeExport,
			Source:         c.source,
			SessionID:      string(cfg.SessionID),
			Gains:          cfg.Gains.Slice(),
			Preset:         string(cfg.Preset),
			Aggressiveness: events.F(cfg.Aggressiveness),
			Valid:          events.B(cfg.Valid),
			Handle:         string(cfg.Handle),
		})
	}
	return cfg, nil
}
