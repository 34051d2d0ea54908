// Package studio composes one source's session, control loops, camera
// controllers and export coordinator behind the surface the UI and the
// HTTP API drive.
package studio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/camera"
	"github.com/linuxmatters/mediactl/internal/control"
	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/export"
	"github.com/linuxmatters/mediactl/internal/limiter"
	"github.com/linuxmatters/mediactl/internal/logging"
	"github.com/linuxmatters/mediactl/internal/mains"
	"github.com/linuxmatters/mediactl/internal/session"
	"github.com/linuxmatters/mediactl/internal/slots"
)

// Publisher receives session events.
type Publisher interface {
	Emit(ev events.Event)
}

// Config carries the shared collaborators. Zero durations and ranges take
// the package defaults.
type Config struct {
	Engine   engine.Engine
	Presets  control.PresetSource
	Slots    slots.Registry
	History  export.Recorder
	Bus      Publisher
	Reporter *logging.Reporter
	Log      *zap.Logger

	QuietWindow   time.Duration
	CallTimeout   time.Duration
	Strict        bool
	Encoding      engine.EncodingParams
	ZoomRange     limiter.Range
	ExposureRange limiter.Range

	// AntiBanding resolves the camera mains frequency. Defaults to the
	// local timezone.
	AntiBanding func(engine.SourceRef) engine.SourceRef
}

// Status is a consistent view for display and the API.
type Status struct {
	Source         string            `json:"source"`
	SessionID      string            `json:"sessionId,omitempty"`
	State          string            `json:"state"`
	Ready          bool              `json:"ready"`
	Processing     bool              `json:"processing"`
	Gains          engine.GainVector `json:"gains"`
	Master         float64           `json:"master"`
	Preset         string            `json:"preset"`
	AutoEQ         bool              `json:"autoEq"`
	Aggressiveness float64           `json:"aggressiveness"`
	AutoNR         bool              `json:"autoNr"`
	Zoom           float64           `json:"zoom"`
	Exposure       float64           `json:"exposure"`
	CPUUsage       float64           `json:"cpu"`
	AntiBandingHz  int               `json:"antiBandingHz,omitempty"`
}

// Studio drives one source.
type Studio struct {
	source engine.SourceRef
	pub    Publisher
	log    *zap.Logger

	mgr      *session.Manager
	eq       *control.Equalizer
	nr       *control.NoiseReduction
	zoom     *camera.Zoom
	exposure *camera.Exposure
	export   *export.Coordinator
}

type nopPublisher struct{}

func (nopPublisher) Emit(events.Event) {}

// New wires a studio for source. Call Start to open the session.
func New(source engine.SourceRef, cfg Config) *Studio {
	if cfg.AntiBanding == nil {
		cfg.AntiBanding = mains.Apply
	}
	source = cfg.AntiBanding(source)

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Studio{
		source: source,
		pub:    cfg.Bus,
		log:    log.With(zap.String("source", source.ID)),
	}
	if s.pub == nil {
		s.pub = nopPublisher{}
	}

	var report engine.Reporter = engine.NopReporter
	if cfg.Reporter != nil {
		report = cfg.Reporter.ForSource(source.ID)
	}

	mopts := []session.Option{
		session.WithReporter(report),
		session.WithStrict(cfg.Strict),
		session.WithStateHook(s.stateChanged),
	}
	if cfg.Slots != nil {
		mopts = append(mopts, session.WithSlots(cfg.Slots))
	}
	if cfg.CallTimeout > 0 {
		mopts = append(mopts, session.WithCallTimeout(cfg.CallTimeout))
	}
	s.mgr = session.New(cfg.Engine, mopts...)

	var dopts []debounce.Option
	if cfg.QuietWindow > 0 {
		dopts = append(dopts, debounce.WithQuietWindow(cfg.QuietWindow))
	}
	dopts = append(dopts, debounce.WithAdjustingHook(func(bool) { s.paramsChanged() }))

	changed := func() { s.paramsChanged() }
	s.eq = control.NewEqualizer(s.mgr, cfg.Presets,
		control.WithDebounce(dopts...), control.WithReporter(report), control.WithChangeHook(changed))
	s.nr = control.NewNoiseReduction(s.mgr,
		control.WithDebounce(dopts...), control.WithReporter(report), control.WithChangeHook(changed))

	zoomRange, exposureRange := cfg.ZoomRange, cfg.ExposureRange
	if zoomRange == (limiter.Range{}) {
		zoomRange = camera.DefaultZoomRange
	}
	if exposureRange == (limiter.Range{}) {
		exposureRange = camera.DefaultExposureRange
	}
	camChanged := func(float64) { s.paramsChanged() }
	copts := []camera.Option{
		camera.WithDebounce(dopts...), camera.WithReporter(report), camera.WithChangeHook(camChanged),
	}
	s.zoom = camera.NewZoom(s.mgr, zoomRange, copts...)
	s.exposure = camera.NewExposure(s.mgr, exposureRange, copts...)

	eopts := []export.Option{
		export.WithFlushers(s.eq, s.nr, s.zoom.Controller(), s.exposure.Controller()),
		export.WithPublisher(s.pub),
		export.WithReporter(report),
		export.WithEncoding(cfg.Encoding),
	}
	if cfg.History != nil {
		eopts = append(eopts, export.WithRecorder(cfg.History))
	}
	s.export = export.NewCoordinator(s.mgr, source.ID, eopts...)

	for _, c := range []session.Canceler{s.eq, s.nr, s.zoom.Controller(), s.exposure.Controller()} {
		s.mgr.Track(c)
	}
	s.mgr.OnLevel(s.eq.Observe)
	s.mgr.OnLevel(s.nr.Observe)
	s.mgr.OnLevel(s.levelObserved)
	return s
}

// Start claims the source and opens the engine session. A missing engine
// is not an error: the studio runs local-only.
func (s *Studio) Start(ctx context.Context) error {
	return s.mgr.Initialize(ctx, s.source)
}

func (s *Studio) Source() engine.SourceRef { return s.source }

// Session exposes the underlying manager.
func (s *Studio) Session() *session.Manager { return s.mgr }

func (s *Studio) IsReady() bool { return s.mgr.IsReady() }

// IsProcessing reports whether any engine push is in flight.
func (s *Studio) IsProcessing() bool {
	return s.eq.Adjusting() || s.nr.Adjusting() ||
		s.zoom.Controller().Adjusting() || s.exposure.Controller().Adjusting()
}

// CurrentGains is the last accepted effective equalizer vector.
func (s *Studio) CurrentGains() engine.GainVector { return s.eq.Gains() }

func (s *Studio) CurrentPreset() engine.PresetID { return s.eq.State().Preset }

func (s *Studio) CPUUsage() float64 { return s.mgr.CPUUsage() }

func (s *Studio) AttachToTarget(ctx context.Context, target engine.TargetRef) error {
	return s.mgr.Attach(ctx, target)
}

// CheckParams fails when the session does not accept parameter changes.
// Every setter below checks it first and leaves its value untouched on
// failure.
func (s *Studio) CheckParams(op string) error { return s.mgr.CheckParams(op) }

// ApplyGains sets a user vector. The returned vector is clamped.
func (s *Studio) ApplyGains(gains engine.GainVector) engine.GainVector {
	if s.CheckParams(engine.OpApplyGains) != nil {
		return s.eq.Gains()
	}
	return s.eq.SetGains(gains)
}

func (s *Studio) LoadPreset(ctx context.Context, id engine.PresetID) error {
	if err := s.CheckParams(engine.OpApplyGains); err != nil {
		return err
	}
	return s.eq.LoadPreset(ctx, id)
}

// SetAggressiveness overrides the noise-reduction strength.
func (s *Studio) SetAggressiveness(level float64) float64 {
	if s.CheckParams(engine.OpApplyAggressiveness) != nil {
		return s.nr.Aggressiveness()
	}
	return s.nr.Set(level)
}

func (s *Studio) Aggressiveness() float64 { return s.nr.Aggressiveness() }

// SetAutoEQ turns the adaptive equalizer on or off.
func (s *Studio) SetAutoEQ(on bool) {
	s.eq.SetEnabled(on)
	s.paramsChanged()
}

// SetAutoNR turns adaptive noise reduction on or off.
func (s *Studio) SetAutoNR(on bool) {
	s.nr.SetEnabled(on)
	s.paramsChanged()
}

func (s *Studio) CurrentZoom() float64     { return s.zoom.CurrentZoom() }
func (s *Studio) SetZoom(v float64) float64 { return s.zoomOp(func() float64 { return s.zoom.SetZoom(v) }) }
func (s *Studio) ResetZoom() float64        { return s.zoomOp(s.zoom.ResetZoom) }
func (s *Studio) ZoomIn() float64           { return s.zoomOp(s.zoom.ZoomIn) }
func (s *Studio) ZoomOut() float64          { return s.zoomOp(s.zoom.ZoomOut) }
func (s *Studio) Pinch(scale float64) float64 {
	return s.zoomOp(func() float64 { return s.zoom.Pinch(scale) })
}

func (s *Studio) CurrentExposure() float64 { return s.exposure.CurrentExposure() }
func (s *Studio) SetExposure(v float64) float64 {
	return s.exposureOp(func() float64 { return s.exposure.SetExposure(v) })
}
func (s *Studio) ResetExposure() float64    { return s.exposureOp(s.exposure.ResetExposure) }
func (s *Studio) IncreaseExposure() float64 { return s.exposureOp(s.exposure.IncreaseExposure) }
func (s *Studio) DecreaseExposure() float64 { return s.exposureOp(s.exposure.DecreaseExposure) }

func (s *Studio) zoomOp(fn func() float64) float64 {
	if s.CheckParams(engine.OpApplyZoom) != nil {
		return s.zoom.CurrentZoom()
	}
	return fn()
}

func (s *Studio) exposureOp(fn func() float64) float64 {
	if s.CheckParams(engine.OpApplyExposure) != nil {
		return s.exposure.CurrentExposure()
	}
	return fn()
}

// PrepareExport flushes pending pushes and returns the export record.
func (s *Studio) PrepareExport(ctx context.Context) (engine.ExportConfig, error) {
	return s.export.Prepare(ctx)
}

// PrepareExportWith uses caller encoding parameters.
func (s *Studio) PrepareExportWith(ctx context.Context, enc engine.EncodingParams) (engine.ExportConfig, error) {
	return s.export.PrepareWith(ctx, enc)
}

// Cleanup destroys the session and stops every loop. Safe to call twice.
func (s *Studio) Cleanup(ctx context.Context) error {
	err := s.mgr.Destroy(ctx)
	s.eq.Close()
	s.nr.Close()
	s.zoom.Controller().Close()
	s.exposure.Controller().Close()
	return err
}

// Status returns the studio's current values.
func (s *Studio) Status() Status {
	snap := s.mgr.Snapshot()
	eq := s.eq.State()
	return Status{
		Source:         s.source.ID,
		SessionID:      string(snap.SessionID),
		State:          snap.State.String(),
		Ready:          s.mgr.IsReady(),
		Processing:     s.IsProcessing(),
		Gains:          eq.Gains,
		Master:         eq.Master,
		Preset:         string(eq.Preset),
		AutoEQ:         eq.Enabled,
		Aggressiveness: s.nr.Aggressiveness(),
		AutoNR:         s.nr.Enabled(),
		Zoom:           s.zoom.CurrentZoom(),
		Exposure:       s.exposure.CurrentExposure(),
		CPUUsage:       snap.CPUUsage,
		AntiBandingHz:  s.source.AntiBandingHz,
	}
}

func (s *Studio) stateChanged(from, to session.State) {
	s.log.Debug("session state", zap.Stringer("from", from), zap.Stringer("to", to))
	s.pub.Emit(events.Event{
		Type:      events.TypeState,
		Source:    s.source.ID,
		SessionID: string(s.mgr.SessionID()),
		State:     to.String(),
	})
}

func (s *Studio) paramsChanged() {
	eq := s.eq.State()
	s.pub.Emit(events.Event{
		Type:           events.TypeParams,
		Source:         s.source.ID,
		Gains:          eq.Gains.Slice(),
		Master:         events.F(eq.Master),
		Preset:         string(eq.Preset),
		Aggressiveness: events.F(s.nr.Aggressiveness()),
		Zoom:           events.F(s.zoom.CurrentZoom()),
		Exposure:       events.F(s.exposure.CurrentExposure()),
		Adjusting:      events.B(s.IsProcessing()),
	})
}

func (s *Studio) levelObserved(sample engine.LevelSample) {
	s.pub.Emit(events.Event{
		Type:     events.TypeLevel,
		Source:   s.source.ID,
		At:       sample.At,
		Level:    events.F(sample.Level),
		Silent:   sample.Silent,
		Clipping: sample.Clipping,
		CPU:      events.F(s.mgr.CPUUsage()),
	})
}
