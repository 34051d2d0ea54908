// Package session owns the lifecycle of one external media session and is
// the only code that talks to the engine. Engine failures never reach the
// caller: they become state transitions or no-ops and are handed to the
// Reporter.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/slots"
)

// DefaultCallTimeout bounds each engine call.
const DefaultCallTimeout = 6 * time.Second

// Canceler is anything holding pending work for the session, typically a
// debounce channel.
type Canceler interface {
	Cancel()
}

// LevelListener receives level samples while the session is attached.
type LevelListener func(engine.LevelSample)

// StateHook observes transitions. It runs outside the manager lock.
type StateHook func(from, to State)

// Option configures a Manager.
type Option func(*Manager)

// WithReporter sets the sink for recovered failures.
func WithReporter(r engine.Reporter) Option {
	return func(m *Manager) {
		if r != nil {
			m.report = r
		}
	}
}

// WithSlots makes Initialize claim the source in r.
func WithSlots(r slots.Registry) Option {
	return func(m *Manager) { m.slots = r }
}

// WithStrict makes invalid transitions panic. Use in development builds.
func WithStrict(strict bool) Option {
	return func(m *Manager) { m.strict = strict }
}

// WithCallTimeout bounds each engine call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithStateHook registers h for state transitions.
func WithStateHook(h StateHook) Option {
	return func(m *Manager) { m.onState = h }
}

// WithOwner sets the identity used for source claims.
func WithOwner(owner string) Option {
	return func(m *Manager) {
		if owner != "" {
			m.owner = owner
		}
	}
}

// Snapshot is a consistent copy of the manager's observable state.
type Snapshot struct {
	State          State
	SessionID      engine.SessionID
	Source         engine.SourceRef
	Target         engine.TargetRef
	Gains          engine.GainVector
	Aggressiveness float64
	Preset         engine.PresetID
	Zoom           float64
	Exposure       float64
	CPUUsage       float64
}

type transition struct{ from, to State }

// Manager drives one session. A nil engine behaves as an unavailable one.
type Manager struct {
	eng     engine.Engine
	slots   slots.Registry
	report  engine.Reporter
	strict  bool
	timeout time.Duration
	onState StateHook
	owner   string

	mu        sync.Mutex
	state     State
	attaching bool
	claimed   bool
	source    engine.SourceRef
	target    engine.TargetRef
	id        engine.SessionID

	gains          engine.GainVector
	aggressiveness float64
	preset         engine.PresetID
	zoom           float64
	exposure       float64
	cpu            float64
	export         *engine.ExportConfig

	cancelers []Canceler
	listeners []LevelListener
	stopPump  context.CancelFunc
	pumpDone  chan struct{}
}

// New returns a Manager in StateUninitialized.
func New(eng engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		eng:     eng,
		report:  engine.NopReporter,
		timeout: DefaultCallTimeout,
		owner:   uuid.NewString(),
	}
	m.resetLocked()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) resetLocked() {
	m.gains = engine.GainVector{}
	m.aggressiveness = engine.DefaultAggressiveness
	m.preset = engine.FlatPreset
	m.zoom = 1
	m.exposure = 0
	m.cpu = 0
	m.export = nil
}

// Initialize claims the source and creates the engine session. A missing or
// failing engine moves the session to StateUnavailable and is not an error.
func (m *Manager) Initialize(ctx context.Context, source engine.SourceRef) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		from := m.state
		m.mu.Unlock()
		return m.invalid("initialize", from, nil)
	}
	m.source = source
	t := m.setLocked(StateInitializing)
	m.mu.Unlock()
	m.notify(t)

	if m.slots != nil {
		if err := m.claim(ctx, source); err != nil {
			return err
		}
	}

	if m.eng == nil {
		m.fail(engine.OpCreateSession, &engine.Error{Op: engine.OpCreateSession, Kind: engine.KindUnavailable, Err: engine.ErrUnavailable})
		return nil
	}

	cctx, cancel := m.callContext(ctx)
	id, err := m.eng.CreateSession(cctx, source)
	cancel()

	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		if err == nil {
			m.destroyRemote(context.WithoutCancel(ctx), id)
		}
		return nil
	}
	if err != nil {
		t := m.setLocked(StateUnavailable)
		m.mu.Unlock()
		m.notify(t)
		m.report.Report(engine.OpCreateSession, err)
		return nil
	}
	m.id = id
	t = m.setLocked(StateReady)
	m.mu.Unlock()
	m.notify(t)

	m.startPump(id)
	return nil
}

// claim takes the source slot. A second live session for the source is a
// caller error; a registry outage is reported and the session continues.
func (m *Manager) claim(ctx context.Context, source engine.SourceRef) error {
	err := m.slots.Claim(ctx, source.ID, m.owner)
	switch {
	case errors.Is(err, slots.ErrClaimed):
		m.mu.Lock()
		var ts []transition
		if m.state == StateInitializing {
			ts = append(ts, m.setLocked(StateUninitialized))
		}
		m.mu.Unlock()
		m.notify(ts...)
		return m.invalid("initialize", StateUninitialized, err)
	case err != nil:
		m.report.Report("slots.claim", err)
		return nil
	}

	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		m.release(context.WithoutCancel(ctx), source)
		return nil
	}
	m.claimed = true
	m.mu.Unlock()
	return nil
}

// Attach binds the session to a playback or recording target.
func (m *Manager) Attach(ctx context.Context, target engine.TargetRef) error {
	m.mu.Lock()
	if m.state != StateReady || m.attaching {
		from := m.state
		m.mu.Unlock()
		return m.invalid(engine.OpAttach, from, nil)
	}
	m.attaching = true
	id := m.id
	m.mu.Unlock()

	cctx, cancel := m.callContext(ctx)
	err := m.eng.Attach(cctx, id, target)
	cancel()

	m.mu.Lock()
	m.attaching = false
	if m.state != StateReady {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		t := m.setLocked(StateUnavailable)
		m.mu.Unlock()
		m.notify(t)
		m.report.Report(engine.OpAttach, err)
		return nil
	}
	m.target = target
	t := m.setLocked(StateAttached)
	m.mu.Unlock()
	m.notify(t)
	return nil
}

// ApplyGains replaces the gain vector. Bands are clamped.
func (m *Manager) ApplyGains(ctx context.Context, gains engine.GainVector) error {
	gains = gains.Clamped()
	return m.apply(ctx, engine.OpApplyGains,
		func() { m.gains = gains },
		func(ctx context.Context, id engine.SessionID) error {
			return m.eng.ApplyGains(ctx, id, gains)
		})
}

// ApplyPreset replaces the gain vector and records the preset it came from.
func (m *Manager) ApplyPreset(ctx context.Context, preset engine.PresetID, gains engine.GainVector) error {
	if preset == "" {
		preset = engine.FlatPreset
	}
	gains = gains.Clamped()
	return m.apply(ctx, engine.OpApplyGains,
		func() {
			m.gains = gains
			m.preset = preset
		},
		func(ctx context.Context, id engine.SessionID) error {
			return m.eng.ApplyGains(ctx, id, gains)
		})
}

// ApplyAggressiveness sets the noise-reduction strength, clamped.
func (m *Manager) ApplyAggressiveness(ctx context.Context, level float64) error {
	level = engine.ClampAggressiveness(level)
	return m.apply(ctx, engine.OpApplyAggressiveness,
		func() { m.aggressiveness = level },
		func(ctx context.Context, id engine.SessionID) error {
			return m.eng.ApplyAggressiveness(ctx, id, level)
		})
}

// ApplyZoom forwards a zoom factor already clamped by its controller.
func (m *Manager) ApplyZoom(ctx context.Context, zoom float64) error {
	return m.apply(ctx, engine.OpApplyZoom,
		func() { m.zoom = zoom },
		func(ctx context.Context, id engine.SessionID) error {
			return m.eng.ApplyZoom(ctx, id, zoom)
		})
}

// ApplyExposure forwards an exposure bias already clamped by its controller.
func (m *Manager) ApplyExposure(ctx context.Context, exposure float64) error {
	return m.apply(ctx, engine.OpApplyExposure,
		func() { m.exposure = exposure },
		func(ctx context.Context, id engine.SessionID) error {
			return m.eng.ApplyExposure(ctx, id, exposure)
		})
}

// apply updates local state and, when attached, forwards to the engine.
// Unavailable sessions keep the local value only; destroyed sessions drop
// the call.
// CheckParams is the synchronous form of the state check every parameter
// call makes. It fails on the caller's goroutine, panicking in strict mode,
// when parameters are not accepted: before attach and while exporting.
func (m *Manager) CheckParams(op string) error {
	m.mu.Lock()
	from := m.state
	m.mu.Unlock()
	switch from {
	case StateAttached, StateUnavailable, StateDestroyed:
		return nil
	}
	return m.invalid(op, from, nil)
}

func (m *Manager) apply(ctx context.Context, op string, set func(), call func(context.Context, engine.SessionID) error) error {
	m.mu.Lock()
	switch m.state {
	case StateDestroyed:
		m.mu.Unlock()
		return nil
	case StateAttached, StateUnavailable:
	default:
		// apply usually runs on a debounce goroutine, so it reports rather
		// than panics; strict callers assert through CheckParams first.
		err := &TransitionError{Op: op, From: m.state}
		m.mu.Unlock()
		m.report.Report(op, err)
		return err
	}
	set()
	live := m.state == StateAttached
	id := m.id
	m.mu.Unlock()

	if !live {
		return nil
	}
	cctx, cancel := m.callContext(ctx)
	err := call(cctx, id)
	cancel()
	if err != nil {
		m.fail(op, err)
	}
	return nil
}

// PrepareExport snapshots the current parameters. From StateAttached the
// snapshot is bound to the engine's export step; an unavailable or
// destroyed session yields a disabled record immediately. Repeated calls
// while exporting return the first record.
func (m *Manager) PrepareExport(ctx context.Context, enc engine.EncodingParams) (engine.ExportConfig, error) {
	m.mu.Lock()
	switch m.state {
	case StateExporting:
		cfg := *m.export
		m.mu.Unlock()
		return cfg, nil
	case StateUnavailable:
		cfg := engine.Disabled(enc)
		cfg.Gains = m.gains
		cfg.Aggressiveness = m.aggressiveness
		cfg.Preset = m.preset
		m.mu.Unlock()
		return cfg, nil
	case StateDestroyed:
		m.mu.Unlock()
		return engine.Disabled(enc), nil
	case StateAttached:
	default:
		from := m.state
		m.mu.Unlock()
		return engine.Disabled(enc), m.invalid(engine.OpPrepareExport, from, nil)
	}

	cfg := engine.ExportConfig{
		SessionID:      m.id,
		Gains:          m.gains,
		Aggressiveness: m.aggressiveness,
		Preset:         m.preset,
		Valid:          true,
		Encoding:       enc,
	}
	pending := cfg
	m.export = &pending
	t := m.setLocked(StateExporting)
	id := m.id
	m.mu.Unlock()
	m.notify(t)

	cctx, cancel := m.callContext(ctx)
	handle, err := m.eng.PrepareExport(cctx, id, cfg)
	cancel()

	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return engine.Disabled(enc), nil
	}
	if err != nil {
		// The engine never bound the configuration; the export stage
		// proceeds without post-processing.
		cfg.Valid = false
	} else {
		cfg.Handle = handle
	}
	final := cfg
	m.export = &final
	m.mu.Unlock()

	if err != nil {
		m.fail(engine.OpPrepareExport, err)
	}
	return cfg, nil
}

// Destroy tears the session down. It is idempotent: only the first call
// cancels tracked work, stops the event stream, destroys the engine session
// and releases the source. Destroy must not be called from a LevelListener.
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return nil
	}
	t := m.setLocked(StateDestroyed)
	id := m.id
	source := m.source
	claimed := m.claimed
	cancelers := m.cancelers
	stop, done := m.stopPump, m.pumpDone
	m.id = ""
	m.claimed = false
	m.cancelers = nil
	m.listeners = nil
	m.stopPump, m.pumpDone = nil, nil
	m.resetLocked()
	m.mu.Unlock()
	m.notify(t)

	for _, c := range cancelers {
		c.Cancel()
	}
	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	if id != "" && m.eng != nil {
		m.destroyRemote(ctx, id)
	}
	if claimed {
		m.release(ctx, source)
	}
	return nil
}

// Track registers c to be cancelled on Destroy. Tracking after Destroy
// cancels c at once.
func (m *Manager) Track(c Canceler) {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		c.Cancel()
		return
	}
	m.cancelers = append(m.cancelers, c)
	m.mu.Unlock()
}

// OnLevel registers fn for level samples. Samples are delivered one at a
// time from a single goroutine, only while the session is attached.
func (m *Manager) OnLevel(fn LevelListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDestroyed {
		return
	}
	m.listeners = append(m.listeners[:len(m.listeners):len(m.listeners)], fn)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsReady reports whether the session can be driven. An unavailable engine
// still counts as ready so callers never block on it.
func (m *Manager) IsReady() bool {
	switch m.State() {
	case StateReady, StateAttached, StateExporting, StateUnavailable:
		return true
	}
	return false
}

func (m *Manager) Gains() engine.GainVector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gains
}

func (m *Manager) Aggressiveness() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aggressiveness
}

func (m *Manager) Preset() engine.PresetID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preset
}

// CPUUsage is the latest engine telemetry reading in percent.
func (m *Manager) CPUUsage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpu
}

func (m *Manager) SessionID() engine.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *Manager) Source() engine.SourceRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Snapshot returns all observable state under one lock.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:          m.state,
		SessionID:      m.id,
		Source:         m.source,
		Target:         m.target,
		Gains:          m.gains,
		Aggressiveness: m.aggressiveness,
		Preset:         m.preset,
		Zoom:           m.zoom,
		Exposure:       m.exposure,
		CPUUsage:       m.cpu,
	}
}

func (m *Manager) startPump(id engine.SessionID) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		stop()
		return
	}
	m.stopPump, m.pumpDone = stop, done
	m.mu.Unlock()

	events, err := m.eng.Subscribe(ctx, id)
	if err != nil {
		close(done)
		if ctx.Err() == nil {
			m.report.Report(engine.OpSubscribe, err)
		}
		return
	}
	go m.pump(ctx, events, done)
}

func (m *Manager) pump(ctx context.Context, events <-chan engine.Event, done chan struct{}) {
	defer close(done)
	for {
		var ev engine.Event
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev = e
		}

		m.mu.Lock()
		if ev.Kind == engine.EventTelemetry {
			if m.state != StateDestroyed {
				m.cpu = ev.CPUUsage
			}
			m.mu.Unlock()
			continue
		}
		live := m.state == StateAttached
		listeners := m.listeners
		m.mu.Unlock()

		if !live {
			continue
		}
		for _, fn := range listeners {
			fn(ev.Sample)
		}
	}
}

// fail reports an engine failure, degrading to StateUnavailable when the
// engine is gone. Failures after Destroy are discarded.
func (m *Manager) fail(op string, err error) {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return
	}
	var ts []transition
	if engine.KindOf(err) == engine.KindUnavailable {
		ts = append(ts, m.setLocked(StateUnavailable))
	}
	m.mu.Unlock()
	m.notify(ts...)
	m.report.Report(op, err)
}

func (m *Manager) destroyRemote(ctx context.Context, id engine.SessionID) {
	cctx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.eng.DestroySession(cctx, id); err != nil {
		m.report.Report(engine.OpDestroySession, err)
	}
}

func (m *Manager) release(ctx context.Context, source engine.SourceRef) {
	if err := m.slots.Release(ctx, source.ID, m.owner); err != nil {
		m.report.Report("slots.release", err)
	}
}

func (m *Manager) invalid(op string, from State, reason error) error {
	err := &TransitionError{Op: op, From: from, Reason: reason}
	if m.strict {
		panic(err)
	}
	m.report.Report(op, err)
	return err
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

func (m *Manager) setLocked(to State) transition {
	t := transition{from: m.state, to: to}
	m.state = to
	return t
}

func (m *Manager) notify(ts ...transition) {
	if m.onState == nil {
		return
	}
	for _, t := range ts {
		if t.from != t.to {
			m.onState(t.from, t.to)
		}
	}
}
