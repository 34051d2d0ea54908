package control

import (
	"context"
	"sync"

	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/presets"
)

// GainTarget is where the equalizer sends its vectors.
type GainTarget interface {
	ApplyGains(ctx context.Context, gains engine.GainVector) error
	ApplyPreset(ctx context.Context, id engine.PresetID, gains engine.GainVector) error
}

// PresetSource resolves preset ids.
type PresetSource interface {
	Lookup(ctx context.Context, id engine.PresetID) (presets.Preset, error)
}

// EqualizerState is a copy of the loop's values.
type EqualizerState struct {
	Gains   engine.GainVector // effective vector: shape plus master, clamped
	Shape   engine.GainVector
	Master  float64
	Preset  engine.PresetID
	Enabled bool
}

// Equalizer trims a master gain on top of the preset's band shape in
// response to level samples.
type Equalizer struct {
	target  GainTarget
	presets PresetSource
	cfg     config
	push    *debounce.Channel[engine.GainVector]

	mu      sync.Mutex
	enabled bool
	shape   engine.GainVector
	master  float64
	preset  engine.PresetID
}

// NewEqualizer returns an enabled loop on the flat preset.
func NewEqualizer(target GainTarget, source PresetSource, opts ...Option) *Equalizer {
	e := &Equalizer{
		target:  target,
		presets: source,
		cfg:     newConfig(engine.OpApplyGains, opts),
		enabled: true,
		preset:  engine.FlatPreset,
	}
	e.push = debounce.New[engine.GainVector](e.target.ApplyGains, e.cfg.debounce...)
	return e
}

// Observe feeds one level sample through the hysteresis policy.
func (e *Equalizer) Observe(s engine.LevelSample) {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	next, changed := NextMasterGain(e.master, s.Level)
	if !changed {
		e.mu.Unlock()
		return
	}
	e.master = next
	e.push.Request(e.effectiveLocked())
	e.mu.Unlock()

	e.cfg.changed()
}

// LoadPreset replaces the band shape and resets the master gain to the
// preset baseline, then pushes once without debouncing. Pending and
// in-flight stream pushes are settled first so they cannot overwrite it.
// Requests are only queued while holding e.mu, so once the shape is
// swapped no vector built on the old shape can be queued.
func (e *Equalizer) LoadPreset(ctx context.Context, id engine.PresetID) error {
	if id == "" {
		id = engine.FlatPreset
	}
	p, err := e.presets.Lookup(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.push.Cancel()
	e.shape = p.Bands.Clamped()
	e.master = p.Baseline
	e.preset = p.ID
	e.mu.Unlock()

	if err := e.push.Flush(ctx); err != nil {
		return err
	}

	// Samples observed since the swap are folded into the preset push.
	e.mu.Lock()
	e.push.Cancel()
	v := e.effectiveLocked()
	e.mu.Unlock()

	e.cfg.changed()
	if err := e.target.ApplyPreset(ctx, p.ID, v); err != nil {
		e.cfg.report.Report(engine.OpApplyGains, err)
	}
	return nil
}

// SetGains replaces the band shape with a user vector and zeroes the master
// trim. The push is debounced since sliders produce bursts.
func (e *Equalizer) SetGains(gains engine.GainVector) engine.GainVector {
	e.mu.Lock()
	e.shape = gains.Clamped()
	e.master = 0
	v := e.effectiveLocked()
	e.push.Request(v)
	e.mu.Unlock()

	e.cfg.changed()
	return v
}

// SetEnabled turns sample processing on or off. Disabling drops any
// pending push.
func (e *Equalizer) SetEnabled(on bool) {
	e.mu.Lock()
	e.enabled = on
	e.mu.Unlock()
	if !on {
		e.push.Cancel()
	}
}

// State returns a copy of the loop's values.
func (e *Equalizer) State() EqualizerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EqualizerState{
		Gains:   e.effectiveLocked(),
		Shape:   e.shape,
		Master:  e.master,
		Preset:  e.preset,
		Enabled: e.enabled,
	}
}

// Gains is the effective vector last requested.
func (e *Equalizer) Gains() engine.GainVector { return e.State().Gains }

// Master is the current master trim in dB.
func (e *Equalizer) Master() float64 { return e.State().Master }

// Adjusting reports whether a push is in flight.
func (e *Equalizer) Adjusting() bool { return e.push.Adjusting() }

// Flush pushes any pending vector now and waits for it to settle.
func (e *Equalizer) Flush(ctx context.Context) error { return e.push.Flush(ctx) }

// Cancel drops a pending push.
func (e *Equalizer) Cancel() { e.push.Cancel() }

// Close stops the loop for good.
func (e *Equalizer) Close() {
	e.SetEnabled(false)
	e.push.Close()
}

func (e *Equalizer) effectiveLocked() engine.GainVector {
	return e.shape.Offset(e.master)
}
