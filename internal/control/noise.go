package control

import (
	"context"
	"sync"

	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
)

// AggressivenessTarget receives noise-reduction strength updates.
type AggressivenessTarget interface {
	ApplyAggressiveness(ctx context.Context, level float64) error
}

// NoiseReduction adjusts the noise-reduction strength from level samples.
type NoiseReduction struct {
	cfg  config
	push *debounce.Channel[float64]

	mu      sync.Mutex
	enabled bool
	value   float64
}

// NewNoiseReduction returns an enabled loop at the default strength.
func NewNoiseReduction(target AggressivenessTarget, opts ...Option) *NoiseReduction {
	n := &NoiseReduction{
		cfg:     newConfig(engine.OpApplyAggressiveness, opts),
		enabled: true,
		value:   engine.DefaultAggressiveness,
	}
	n.push = debounce.New[float64](target.ApplyAggressiveness, n.cfg.debounce...)
	return n
}

// Observe feeds one sample through the policy.
func (n *NoiseReduction) Observe(s engine.LevelSample) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	next, changed := NextAggressiveness(n.value, s)
	if !changed {
		n.mu.Unlock()
		return
	}
	n.value = next
	n.push.Request(next)
	n.mu.Unlock()

	n.cfg.changed()
}

// Set overrides the strength directly, clamped, and schedules a push.
func (n *NoiseReduction) Set(level float64) float64 {
	level = engine.ClampAggressiveness(level)
	n.mu.Lock()
	n.value = level
	n.push.Request(level)
	n.mu.Unlock()

	n.cfg.changed()
	return level
}

// SetEnabled turns sample processing on or off.
func (n *NoiseReduction) SetEnabled(on bool) {
	n.mu.Lock()
	n.enabled = on
	n.mu.Unlock()
	if !on {
		n.push.Cancel()
	}
}

// Enabled reports whether samples are processed.
func (n *NoiseReduction) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// Aggressiveness is the current strength.
func (n *NoiseReduction) Aggressiveness() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

func (n *NoiseReduction) Adjusting() bool                 { return n.push.Adjusting() }
func (n *NoiseReduction) Flush(ctx context.Context) error { return n.push.Flush(ctx) }
func (n *NoiseReduction) Cancel()                         { n.push.Cancel() }

// Close stops the loop for good.
func (n *NoiseReduction) Close() {
	n.SetEnabled(false)
	n.push.Close()
}
