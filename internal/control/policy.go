// Package control runs the closed-loop equalizer and noise-reduction
// adjustments driven by live level samples.
package control

import (
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
)

// Hysteresis constants. These are fixed behaviour, not tuning knobs.
const (
	// Equalizer master gain
	eqLoudLevel  = 0.8 // above: cut
	eqQuietLevel = 0.3 // below: boost
	eqCutDB      = 2.0 // dB removed per loud sample
	eqBoostDB    = 1.0 // dB added per quiet sample

	// Noise reduction aggressiveness
	nrLoudLevel    = 0.7
	nrSilenceStep  = 0.3 // relaxed during silence
	nrClippingStep = 0.5
	nrLoudStep     = 0.2
)

// NextMasterGain applies the equalizer hysteresis to one level sample and
// reports whether the master gain changed.
func NextMasterGain(master, level float64) (float64, bool) {
	next := master
	switch {
	case level > eqLoudLevel:
		next = limiter.Step(master, -eqCutDB, engine.MinBandGain, engine.MaxBandGain)
	case level < eqQuietLevel && master < engine.MaxBandGain:
		next = limiter.Step(master, eqBoostDB, engine.MinBandGain, engine.MaxBandGain)
	}
	return next, next != master
}

// NextAggressiveness applies the noise-reduction hysteresis to one sample.
// Exactly one branch applies: silence, then clipping, then loudness.
func NextAggressiveness(current float64, s engine.LevelSample) (float64, bool) {
	var delta float64
	switch {
	case s.Silent:
		delta = -nrSilenceStep
	case s.Clipping:
		delta = nrClippingStep
	case s.Level > nrLoudLevel:
		delta = nrLoudStep
	default:
		return current, false
	}
	next := limiter.Step(current, delta, engine.MinAggressiveness, engine.MaxAggressiveness)
	return next, next != current
}
