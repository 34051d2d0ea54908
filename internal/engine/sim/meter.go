package sim

import (
	"math"
	"time"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// Metering thresholds.
const (
	silenceRMS = 0.01 // -40 dBFS
	clipPeak   = 0.99
)

// Reading is the raw measurement of one block.
type Reading struct {
	Peak float64
	RMS  float64
}

// Measure returns the peak and RMS of block. scratch must be at least
// len(block) long; it is overwritten.
func Measure(block, scratch []float64) Reading {
	if len(block) == 0 {
		return Reading{}
	}
	sq := scratch[:len(block)]
	vecmath.MulBlock(sq, block, block)

	var sum float64
	for _, v := range sq {
		sum += v
	}
	var peak float64
	for _, v := range block {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return Reading{Peak: peak, RMS: math.Sqrt(sum / float64(len(block)))}
}

// Sample converts a reading to a normalised level sample. A full-scale
// sine reads as level 1.
func (r Reading) Sample(at time.Time) engine.LevelSample {
	level := math.Min(1, r.RMS*math.Sqrt2)
	return engine.LevelSample{
		Level:    level,
		Silent:   r.RMS < silenceRMS,
		Clipping: r.Peak >= clipPeak,
		At:       at,
	}
}
