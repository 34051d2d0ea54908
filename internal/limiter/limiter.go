// Package limiter bounds numeric control parameters.
package limiter

import "math"

// Range describes the bounds of one controllable parameter.
// Step is only used by increment/decrement helpers.
type Range struct {
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

// Clamp restricts val to [min, max]. NaN clamps to min and swapped bounds
// are normalised, so the result is always inside the range.
func Clamp(val, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	if math.IsNaN(val) || val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Step applies delta to current and clamps the result.
func Step(current, delta, min, max float64) float64 {
	return Clamp(current+delta, min, max)
}

// Clamp restricts val to the range bounds.
func (r Range) Clamp(val float64) float64 {
	return Clamp(val, r.Min, r.Max)
}

// Increase moves current up by one step.
func (r Range) Increase(current float64) float64 {
	return Step(current, r.Step, r.Min, r.Max)
}

// Decrease moves current down by one step.
func (r Range) Decrease(current float64) float64 {
	return Step(current, -r.Step, r.Min, r.Max)
}

// Reset returns the clamped default value.
func (r Range) Reset() float64 {
	return r.Clamp(r.Default)
}
