package limiter

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      float64
		min, max float64
		want     float64
	}{
		{"in range", 1.5, 0.5, 3.0, 1.5},
		{"below", -10, -6, 6, -6},
		{"above", 7, -6, 6, 6},
		{"at min", -6, -6, 6, -6},
		{"at max", 6, -6, 6, 6},
		{"degenerate range", 4, 2, 2, 2},
		{"swapped bounds", 10, 6, -6, 6},
		{"NaN", math.NaN(), 0.5, 3.0, 0.5},
		{"+Inf", math.Inf(1), 0, 1, 1},
		{"-Inf", math.Inf(-1), 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.val, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.val, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestClampProperty(t *testing.T) {
	// Sweep a grid of values and ordered bounds: result always in range,
	// identity when already in range.
	for lo := -10.0; lo <= 10; lo += 2.5 {
		for hi := lo; hi <= 10; hi += 2.5 {
			for v := -20.0; v <= 20; v += 0.75 {
				got := Clamp(v, lo, hi)
				if got < lo || got > hi {
					t.Fatalf("Clamp(%v, %v, %v) = %v, outside range", v, lo, hi, got)
				}
				if v >= lo && v <= hi && got != v {
					t.Fatalf("Clamp(%v, %v, %v) = %v, want identity", v, lo, hi, got)
				}
			}
		}
	}
}

func TestStep(t *testing.T) {
	if got := Step(5.5, 1, -6, 6); got != 6 {
		t.Errorf("Step(5.5, 1) = %v, want 6", got)
	}
	if got := Step(-5, -2, -6, 6); got != -6 {
		t.Errorf("Step(-5, -2) = %v, want -6", got)
	}
	if got := Step(0, 1, -6, 6); got != 1 {
		t.Errorf("Step(0, 1) = %v, want 1", got)
	}
}

func TestRange(t *testing.T) {
	r := Range{Min: 1, Max: 10, Step: 0.5, Default: 1}

	if got := r.Increase(9.8); got != 10 {
		t.Errorf("Increase(9.8) = %v, want 10", got)
	}
	if got := r.Decrease(1.2); got != 1 {
		t.Errorf("Decrease(1.2) = %v, want 1", got)
	}
	if got := r.Increase(2); got != 2.5 {
		t.Errorf("Increase(2) = %v, want 2.5", got)
	}
	if got := r.Reset(); got != 1 {
		t.Errorf("Reset() = %v, want 1", got)
	}

	outOfRangeDefault := Range{Min: -2, Max: 2, Step: 0.1, Default: 5}
	if got := outOfRangeDefault.Reset(); got != 2 {
		t.Errorf("Reset() with default outside range = %v, want 2", got)
	}
}
