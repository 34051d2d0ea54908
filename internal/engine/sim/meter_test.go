package sim

import (
	"math"
	"testing"
	"time"
)

func sine(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*float64(i)/48)
	}
	return out
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name         string
		block        []float64
		wantLevel    float64
		wantSilent   bool
		wantClipping bool
	}{
		{"full scale sine", sine(4800, 1), 1, false, true},
		{"half scale sine", sine(4800, 0.5), 0.5, false, false},
		{"near silence", sine(4800, 0.001), 0.001, true, false},
		{"empty", nil, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratch := make([]float64, len(tt.block))
			got := Measure(tt.block, scratch).Sample(time.Time{})
			if math.Abs(got.Level-tt.wantLevel) > 0.01 {
				t.Errorf("Level = %.4f, want %.4f", got.Level, tt.wantLevel)
			}
			if got.Silent != tt.wantSilent {
				t.Errorf("Silent = %v, want %v", got.Silent, tt.wantSilent)
			}
			if got.Clipping != tt.wantClipping {
				t.Errorf("Clipping = %v, want %v", got.Clipping, tt.wantClipping)
			}
		})
	}
}

func TestGeneratorAppliesGain(t *testing.T) {
	scene := []Segment{{Amplitude: 0.5, Blocks: 1}}
	block := make([]float64, 960)
	scratch := make([]float64, 960)

	unity := newGenerator(scene, 48000, 960, 1)
	unity.next(block, 1)
	base := Measure(block, scratch).RMS

	cut := newGenerator(scene, 48000, 960, 1)
	cut.next(block, dbToLinear(-6))
	got := Measure(block, scratch).RMS

	if ratio := got / base; math.Abs(ratio-0.501) > 0.01 {
		t.Errorf("-6 dB ratio = %.3f, want ~0.501", ratio)
	}
}

func TestGeneratorAdvancesScene(t *testing.T) {
	scene := []Segment{{Amplitude: 0.5, Blocks: 2}, {Amplitude: 0, Blocks: 1}}
	g := newGenerator(scene, 48000, 64, 1)
	block := make([]float64, 64)
	for range 2 {
		g.next(block, 1)
	}
	if g.segment != 1 {
		t.Fatalf("segment = %d after 2 blocks, want 1", g.segment)
	}
	g.next(block, 1)
	if g.segment != 0 {
		t.Errorf("segment = %d after wrap, want 0", g.segment)
	}
}
