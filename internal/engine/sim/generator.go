package sim

import (
	"math"
	"math/rand/v2"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// Segment is one stretch of the synthetic programme.
type Segment struct {
	Amplitude float64 // peak of the tone before gain, may exceed 1
	Noise     float64 // peak of the uniform noise floor
	Blocks    int
}

// DefaultScene cycles speech, a loud passage, silence and a clipping burst.
var DefaultScene = []Segment{
	{Amplitude: 0.35, Noise: 0.02, Blocks: 40},
	{Amplitude: 0.95, Noise: 0.02, Blocks: 20},
	{Amplitude: 0, Noise: 0.004, Blocks: 20},
	{Amplitude: 1.3, Noise: 0.02, Blocks: 10},
}

const toneHz = 440.0

// generator renders a looping scene into fixed-size blocks.
type generator struct {
	scene      []Segment
	sampleRate float64
	phase      float64
	segment    int
	block      int
	rng        *rand.Rand

	tone  []float64
	noise []float64
}

func newGenerator(scene []Segment, sampleRate, blockSize int, seed uint64) *generator {
	if len(scene) == 0 {
		scene = DefaultScene
	}
	return &generator{
		scene:      scene,
		sampleRate: float64(sampleRate),
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		tone:       make([]float64, blockSize),
		noise:      make([]float64, blockSize),
	}
}

// next fills dst with the next block, scaled by the linear gain.
func (g *generator) next(dst []float64, gain float64) {
	seg := g.scene[g.segment]

	step := 2 * math.Pi * toneHz / g.sampleRate
	for i := range g.tone {
		g.tone[i] = seg.Amplitude * math.Sin(g.phase)
		g.phase += step
		g.noise[i] = seg.Noise * (2*g.rng.Float64() - 1)
	}
	g.phase = math.Mod(g.phase, 2*math.Pi)

	vecmath.AddBlockInPlace(g.tone, g.noise)
	vecmath.ScaleBlock(dst, g.tone, gain)

	g.block++
	if g.block >= seg.Blocks {
		g.block = 0
		g.segment = (g.segment + 1) % len(g.scene)
	}
}

// dbToLinear converts a gain in dB to a linear factor.
func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
