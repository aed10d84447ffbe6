package tinnitus

import "hdspcore/internal/biquad"

// NoiseType selects the masking-noise generator's spectral shape.
type NoiseType int

const (
	NoiseOff NoiseType = iota
	NoiseWhite
	NoisePink
	NoiseBrown
)

// vossRows is the number of summed accumulators in the Voss-McCartney pink
// noise approximation. More rows extend the -3 dB/octave shape to lower
// frequencies at the cost of a little more state.
const vossRows = 7

// xorshift32 is a fast, allocation-free, non-cryptographic PRNG — more than
// sufficient for uniform dither/masking noise and far cheaper than
// math/rand's default source in a per-sample hot path.
type xorshift32 struct {
	state uint32
}

func newXorshift32(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 0x9E3779B9 // avoid the all-zero fixed point
	}
	return &xorshift32{state: seed}
}

func (x *xorshift32) next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

// uniform returns a value in [-1, 1].
func (x *xorshift32) uniform() float32 {
	return float32(x.next())/float32(1<<31) - 1
}

// Generator produces masking noise of the configured NoiseType, bandpass
// shaped by an owned HPF/LPF pair (spec.md §4.6: "bandpass-shaped by
// per-channel HPF/LPF biquads tuned from noiseLowCut/noiseHighCut").
type Generator struct {
	rng *xorshift32

	// Voss-McCartney pink noise state: each row updates at half the rate of
	// the one above it, and the sum of all rows approximates 1/f noise.
	vossRow     [vossRows]float32
	vossCounter uint32

	brownState float32

	hpf, lpf biquad.Biquad
}

// NewGenerator returns a noise Generator seeded deterministically from seed
// (vary the seed per channel so left/right masking noise decorrelates).
func NewGenerator(seed uint32) *Generator {
	return &Generator{rng: newXorshift32(seed)}
}

// Configure (re)tunes the bandpass shaping filters. Call whenever
// lowCut/highCut/sampleRate change.
func (g *Generator) Configure(lowCut, highCut, sampleRate float64) {
	g.hpf.SetCoefficients(biquad.HighPass(lowCut, sampleRate))
	g.lpf.SetCoefficients(biquad.LowPass(highCut, sampleRate))
}

// Reset clears all generator state (PRNG state is preserved so the noise
// character doesn't restart identically after every parameter change).
func (g *Generator) Reset() {
	g.vossRow = [vossRows]float32{}
	g.vossCounter = 0
	g.brownState = 0
	g.hpf.Reset()
	g.lpf.Reset()
}

// Generate fills out with noise of the given type at the given level
// (linear amplitude), bandpass shaped. Silent when typ is NoiseOff.
func (g *Generator) Generate(out []float32, typ NoiseType, level float32) {
	for i := range out {
		var s float32
		switch typ {
		case NoiseWhite:
			s = g.rng.uniform()
		case NoisePink:
			s = g.pink()
		case NoiseBrown:
			s = g.brown()
		default:
			out[i] = 0
			continue
		}
		out[i] = s * level
	}
	if typ != NoiseOff {
		g.hpf.ProcessBuffer(out)
		g.lpf.ProcessBuffer(out)
	}
}

// pink advances the Voss-McCartney accumulator by one sample. Row k updates
// once every 2^k samples, and the output is the sum of all rows, scaled to
// keep the output comparable in level to the white-noise generator.
func (g *Generator) pink() float32 {
	g.vossCounter++
	var sum float32
	for k := 0; k < vossRows; k++ {
		if g.vossCounter&((1<<uint(k))-1) == 0 {
			g.vossRow[k] = g.rng.uniform()
		}
		sum += g.vossRow[k]
	}
	return sum / float32(vossRows)
}

// brown applies first-order leaky integration to white noise, yielding a
// -6 dB/octave (Brownian/red) spectrum. The leak term keeps the random walk
// from wandering outside [-1, 1] over long runs.
func (g *Generator) brown() float32 {
	const leak = 0.02
	white := g.rng.uniform()
	g.brownState += leak * (white - g.brownState)
	// Scale up: the leaky integrator's steady-state amplitude is much
	// smaller than the white-noise input it's driven by.
	return g.brownState * 4
}
