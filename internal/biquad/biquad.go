// Package biquad implements second-order IIR filter sections in Direct-Form-II-
// transposed form, plus an Audio-EQ-Cookbook coefficient calculator for the
// filter shapes the DSP pipeline needs (HPF, LPF, peaking EQ, notch,
// high-shelf).
package biquad

// Biquad is a single second-order IIR section in Direct-Form-II-transposed
// form. Coefficients are assigned once by SetCoefficients (or one of the
// Coefficients helpers) and never mutated by Process; only z1/z2 change per
// sample. The zero value has all-zero coefficients and outputs silence, not
// identity passthrough — call SetCoefficients first (a 0 dB PeakingEQ gives
// the identity set).
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64

	// bypass is true when the coefficients represent an identity filter
	// (peaking EQ at ~0 dB). Process short-circuits in that case so a
	// 0 dB band never costs a multiply-add chain or risks denormal stalls
	// on its all-zero state.
	bypass bool
}

// SetCoefficients installs a new coefficient set. a0 is assumed already
// normalized to 1 by the caller (see Coefficients), so only b0, b1, b2, a1,
// a2 are stored.
func (b *Biquad) SetCoefficients(c Coefficients) {
	b.b0, b.b1, b.b2 = c.B0, c.B1, c.B2
	b.a1, b.a2 = c.A1, c.A2
	b.bypass = c.Identity
}

// Reset zeros the filter's internal state without touching coefficients.
func (b *Biquad) Reset() {
	b.z1, b.z2 = 0, 0
}

// Bypass reports whether the current coefficients are an identity filter.
func (b *Biquad) Bypass() bool { return b.bypass }

// Process filters one sample, updating z1/z2 in place.
func (b *Biquad) Process(x float32) float32 {
	if b.bypass {
		return x
	}
	x64 := float64(x)
	y := b.b0*x64 + b.z1
	b.z1 = b.b1*x64 - b.a1*y + b.z2
	b.z2 = b.b2*x64 - b.a2*y
	return float32(y)
}

// ProcessBuffer filters buf in place, sample by sample.
func (b *Biquad) ProcessBuffer(buf []float32) {
	if b.bypass {
		return
	}
	z1, z2 := b.z1, b.z2
	b0, b1, b2, a1, a2 := b.b0, b.b1, b.b2, b.a1, b.a2
	for i, x := range buf {
		x64 := float64(x)
		y := b0*x64 + z1
		z1 = b1*x64 - a1*y + z2
		z2 = b2*x64 - a2*y
		buf[i] = float32(y)
	}
	b.z1, b.z2 = z1, z2
}
