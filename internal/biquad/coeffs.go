package biquad

import "math"

// ButterworthQ is the Q used for HPF/LPF sections to get a maximally-flat
// (Butterworth) magnitude response.
const ButterworthQ = 1.0 / math.Sqrt2

// identityGainThresholdDb is the peaking-EQ gain magnitude below which the
// filter is treated as a perfect, glitch-free bypass (spec: "< 0.1 dB").
const identityGainThresholdDb = 0.1

// Coefficients holds a normalized (a0 == 1) biquad coefficient set, plus a
// flag marking it as the identity filter so Biquad.Process can skip work.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
	Identity   bool
}

func identity() Coefficients {
	return Coefficients{B0: 1, Identity: true}
}

func normalize(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	inv := 1.0 / a0
	return Coefficients{
		B0: b0 * inv, B1: b1 * inv, B2: b2 * inv,
		A1: a1 * inv, A2: a2 * inv,
	}
}

// HighPass returns RBJ cookbook coefficients for a Butterworth high-pass at
// frequency Hz, sampleRate Hz.
func HighPass(frequency, sampleRate float64) Coefficients {
	return highPassQ(frequency, sampleRate, ButterworthQ)
}

func highPassQ(frequency, sampleRate, q float64) Coefficients {
	w0 := 2 * math.Pi * frequency / sampleRate
	sw, cw := math.Sin(w0), math.Cos(w0)
	alpha := sw / (2 * q)

	b0 := (1 + cw) / 2
	b1 := -(1 + cw)
	b2 := (1 + cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// LowPass returns RBJ cookbook coefficients for a Butterworth low-pass at
// frequency Hz, sampleRate Hz.
func LowPass(frequency, sampleRate float64) Coefficients {
	return lowPassQ(frequency, sampleRate, ButterworthQ)
}

func lowPassQ(frequency, sampleRate, q float64) Coefficients {
	w0 := 2 * math.Pi * frequency / sampleRate
	sw, cw := math.Sin(w0), math.Cos(w0)
	alpha := sw / (2 * q)

	b0 := (1 - cw) / 2
	b1 := 1 - cw
	b2 := (1 - cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// PeakingEQ returns RBJ cookbook coefficients for a peaking EQ band at
// frequency Hz with the given Q and gain in dB. A gain whose magnitude is
// below identityGainThresholdDb returns the identity filter (bit-exact
// bypass, no biquad math at all).
func PeakingEQ(frequency, sampleRate, q, gainDb float64) Coefficients {
	if math.Abs(gainDb) < identityGainThresholdDb {
		return identity()
	}
	w0 := 2 * math.Pi * frequency / sampleRate
	sw, cw := math.Sin(w0), math.Cos(w0)
	a := math.Pow(10, gainDb/40)
	alpha := sw / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw
	a2 := 1 - alpha/a
	return normalize(b0, b1, b2, a0, a1, a2)
}

// Notch returns RBJ cookbook coefficients for a band-reject notch at
// frequency Hz with the given Q: a true zero at frequency. The
// tinnitus-masking layer's NotchBank does not use it; it uses a deep
// PeakingEQ cut instead.
func Notch(frequency, sampleRate, q float64) Coefficients {
	w0 := 2 * math.Pi * frequency / sampleRate
	sw, cw := math.Sin(w0), math.Cos(w0)
	alpha := sw / (2 * q)

	b0 := 1.0
	b1 := -2 * cw
	b2 := 1.0
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighShelf returns RBJ cookbook coefficients for a high-shelf boost/cut
// above frequency Hz with the given Q and gain in dB.
func HighShelf(frequency, sampleRate, q, gainDb float64) Coefficients {
	w0 := 2 * math.Pi * frequency / sampleRate
	sw, cw := math.Sin(w0), math.Cos(w0)
	a := math.Pow(10, gainDb/40)
	alpha := sw / (2 * q)
	sqrtA := math.Sqrt(a)
	beta := 2 * sqrtA * alpha

	b0 := a * ((a + 1) + (a-1)*cw + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cw)
	b2 := a * ((a + 1) + (a-1)*cw - beta)
	a0 := (a + 1) - (a-1)*cw + beta
	a1 := 2 * ((a - 1) - (a+1)*cw)
	a2 := (a + 1) - (a-1)*cw - beta
	return normalize(b0, b1, b2, a0, a1, a2)
}
