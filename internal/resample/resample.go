// Package resample implements the fixed 48 kHz ↔ 16 kHz polyphase bridge the
// DSP pipeline uses wherever a path crosses into the 16 kHz domain that the
// external NS/AGC/AEC/VAD helpers and the NLMS voice-exclusion path operate
// in. It is a single ×1/3 decimator and a single ×3 interpolator, not a
// general arbitrary-ratio resampler.
package resample

import "math"

// taps is the fixed 21-tap windowed-sinc FIR length (spec.md §4.3).
const taps = 21

// downHistory/upHistory are the number of trailing input samples each
// direction must carry across calls so block boundaries are seamless.
const (
	downHistory = 10
	upHistory   = 3
)

// targetStopbandDb is the stopband attenuation (roughly 70 dB) from which
// kaiserBeta derives the Kaiser window's beta, per the Kaiser-window design
// rule of thumb used throughout the pack's resampler reference (see
// DESIGN.md): beta ≈ 0.1102*(A-8.7) for A > 50 dB stopband attenuation A.
const targetStopbandDb = 70.0

// prototype is the shared low-pass windowed-sinc prototype filter used by
// both Downsampler3 (cutoff at 16 kHz/2 in the 48 kHz domain) and
// Upsampler3 (same cutoff, since interpolation needs to remove the imaged
// spectra introduced by zero-stuffing).
//
// Both directions reuse the identical tap set because the ideal anti-imaging
// and anti-aliasing filter for a factor-of-3 rate change is the same
// low-pass shape at Nyquist/3; they differ only in how the filter is fed
// (real samples vs. zero-stuffed) and how the result is scaled.
var prototype = designPrototype()

func designPrototype() []float64 {
	// Cutoff at 1/3 of the higher (48 kHz) Nyquist, i.e. 8 kHz — the 16 kHz
	// side's Nyquist — expressed as a fraction of the 48 kHz Nyquist (Fs/2).
	const cutoff = 1.0 / 3.0 // fraction of Fs/2

	beta := kaiserBeta(targetStopbandDb)
	center := float64(taps-1) / 2

	h := make([]float64, taps)
	var sum float64
	for n := 0; n < taps; n++ {
		x := float64(n) - center
		h[n] = sinc(cutoff*x) * cutoff * kaiserWindow(x, center, beta)
		sum += h[n]
	}
	// Normalize for unity DC gain.
	for n := range h {
		h[n] /= sum
	}
	return h
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// kaiserBeta derives the Kaiser window's shape parameter from the desired
// stopband attenuation in dB, using the standard piecewise approximation.
func kaiserBeta(stopbandDb float64) float64 {
	switch {
	case stopbandDb > 50:
		return 0.1102 * (stopbandDb - 8.7)
	case stopbandDb >= 21:
		return 0.5842*math.Pow(stopbandDb-21, 0.4) + 0.07886*(stopbandDb-21)
	default:
		return 0
	}
}

// kaiserWindow evaluates the Kaiser window at offset x from center, where
// center is half the window span (so x ranges over [-center, center]).
func kaiserWindow(x, center, beta float64) float64 {
	ratio := x / center
	arg := beta * math.Sqrt(1-ratio*ratio)
	return besselI0(arg) / besselI0(beta)
}

// besselI0 computes the zeroth-order modified Bessel function of the first
// kind via its power series, to the precision a 21-tap filter design needs.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 25; k++ {
		term *= (halfX * halfX) / (float64(k) * float64(k))
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}

// Downsampler3 converts a 48 kHz stream to 16 kHz (factor of 3 decimation)
// using the shared windowed-sinc prototype. State (trailing history) is
// owned exclusively by one instance — per spec.md §4.3, each audio path
// crossing the 48↔16 kHz boundary owns its own resampler pair.
type Downsampler3 struct {
	history [downHistory]float64
	buf     []float64 // reused working buffer, grown at most once per instance
}

// Process downsamples in (length must be a multiple of 3) into out (length
// len(in)/3), preserving filter history across calls.
func (d *Downsampler3) Process(in []float32, out []float32) {
	n := len(in) / 3
	// Build a working buffer: history ++ in, so convolution can look back
	// across the block boundary without special-casing the first taps-1
	// samples of this call. Block sizes never change across an engine's
	// lifetime, so this only allocates on the instance's first call
	// (spec.md §5, no steady-state allocation).
	need := downHistory + len(in)
	if cap(d.buf) < need {
		d.buf = make([]float64, need)
	} else {
		d.buf = d.buf[:need]
	}
	buf := d.buf
	for i, h := range d.history {
		buf[i] = h
	}
	for i, s := range in {
		buf[downHistory+i] = float64(s)
	}

	for i := 0; i < n; i++ {
		center := downHistory + i*3
		var acc float64
		for k := 0; k < taps; k++ {
			idx := center - (taps - 1) + k
			if idx < 0 {
				continue
			}
			acc += prototype[k] * buf[idx]
		}
		out[i] = float32(acc)
	}

	// Carry the trailing downHistory samples of this call's input forward.
	tail := len(in) - downHistory
	if tail < 0 {
		// Fewer input samples than history needs: shift existing history
		// and append what we have.
		copy(d.history[:], d.history[len(in):])
		for i, s := range in {
			d.history[downHistory-len(in)+i] = float64(s)
		}
		return
	}
	for i := 0; i < downHistory; i++ {
		d.history[i] = float64(in[tail+i])
	}
}

// Reset clears the resampler's carried history.
func (d *Downsampler3) Reset() {
	d.history = [downHistory]float64{}
}

// Upsampler3 converts a 16 kHz stream to 48 kHz (factor of 3 interpolation):
// two zero samples are inserted between each input sample and the result is
// run through the same prototype filter scaled by 3 to restore unity
// passband gain (spec.md §4.3).
type Upsampler3 struct {
	history [upHistory]float64
	buf     []float64 // reused working buffer, grown at most once per instance
}

// Process upsamples in (length n) into out (length 3*n), preserving filter
// history across calls.
func (u *Upsampler3) Process(in []float32, out []float32) {
	n := len(in)
	// Zero-stuffed buffer: history (already zero-stuffed conceptually, so we
	// track only the upHistory most recent *input* samples and their
	// positions) ++ zero-stuffed(in). Block sizes never change across an
	// engine's lifetime, so this only allocates on the instance's first call
	// (spec.md §5, no steady-state allocation).
	stuffedHistLen := upHistory * 3
	need := stuffedHistLen + n*3
	if cap(u.buf) < need {
		u.buf = make([]float64, need)
	} else {
		u.buf = u.buf[:need]
	}
	buf := u.buf
	for i := range buf {
		buf[i] = 0
	}
	for i, h := range u.history {
		buf[i*3] = h
	}
	for i, s := range in {
		buf[stuffedHistLen+i*3] = float64(s)
	}

	for i := 0; i < n*3; i++ {
		center := stuffedHistLen + i
		var acc float64
		for k := 0; k < taps; k++ {
			idx := center - (taps - 1) + k
			if idx < 0 {
				continue
			}
			acc += prototype[k] * buf[idx]
		}
		out[i] = float32(acc * 3)
	}

	if n >= upHistory {
		for i := 0; i < upHistory; i++ {
			u.history[i] = float64(in[n-upHistory+i])
		}
	} else {
		copy(u.history[:], u.history[n:])
		for i, s := range in {
			u.history[upHistory-n+i] = float64(s)
		}
	}
}

// Reset clears the resampler's carried history.
func (u *Upsampler3) Reset() {
	u.history = [upHistory]float64{}
}
