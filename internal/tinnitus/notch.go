package tinnitus

import "hdspcore/internal/biquad"

// MaxNotches is the fixed number of independently configurable notch
// filters (spec.md §3: "six notches").
const MaxNotches = 6

// notchAttenuationDb approximates a deep notch via a high-Q peaking EQ at a
// large negative gain, per spec.md §4.6 ("approximated by a deep peaking
// EQ"), rather than a true zero (which would need a dedicated variant).
const notchAttenuationDb = -24.0

// NotchBank holds the six tinnitus notch filters, one Biquad each, applied
// in series.
type NotchBank struct {
	filters [MaxNotches]biquad.Biquad
	enabled [MaxNotches]bool
}

// Configure (re)tunes notch i to the given frequency/Q, or disables it.
// Disabled notches are left as an identity bypass.
func (nb *NotchBank) Configure(i int, enabled bool, frequency, q, sampleRate float64) {
	if !enabled {
		nb.enabled[i] = false
		nb.filters[i].SetCoefficients(bypassCoefficients())
		return
	}
	nb.enabled[i] = true
	nb.filters[i].SetCoefficients(biquad.PeakingEQ(frequency, sampleRate, q, notchAttenuationDb))
}

// bypassCoefficients returns an identity biquad, used to disable a notch
// without removing it from the processing chain (keeps the chain's shape
// fixed, which avoids a click from skipping a filter mid-stream).
func bypassCoefficients() biquad.Coefficients {
	return biquad.PeakingEQ(1000, 48000, 1, 0) // any in-range freq/Q; gain 0 => identity
}

// Process runs the sample through every notch in series.
func (nb *NotchBank) Process(x float32) float32 {
	for i := range nb.filters {
		x = nb.filters[i].Process(x)
	}
	return x
}

// ProcessBuffer runs buf through every notch in series, in place.
func (nb *NotchBank) ProcessBuffer(buf []float32) {
	for i := range nb.filters {
		nb.filters[i].ProcessBuffer(buf)
	}
}

// Reset clears all notch filter state.
func (nb *NotchBank) Reset() {
	for i := range nb.filters {
		nb.filters[i].Reset()
	}
}
