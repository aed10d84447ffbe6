// Package nlms implements the bare Normalized Least-Mean-Squares adaptive
// filter primitive used both by the Voice-Exclusion NLMS path and by the
// built-in reference AEC helper. It holds no policy about how its estimate
// is used — the caller subtracts it with its own blend and attenuation
// clamp, since clamping the update term itself would rob the filter of the
// gradient information it needs to converge (spec.md §4.4).
package nlms

// epsilon regularizes the normalized step against near-zero reference power.
const epsilon = 1e-6

// weightClamp is the divergence guard: any tap whose magnitude exceeds this
// is reset to zero in place (spec.md invariant 3).
const weightClamp = 10.0

// Filter is an NLMS adaptive filter with a circular reference buffer.
// State is reallocated only when filterLength changes (see New/Resize) and
// is otherwise owned exclusively by the caller that drives Step — no
// internal locking.
type Filter struct {
	weights []float64
	ref     []float64
	pos     int
}

// New creates a zero-initialized filter of the given tap length.
func New(length int) *Filter {
	return &Filter{
		weights: make([]float64, length),
		ref:     make([]float64, length),
	}
}

// Len returns the filter's tap length.
func (f *Filter) Len() int { return len(f.weights) }

// Resize reallocates the filter to a new tap length, zero-initialized.
// No-op if length already matches.
func (f *Filter) Resize(length int) {
	if length == len(f.weights) {
		return
	}
	f.weights = make([]float64, length)
	f.ref = make([]float64, length)
	f.pos = 0
}

// Reset zeros the weights and reference buffer without reallocating or
// moving the write position.
func (f *Filter) Reset() {
	for i := range f.weights {
		f.weights[i] = 0
		f.ref[i] = 0
	}
}

// Step runs one sample of NLMS: stores the reference sample, estimates the
// echo/interference ŷ from the current weights, computes the *unclamped*
// error against the primary sample d, applies the normalized weight update,
// and advances the ring position.
//
// Step returns ŷ, the filter's current estimate of d's correlated
// component — NOT d minus the estimate. The caller decides how (and how
// much) to subtract it, applying its own blend and maxAttenuation policy.
func (f *Filter) Step(x, d, mu float64) float64 {
	l := len(f.weights)
	f.ref[f.pos] = x

	var yHat, power float64
	for i := 0; i < l; i++ {
		r := f.ref[(f.pos-i+l)%l]
		yHat += f.weights[i] * r
		power += r * r
	}

	e := d - yHat
	muHat := mu / (power + epsilon)

	for i := 0; i < l; i++ {
		r := f.ref[(f.pos-i+l)%l]
		w := f.weights[i] + muHat*e*r
		if w > weightClamp || w < -weightClamp {
			w = 0
		}
		f.weights[i] = w
	}

	f.pos = (f.pos + 1) % l
	return yHat
}

// MaxWeightAbs returns the largest absolute tap weight, useful for metering
// or tests asserting the divergence guard holds.
func (f *Filter) MaxWeightAbs() float64 {
	var m float64
	for _, w := range f.weights {
		if w < 0 {
			w = -w
		}
		if w > m {
			m = w
		}
	}
	return m
}
