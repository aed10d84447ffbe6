// Package tinnitus implements the synthesis/masking layer: configurable
// notch filters, a masking-noise generator (white/pink/brown), a tone-finder
// oscillator for pitch matching, binaural-beat generation, and a high-shelf
// HF-extension filter (spec.md §4.6).
//
// The oscillators carry phase across blocks in a running phase accumulator
// (advanced by 2*pi*f/sampleRate per sample and wrapped at 2*pi) rather than
// restarting per block — see Oscillator — since tinnitus tones run
// indefinitely and must never glitch mid-stream.
package tinnitus

import "math"

// fadeSamples is the length of the linear fade applied only at an
// oscillator's enable/disable transition, to avoid a step discontinuity.
// 5 ms @ 48 kHz.
const fadeSamples = 240

// Oscillator is a phase-continuous sine generator used by the tone-finder
// and each side of the binaural-beat pair.
type Oscillator struct {
	sampleRate float64
	phase      float64 // radians, wrapped each sample

	enabled    bool
	fadeFrames int // remaining fade-in (>0) or fade-out (<0) samples
}

// NewOscillator returns an Oscillator for the given sample rate, disabled.
func NewOscillator(sampleRate float64) *Oscillator {
	return &Oscillator{sampleRate: sampleRate}
}

// SetEnabled starts a fade-in or fade-out transition; the oscillator keeps
// running (to preserve phase) but its amplitude envelope ramps to/from 0.
func (o *Oscillator) SetEnabled(enabled bool) {
	if enabled == o.enabled {
		return
	}
	o.enabled = enabled
	if enabled {
		o.fadeFrames = fadeSamples
	} else {
		o.fadeFrames = -fadeSamples
	}
}

// Enabled reports the oscillator's logical enabled state (ignoring any
// in-progress fade).
func (o *Oscillator) Enabled() bool { return o.enabled }

// Generate writes len(out) samples of a sine at freq Hz and peak level
// amplitude into out, advancing phase continuously and applying the
// enable/disable fade envelope.
func (o *Oscillator) Generate(out []float32, freq float64, amplitude float32) {
	step := 2 * math.Pi * freq / o.sampleRate
	for i := range out {
		s := float32(math.Sin(o.phase)) * amplitude

		switch {
		case o.fadeFrames > 0:
			env := float32(fadeSamples-o.fadeFrames+1) / float32(fadeSamples)
			s *= env
			o.fadeFrames--
		case o.fadeFrames < 0:
			env := float32(-o.fadeFrames) / float32(fadeSamples)
			if env < 0 {
				env = 0
			}
			s *= env
			o.fadeFrames++
		case !o.enabled:
			s = 0
		}

		out[i] = s
		o.phase += step
		if o.phase > 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// Reset zeros phase and any in-progress fade.
func (o *Oscillator) Reset() {
	o.phase = 0
	o.fadeFrames = 0
}
