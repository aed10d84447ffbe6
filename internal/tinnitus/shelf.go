package tinnitus

import "hdspcore/internal/biquad"

// hfExtensionQ is a fixed, gentle shelf Q — HF extension is meant to restore
// perceived brightness, not to ring.
const hfExtensionQ = 0.707

// HFExtension is the high-frequency-extension high-shelf filter (spec.md
// §4.6), one instance per channel.
type HFExtension struct {
	filter biquad.Biquad
}

// Configure (re)tunes the shelf; when !enabled the filter is set to
// identity (0 dB shelf) rather than skipped, keeping the chain shape fixed.
func (h *HFExtension) Configure(enabled bool, freq, gainDb, sampleRate float64) {
	if !enabled {
		gainDb = 0
	}
	h.filter.SetCoefficients(biquad.HighShelf(freq, sampleRate, hfExtensionQ, gainDb))
}

// Process filters one sample.
func (h *HFExtension) Process(x float32) float32 {
	return h.filter.Process(x)
}

// ProcessBuffer filters buf in place.
func (h *HFExtension) ProcessBuffer(buf []float32) {
	h.filter.ProcessBuffer(buf)
}

// Reset clears filter state.
func (h *HFExtension) Reset() {
	h.filter.Reset()
}
