package hdspcore

import (
	"math"

	"hdspcore/internal/biquad"
	"hdspcore/internal/nlms"
)

// This file implements the built-in reference NS/AGC/AEC/VAD helper
// providers, so the engine is independently testable without a real
// platform SDK (spec.md §9, "pure test doubles"). They are real, usable
// fallback DSP — generalized from the teacher's internal/agc, internal/vad,
// noise.go and internal/noisegate packages from a fixed 48 kHz/960-sample
// assumption to the engine's configurable helper rate and frame size —
// not stubs.

func rms16(buf []int16) float32 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return float32(math.Sqrt(sum / float64(len(buf))))
}

// --- Noise suppression -----------------------------------------------------

// builtinNSGateThreshold is the RMS level below which a frame is gated
// (~-40 dBFS), matching internal/noisegate's DefaultThreshold.
const builtinNSGateThreshold = float32(0.01)

// builtinNSGateHold is the number of frames the gate stays open after the
// signal drops below threshold, preventing mid-word chopping.
const builtinNSGateHold = 5

// builtinNSProvider is the built-in reference NS helper. Mode 0 is a hard
// RMS gate (reused directly from internal/noisegate's behavior — a gate is
// a legitimate, simple noise-suppression mode). Modes 1 and 2 layer an
// increasingly aggressive high-shelf attenuation on top, approximating
// spectral-floor subtraction of steady-state hiss without a true FFT-based
// suppressor.
type builtinNSProvider struct{}

func (builtinNSProvider) Create(frameSize, mode, rate int) (NSHandle, error) {
	h := &builtinNSHandle{
		hold: builtinNSGateHold,
		mode: mode,
	}
	if mode >= 1 {
		h.shelf.SetCoefficients(biquad.HighShelf(1500, float64(rate), 0.707, -6))
	}
	if mode >= 2 {
		h.shelf2.SetCoefficients(biquad.HighShelf(3000, float64(rate), 0.707, -6))
	}
	return h, nil
}

type builtinNSHandle struct {
	mode      int
	threshold float32
	hold      int
	remaining int

	shelf, shelf2 biquad.Biquad
	scratch       []float32
}

func (h *builtinNSHandle) Process(in, out []int16) error {
	if cap(h.scratch) < len(in) {
		h.scratch = make([]float32, len(in))
	}
	buf := h.scratch[:len(in)]
	for i, s := range in {
		buf[i] = float32(s) / 32768.0
	}

	if h.mode >= 1 {
		h.shelf.ProcessBuffer(buf)
	}
	if h.mode >= 2 {
		h.shelf2.ProcessBuffer(buf)
	}

	threshold := h.threshold
	if threshold == 0 {
		threshold = builtinNSGateThreshold
	}
	rms := rmsFloat32(buf)
	switch {
	case rms >= threshold:
		h.remaining = h.hold
	case h.remaining > 0:
		h.remaining--
	default:
		for i := range buf {
			buf[i] = 0
		}
	}

	for i, v := range buf {
		out[i] = int16(clampFloat32(v) * 32767)
	}
	return nil
}

func (h *builtinNSHandle) Destroy() {}

func rmsFloat32(buf []float32) float32 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(buf))))
}

func clampFloat32(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

// --- Automatic gain control -------------------------------------------------

// builtinAGCMinGain/MaxGain bound the AGC's linear gain, matching
// internal/agc's MinGain/MaxGain.
const (
	builtinAGCMinGain = 0.1
	builtinAGCMaxGain = 10.0

	builtinAGCAttackCoeff  = 0.80
	builtinAGCReleaseCoeff = 0.02

	builtinAGCMinRMS = 0.001
)

// builtinAGCProvider is the built-in reference AGC helper: asymmetric
// attack/release gain smoothing toward a target RMS, generalized from
// internal/agc.AGC to operate on arbitrary-length int16 frames at the
// helper's configured rate rather than a fixed 960-sample 48 kHz frame.
type builtinAGCProvider struct{}

func (builtinAGCProvider) Create(mode, rate int) (AGCHandle, error) {
	return &builtinAGCHandle{target: 0.20, gain: 1.0, mode: mode}, nil
}

type builtinAGCHandle struct {
	mode   int
	target float64
	gain   float64

	compressionGain float64
	limiterEnabled  bool
	targetDbfs      float64

	scratch []float32
}

// SetConfig applies the AGC handle's runtime configuration. targetDbfs, if
// non-zero, overrides the internal linear target; compressionDb adds a
// further fixed-gain stage ahead of the adaptive smoothing, and
// limiterEnabled engages a hard ceiling after it.
func (h *builtinAGCHandle) SetConfig(compressionDb float64, limiterEnabled bool, targetDbfs float64) {
	h.compressionGain = dbToLinear(compressionDb)
	h.limiterEnabled = limiterEnabled
	h.targetDbfs = targetDbfs
	if targetDbfs != 0 {
		h.target = clampFloat64(dbToLinear(targetDbfs), 0.01, 0.9)
	}
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

func (h *builtinAGCHandle) Process(in, out []int16) error {
	if cap(h.scratch) < len(in) {
		h.scratch = make([]float32, len(in))
	}
	buf := h.scratch[:len(in)]
	for i, s := range in {
		buf[i] = float32(s) / 32768.0 * float32(h.compressionGain)
	}

	rms := float64(rmsFloat32(buf))
	for i, s := range buf {
		v := s * float32(h.gain)
		if h.limiterEnabled {
			v = clampFloat32(v)
		}
		buf[i] = v
	}

	if rms >= builtinAGCMinRMS {
		desired := h.target / rms
		desired = clampFloat64(desired, builtinAGCMinGain, builtinAGCMaxGain)
		coeff := builtinAGCReleaseCoeff
		if desired < h.gain {
			coeff = builtinAGCAttackCoeff
		}
		h.gain += coeff * (desired - h.gain)
	}

	for i, v := range buf {
		out[i] = int16(clampFloat32(v) * 32767)
	}
	return nil
}

func (h *builtinAGCHandle) Destroy() {}

// --- Acoustic echo cancellation ---------------------------------------------

// builtinAECProvider is the built-in reference AEC helper, reusing
// internal/nlms's adaptive-filter primitive directly (spec.md §4.4) rather
// than re-deriving NLMS math a second time.
type builtinAECProvider struct{}

func (builtinAECProvider) Create(rate, filterLen, channels, mode int) (AECHandle, error) {
	length := clampInt(filterLen*32, 16, 512)
	return &builtinAECHandle{filter: nlms.New(length), mu: 0.1}, nil
}

type builtinAECHandle struct {
	filter *nlms.Filter
	mu     float64
}

func (h *builtinAECHandle) Process(primary, reference, out []int16) error {
	n := len(primary)
	if len(reference) < n {
		n = len(reference)
	}
	for i := 0; i < n; i++ {
		d := float64(primary[i]) / 32768.0
		x := float64(reference[i]) / 32768.0
		yHat := h.filter.Step(x, d, h.mu)
		residual := d - yHat
		out[i] = int16(clampFloat32(float32(residual)) * 32767)
	}
	for i := n; i < len(out); i++ {
		out[i] = primary[i]
	}
	return nil
}

func (h *builtinAECHandle) Destroy() {}

// --- Voice activity detection ------------------------------------------------

// builtinVADThreshold/Hangover mirror internal/vad's DefaultThreshold and
// DefaultHangover, expressed in frames of whatever frameMs Process is
// called with rather than a fixed 20 ms assumption.
const (
	builtinVADThreshold        = float32(0.005)
	builtinVADHangoverMillis   = 400
)

// builtinVADProvider is the built-in reference VAD helper: an energy
// threshold with hangover, generalized from internal/vad.VAD to derive its
// hangover frame count from the caller's frameMs instead of a hard-coded
// 20 ms frame.
type builtinVADProvider struct{}

func (builtinVADProvider) Create(mode int) (VADHandle, error) {
	return &builtinVADHandle{threshold: builtinVADThreshold, mode: mode}, nil
}

type builtinVADHandle struct {
	mode      int
	threshold float32
	hangoverFrames int
	remaining      int
	lastFrameMs    int
}

func (h *builtinVADHandle) Process(samples []int16, rate, frameMs int) (bool, error) {
	if frameMs != h.lastFrameMs && frameMs > 0 {
		h.hangoverFrames = builtinVADHangoverMillis / frameMs
		h.lastFrameMs = frameMs
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := float32(0)
	if len(samples) > 0 {
		rms = float32(math.Sqrt(sum / float64(len(samples))))
	}
	if rms > h.threshold {
		h.remaining = h.hangoverFrames
		return true, nil
	}
	if h.remaining > 0 {
		h.remaining--
		return true, nil
	}
	return false, nil
}

func (h *builtinVADHandle) Destroy() {}
