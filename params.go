package hdspcore

import "sync"

// eqFrequencies are the three fixed peaking-EQ center frequencies (spec.md
// §3). Only the gains are configurable.
var eqFrequencies = [3]float64{250, 1000, 4000}

// eqQ is the fixed Q for all three EQ bands.
const eqQ = 1.4

// Voice-Exclusion mode constants.
const (
	VoiceExclusionNLMS = 0
	VoiceExclusionAEC  = 1
)

// HPFParams configures the primary-channel high-pass filter.
type HPFParams struct {
	Enabled   bool
	Frequency float64 // Hz, [20, 2000]
}

// LPFParams configures the primary-channel low-pass filter.
type LPFParams struct {
	Enabled   bool
	Frequency float64 // Hz, [500, 20000]
}

// NSParams configures noise suppression.
type NSParams struct {
	Enabled bool
	Mode    int // [0, 2]
}

// AGCParams configures automatic gain control.
type AGCParams struct {
	Enabled           bool
	Mode              int // [0, 3]
	CompressionGainDb float64 // [0, 90]
	LimiterEnabled    bool
	TargetLevelDbfs   float64 // [-31, 0]
}

// VoiceExclusionParams configures the voice-exclusion (echo/feedback
// cancellation) subsystem, which runs in either NLMS or external-AEC mode.
type VoiceExclusionParams struct {
	Enabled  bool
	Mode     int     // VoiceExclusionNLMS | VoiceExclusionAEC
	Blend    float64 // [0, 1]
	StepSize float64 // [0.01, 1.0], NLMS mu
	FilterLength int // [16, 512], NLMS taps

	MaxAttenuation float64 // [0, 1]
	RefGain        float64 // [0.1, 5.0]
	RefHpf         float64 // Hz, [20, 500]
	RefLpf         float64 // Hz, [1000, 8000]

	AECMode      int
	AECFilterLen int // [1, 6]

	VADEnabled    bool
	VADMode       int // [0, 4]
	VADGateEnabled bool
	VADGateAtten   float64 // [0, 1]
}

// OutputParams configures the final gain stage.
type OutputParams struct {
	Gain         float64 // [0, 6]
	Volume       int     // [0, 100]
	Mute         bool    // default true
	BoostEnabled bool
}

// TinnitusNotchParams configures one notch filter.
type TinnitusNotchParams struct {
	Enabled   bool
	Frequency float64 // Hz, [500, 12000]
	Q         float64 // [1, 16]
}

// TinnitusNoiseParams configures the masking-noise generator.
type TinnitusNoiseParams struct {
	Type    int // NoiseOff | NoiseWhite | NoisePink | NoiseBrown, see internal/tinnitus
	Level   float32
	LowCut  float64
	HighCut float64
}

// TinnitusToneParams configures the tone-finder.
type TinnitusToneParams struct {
	Enabled bool
	Freq    float64
	Level   float32
}

// TinnitusHFExtParams configures the HF-extension shelf.
type TinnitusHFExtParams struct {
	Enabled bool
	Freq    float64
	GainDb  float64
}

// TinnitusBinauralParams configures the binaural-beat generator.
type TinnitusBinauralParams struct {
	Enabled bool
	Carrier float64
	Beat    float64 // Hz, [1, 40]
	Level   float32
}

// TinnitusParams bundles the full synthesis/masking layer's configuration.
type TinnitusParams struct {
	Notches [6]TinnitusNotchParams
	Noise   TinnitusNoiseParams
	Tone    TinnitusToneParams
	HFExt   TinnitusHFExtParams
	Binaural TinnitusBinauralParams

	// NotchesPreEQ selects whether the notch bank runs before or after the
	// 3-band EQ. Default false (post-EQ), per DESIGN.md's resolution of
	// spec.md §9's open question on tinnitus-notch placement.
	NotchesPreEQ bool
}

// Parameters is the engine's single process-wide configuration record
// (spec.md §3). All fields are clamped to their documented ranges by
// Clamp, which every setter and SetParams calls before publishing.
type Parameters struct {
	MicGain int // codec PGA units, [0, 240]

	HPF HPFParams
	LPF LPFParams
	EQ  [3]float64 // peaking-EQ gain in dB, [-12, 12], at eqFrequencies

	NS             NSParams
	AGC            AGCParams
	VoiceExclusion VoiceExclusionParams
	Output         OutputParams
	Tinnitus       TinnitusParams
}

// DefaultParameters returns a safe, muted default configuration, matching
// spec.md §3's lifecycle note ("Parameters exist ... with a safe default
// (output muted)").
func DefaultParameters() Parameters {
	p := Parameters{
		MicGain: 120,
		HPF:     HPFParams{Enabled: true, Frequency: 80},
		LPF:     LPFParams{Enabled: false, Frequency: 18000},
		Output:  OutputParams{Gain: 1, Volume: 80, Mute: true},
		VoiceExclusion: VoiceExclusionParams{
			StepSize:     0.1,
			FilterLength: 128,
			MaxAttenuation: 0.8,
			RefGain:      1.0,
			RefHpf:       150,
			RefLpf:       4000,
			AECFilterLen: 1,
			VADMode:      2,
		},
	}
	p.Clamp()
	return p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp forces every field into its documented range (spec.md §3). It is
// idempotent: clamping an already-clamped record is a no-op, satisfying
// spec.md §8's "setParams(p); getParams() == p (after clamping)" round-trip
// law.
func (p *Parameters) Clamp() {
	p.MicGain = clampInt(p.MicGain, 0, 240)

	p.HPF.Frequency = clampFloat64(p.HPF.Frequency, 20, 2000)
	p.LPF.Frequency = clampFloat64(p.LPF.Frequency, 500, 20000)

	for i := range p.EQ {
		p.EQ[i] = clampFloat64(p.EQ[i], -12, 12)
	}

	p.NS.Mode = clampInt(p.NS.Mode, 0, 2)

	p.AGC.Mode = clampInt(p.AGC.Mode, 0, 3)
	p.AGC.CompressionGainDb = clampFloat64(p.AGC.CompressionGainDb, 0, 90)
	p.AGC.TargetLevelDbfs = clampFloat64(p.AGC.TargetLevelDbfs, -31, 0)

	ve := &p.VoiceExclusion
	if ve.Mode != VoiceExclusionAEC {
		ve.Mode = VoiceExclusionNLMS
	}
	ve.Blend = clampFloat64(ve.Blend, 0, 1)
	ve.StepSize = clampFloat64(ve.StepSize, 0.01, 1.0)
	ve.FilterLength = clampInt(ve.FilterLength, 16, 512)
	ve.MaxAttenuation = clampFloat64(ve.MaxAttenuation, 0, 1)
	ve.RefGain = clampFloat64(ve.RefGain, 0.1, 5.0)
	ve.RefHpf = clampFloat64(ve.RefHpf, 20, 500)
	ve.RefLpf = clampFloat64(ve.RefLpf, 1000, 8000)
	ve.AECFilterLen = clampInt(ve.AECFilterLen, 1, 6)
	ve.VADMode = clampInt(ve.VADMode, 0, 4)
	ve.VADGateAtten = clampFloat64(ve.VADGateAtten, 0, 1)

	p.Output.Gain = clampFloat64(p.Output.Gain, 0, 6)
	p.Output.Volume = clampInt(p.Output.Volume, 0, 100)

	for i := range p.Tinnitus.Notches {
		n := &p.Tinnitus.Notches[i]
		n.Frequency = clampFloat64(n.Frequency, 500, 12000)
		n.Q = clampFloat64(n.Q, 1, 16)
	}
	p.Tinnitus.Binaural.Beat = clampFloat64(p.Tinnitus.Binaural.Beat, 1, 40)
}

// Levels is a read-only snapshot of the engine's current metering state
// (spec.md §3).
type Levels struct {
	RMSLeft, RMSRight   float32
	PeakLeft, PeakRight float32
	RMSHP, PeakHP       float32
	VADSpeechDetected   bool
}

// paramState is the single mutex-protected record spec.md §4.7 describes:
// the current parameters, the current levels, and the worker's dirty flag,
// all behind one lock (matching the teacher's AudioEngine.mu convention of
// one coarse mutex guarding several related fields rather than per-field
// atomics).
type paramState struct {
	mu     sync.Mutex
	params Parameters
	levels Levels
	dirty  bool
}

func newParamState() *paramState {
	return &paramState{params: DefaultParameters()}
}

// SetParams replaces the entire parameter record, after clamping, and
// marks the state dirty so the worker picks it up on the next block.
func (s *paramState) SetParams(p Parameters) {
	p.Clamp()
	s.mu.Lock()
	s.params = p
	s.dirty = true
	s.mu.Unlock()
}

// GetParams returns the current (clamped) parameter record.
func (s *paramState) GetParams() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// GetLevels returns the latest published Levels snapshot.
func (s *paramState) GetLevels() Levels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels
}

// mutate runs fn against the live parameter record under the lock, clamps
// the result, and marks the state dirty. Every per-field setter below is a
// thin wrapper around mutate.
func (s *paramState) mutate(fn func(*Parameters)) {
	s.mu.Lock()
	fn(&s.params)
	s.params.Clamp()
	s.dirty = true
	s.mu.Unlock()
}

// snapshotIfDirty copies the parameters into dst and clears dirty, if
// dirty is set. Called by the worker exactly once per block.
func (s *paramState) snapshotIfDirty(dst *Parameters) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return false
	}
	*dst = s.params
	s.dirty = false
	return true
}

// publishLevels writes lv under the lock. Called by the worker exactly
// once per block, at the end of processing.
func (s *paramState) publishLevels(lv Levels) {
	s.mu.Lock()
	s.levels = lv
	s.mu.Unlock()
}

// SetMicGain sets the codec PGA gain, clamped to [0, 240].
func (s *paramState) SetMicGain(v int) { s.mutate(func(p *Parameters) { p.MicGain = v }) }

// SetHPF configures the primary-channel high-pass filter.
func (s *paramState) SetHPF(enabled bool, freq float64) {
	s.mutate(func(p *Parameters) { p.HPF = HPFParams{Enabled: enabled, Frequency: freq} })
}

// SetLPF configures the primary-channel low-pass filter.
func (s *paramState) SetLPF(enabled bool, freq float64) {
	s.mutate(func(p *Parameters) { p.LPF = LPFParams{Enabled: enabled, Frequency: freq} })
}

// SetEQGain sets one of the three fixed-frequency EQ bands' gain in dB.
// band is clamped to [0, 2] rather than silently ignored out of range.
func (s *paramState) SetEQGain(band int, gainDb float64) {
	band = clampInt(band, 0, 2)
	s.mutate(func(p *Parameters) { p.EQ[band] = gainDb })
}

// SetNS configures noise suppression.
func (s *paramState) SetNS(enabled bool, mode int) {
	s.mutate(func(p *Parameters) { p.NS = NSParams{Enabled: enabled, Mode: mode} })
}

// SetAGC configures automatic gain control.
func (s *paramState) SetAGC(cfg AGCParams) {
	s.mutate(func(p *Parameters) { p.AGC = cfg })
}

// SetVoiceExclusion configures the voice-exclusion subsystem.
func (s *paramState) SetVoiceExclusion(cfg VoiceExclusionParams) {
	s.mutate(func(p *Parameters) { p.VoiceExclusion = cfg })
}

// SetOutputGain sets the post-pipeline linear gain, clamped to [0, 6].
func (s *paramState) SetOutputGain(gain float64) {
	s.mutate(func(p *Parameters) { p.Output.Gain = gain })
}

// SetVolume sets the codec playback volume, clamped to [0, 100].
func (s *paramState) SetVolume(v int) {
	s.mutate(func(p *Parameters) { p.Output.Volume = v })
}

// SetMute asserts or clears output mute.
func (s *paramState) SetMute(muted bool) {
	s.mutate(func(p *Parameters) { p.Output.Mute = muted })
}

// SetBoostEnabled enables or disables the soft-clip boost path.
func (s *paramState) SetBoostEnabled(enabled bool) {
	s.mutate(func(p *Parameters) { p.Output.BoostEnabled = enabled })
}

// SetTinnitusNotch configures notch i (clamped to [0, 5]).
func (s *paramState) SetTinnitusNotch(i int, cfg TinnitusNotchParams) {
	i = clampInt(i, 0, 5)
	s.mutate(func(p *Parameters) { p.Tinnitus.Notches[i] = cfg })
}

// SetTinnitusNoise configures the masking-noise generator.
func (s *paramState) SetTinnitusNoise(cfg TinnitusNoiseParams) {
	s.mutate(func(p *Parameters) { p.Tinnitus.Noise = cfg })
}

// SetTinnitusTone configures the tone-finder.
func (s *paramState) SetTinnitusTone(cfg TinnitusToneParams) {
	s.mutate(func(p *Parameters) { p.Tinnitus.Tone = cfg })
}

// SetTinnitusHFExt configures the HF-extension shelf.
func (s *paramState) SetTinnitusHFExt(cfg TinnitusHFExtParams) {
	s.mutate(func(p *Parameters) { p.Tinnitus.HFExt = cfg })
}

// SetTinnitusBinaural configures the binaural-beat generator.
func (s *paramState) SetTinnitusBinaural(cfg TinnitusBinauralParams) {
	s.mutate(func(p *Parameters) { p.Tinnitus.Binaural = cfg })
}
