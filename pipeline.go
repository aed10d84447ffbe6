package hdspcore

import (
	"math"

	"github.com/pkg/errors"

	"hdspcore/internal/aecbridge"
	"hdspcore/internal/biquad"
	"hdspcore/internal/meter"
	"hdspcore/internal/nlms"
	"hdspcore/internal/resample"
	"hdspcore/internal/tinnitus"
)

// workerState holds every piece of DSP state exclusively owned by the
// worker goroutine between Start and Stop (spec.md §5, "Shared resource
// policy"): filter state, resampler state, NLMS state, the tinnitus layer,
// external helper handles, and scratch buffers. Never touched by a setter
// caller.
type workerState struct {
	opts *EngineOptions

	hpfL, hpfR     biquad.Biquad
	lpfL, lpfR     biquad.Biquad
	eqL, eqR       [3]biquad.Biquad
	refHpf, refLpf biquad.Biquad

	tinnitusLayer *tinnitus.Layer

	meterL, meterR, meterHP meter.Meter

	headphonePresent    bool
	headphoneCounter    int
	headphoneFirstProbe bool // false until the first probe has run

	// Voice-exclusion NLMS path: one adaptive filter and one down/up
	// resampler pair per primary channel, plus a shared reference
	// downsampler (spec.md §4.3: each path owns its own resamplers).
	nlmsL, nlmsR               *nlms.Filter
	nlmsFilterLen              int
	veDownL, veDownR, veDownHP resample.Downsampler3
	veUpL, veUpR               resample.Upsampler3

	// Voice-exclusion AEC path: its own resampler pair per channel plus
	// the frame bridges feeding the external AEC helper.
	aecDownL, aecDownR, aecDownHP resample.Downsampler3
	aecUpL, aecUpR                resample.Upsampler3
	bridgeL, bridgeR, bridgeRef   aecbridge.Bridge
	aecHandle                     AECHandle
	aecHandleKey                  [3]int // rate, filterLen, mode — identity of the open handle
	vadHandle                     VADHandle
	vadHandleMode                 int

	// scratch for the AEC helper's int16 frame boundary, sized to
	// aecbridge.FrameSize and reused across every AEC frame and VAD probe
	// (spec.md §5, no steady-state allocation).
	aecInt16A, aecInt16B, aecInt16Out []int16
	aecFloatOut                       []float32

	// NS path: one down/up resampler pair per primary channel.
	nsDownL, nsDownR resample.Downsampler3
	nsUpL, nsUpR     resample.Upsampler3
	nsHandle         NSHandle
	nsHandleKey      [2]int // mode, rate

	// AGC path: one down/up resampler pair per primary channel.
	agcDownL, agcDownR resample.Downsampler3
	agcUpL, agcUpR     resample.Upsampler3
	agcHandle          AGCHandle
	agcHandleKey       [2]int // mode, rate

	helperBlock int // BlockSize/3, the 16 kHz samples-per-block count

	// scratch buffers, sized once at construction and reused every block so
	// steady-state processing performs no further allocation (spec.md §5).
	// left/right/refHP carry the 48 kHz signal between pipeline stages;
	// the rest are generic scratch local to whichever stage is running —
	// never read across stages, only within one helper's own call.
	left, right, refHP []float32
	scratch16a         []float32 // 16 kHz scratch, helperBlock samples
	scratch16b         []float32
	scratch16c         []float32
	scratch48          []float32 // 48 kHz scratch, BlockSize samples
	scratchInt16a      []int16
	scratchInt16b      []int16
}

func newWorkerState(opts EngineOptions) *workerState {
	o := opts
	n := o.BlockSize
	h := n / 3
	ws := &workerState{
		opts:        &o,
		helperBlock: h,

		tinnitusLayer: tinnitus.NewLayer(float64(o.SampleRate), n),

		left:          make([]float32, n),
		right:         make([]float32, n),
		refHP:         make([]float32, n),
		scratch16a:    make([]float32, h),
		scratch16b:    make([]float32, h),
		scratch16c:    make([]float32, h),
		scratch48:     make([]float32, n),
		scratchInt16a: make([]int16, h),
		scratchInt16b: make([]int16, h),

		aecInt16A:   make([]int16, aecbridge.FrameSize),
		aecInt16B:   make([]int16, aecbridge.FrameSize),
		aecInt16Out: make([]int16, aecbridge.FrameSize),
		aecFloatOut: make([]float32, aecbridge.FrameSize),
	}
	ws.meterL.SetDecay(meter.DefaultDecay)
	ws.meterR.SetDecay(meter.DefaultDecay)
	ws.meterHP.SetDecay(meter.DefaultDecay)
	return ws
}

// reconcile applies a newly-snapshotted Parameters record: rebuilds every
// biquad's coefficients (spec.md invariant 1 — coefficients never lag the
// snapshot by more than one block), pushes codec-facing settings, and
// opens/closes external helper handles whose identity-defining parameters
// changed (spec.md §4.5 step 1, §4.8 lifecycle).
func (ws *workerState) reconcile(p Parameters, opts *EngineOptions) {
	sr := float64(opts.SampleRate)

	if p.HPF.Enabled {
		ws.hpfL.SetCoefficients(biquad.HighPass(p.HPF.Frequency, sr))
		ws.hpfR.SetCoefficients(biquad.HighPass(p.HPF.Frequency, sr))
	}
	if p.LPF.Enabled {
		ws.lpfL.SetCoefficients(biquad.LowPass(p.LPF.Frequency, sr))
		ws.lpfR.SetCoefficients(biquad.LowPass(p.LPF.Frequency, sr))
	}
	for i, freq := range eqFrequencies {
		c := biquad.PeakingEQ(freq, sr, eqQ, p.EQ[i])
		ws.eqL[i].SetCoefficients(c)
		ws.eqR[i].SetCoefficients(c)
	}
	ws.refHpf.SetCoefficients(biquad.HighPass(p.VoiceExclusion.RefHpf, sr))
	ws.refLpf.SetCoefficients(biquad.LowPass(p.VoiceExclusion.RefLpf, sr))

	ws.tinnitusLayer.Configure(tinnitusConfigFrom(&p))

	if ws.nlmsFilterLen != p.VoiceExclusion.FilterLength {
		ws.nlmsL = nlms.New(p.VoiceExclusion.FilterLength)
		ws.nlmsR = nlms.New(p.VoiceExclusion.FilterLength)
		ws.nlmsFilterLen = p.VoiceExclusion.FilterLength
	}

	ws.reconcileAEC(p, opts)
	ws.reconcileVAD(p, opts)
	ws.reconcileNS(p, opts)
	ws.reconcileAGC(p, opts)

	opts.Codec.SetInGain(p.MicGain)
	opts.Codec.SetVolume(p.Output.Volume)
	opts.Codec.SetMute(p.Output.Mute)
}

func (ws *workerState) reconcileAEC(p Parameters, opts *EngineOptions) {
	want := p.VoiceExclusion.Enabled && p.VoiceExclusion.Mode == VoiceExclusionAEC
	key := [3]int{opts.HelperRate, p.VoiceExclusion.AECFilterLen, p.VoiceExclusion.AECMode}
	if !want {
		if ws.aecHandle != nil {
			ws.aecHandle.Destroy()
			ws.aecHandle = nil
		}
		return
	}
	if ws.aecHandle != nil && key == ws.aecHandleKey {
		return
	}
	if ws.aecHandle != nil {
		ws.aecHandle.Destroy()
		ws.aecHandle = nil
	}
	h, err := opts.AECProvider.Create(opts.HelperRate, p.VoiceExclusion.AECFilterLen, 1, p.VoiceExclusion.AECMode)
	if err != nil {
		opts.Logger.Printf("%v", errors.Wrap(err, "open AEC helper"))
		return
	}
	ws.aecHandle = h
	ws.aecHandleKey = key
	ws.bridgeL.Reset()
	ws.bridgeR.Reset()
	ws.bridgeRef.Reset()
}

func (ws *workerState) reconcileVAD(p Parameters, opts *EngineOptions) {
	if !p.VoiceExclusion.VADEnabled {
		if ws.vadHandle != nil {
			ws.vadHandle.Destroy()
			ws.vadHandle = nil
		}
		return
	}
	if ws.vadHandle != nil && ws.vadHandleMode == p.VoiceExclusion.VADMode {
		return
	}
	if ws.vadHandle != nil {
		ws.vadHandle.Destroy()
		ws.vadHandle = nil
	}
	h, err := opts.VADProvider.Create(p.VoiceExclusion.VADMode)
	if err != nil {
		opts.Logger.Printf("%v", errors.Wrap(err, "open VAD helper"))
		return
	}
	ws.vadHandle = h
	ws.vadHandleMode = p.VoiceExclusion.VADMode
}

func (ws *workerState) reconcileNS(p Parameters, opts *EngineOptions) {
	key := [2]int{p.NS.Mode, opts.HelperRate}
	if !p.NS.Enabled {
		if ws.nsHandle != nil {
			ws.nsHandle.Destroy()
			ws.nsHandle = nil
		}
		return
	}
	if ws.nsHandle != nil && key == ws.nsHandleKey {
		return
	}
	if ws.nsHandle != nil {
		ws.nsHandle.Destroy()
		ws.nsHandle = nil
	}
	h, err := opts.NSProvider.Create(ws.helperBlock, p.NS.Mode, opts.HelperRate)
	if err != nil {
		opts.Logger.Printf("%v", errors.Wrap(err, "open NS helper"))
		return
	}
	ws.nsHandle = h
	ws.nsHandleKey = key
}

func (ws *workerState) reconcileAGC(p Parameters, opts *EngineOptions) {
	key := [2]int{p.AGC.Mode, opts.HelperRate}
	if !p.AGC.Enabled {
		if ws.agcHandle != nil {
			ws.agcHandle.Destroy()
			ws.agcHandle = nil
		}
		return
	}
	if ws.agcHandle == nil || key != ws.agcHandleKey {
		if ws.agcHandle != nil {
			ws.agcHandle.Destroy()
		}
		h, err := opts.AGCProvider.Create(p.AGC.Mode, opts.HelperRate)
		if err != nil {
			opts.Logger.Printf("%v", errors.Wrap(err, "open AGC helper"))
			ws.agcHandle = nil
			return
		}
		ws.agcHandle = h
		ws.agcHandleKey = key
	}
	ws.agcHandle.SetConfig(p.AGC.CompressionGainDb, p.AGC.LimiterEnabled, p.AGC.TargetLevelDbfs)
}

// destroyHelpers closes every currently-open external helper handle. Called
// from Engine.Stop once the worker has exited.
func (ws *workerState) destroyHelpers() {
	if ws.nsHandle != nil {
		ws.nsHandle.Destroy()
		ws.nsHandle = nil
	}
	if ws.agcHandle != nil {
		ws.agcHandle.Destroy()
		ws.agcHandle = nil
	}
	if ws.aecHandle != nil {
		ws.aecHandle.Destroy()
		ws.aecHandle = nil
	}
	if ws.vadHandle != nil {
		ws.vadHandle.Destroy()
		ws.vadHandle = nil
	}
}

// runWorker is the dedicated real-time loop: the blocking codec read paces
// the iteration, all other work is non-blocking compute, and the loop's
// only exit condition is the running flag clearing (spec.md §5).
func (e *Engine) runWorker(ws *workerState) {
	n := e.opts.BlockSize
	inBuf := make([]byte, n*4*2)  // 4 channels, 16-bit
	outBuf := make([]byte, n*2*2) // 2 channels, 16-bit

	params := e.paramState.GetParams()

	for e.running.Load() {
		select {
		case <-e.stopCh:
			return
		default:
		}

		if e.paramState.snapshotIfDirty(&params) {
			ws.reconcile(params, &e.opts)
		}

		read, err := e.opts.Codec.Read(inBuf)
		if err != nil {
			e.failStopped(err, "codec read")
			return
		}
		if read <= 0 {
			continue // transient short-read: skip and retry next iteration (§7 item 4)
		}

		lv := e.processBlockRecovered(ws, &params, inBuf, outBuf)
		e.paramState.publishLevels(lv)

		if _, err := e.opts.Codec.Write(outBuf); err != nil {
			e.failStopped(err, "codec write")
			return
		}
	}
}

// failStopped marks the engine stopped from inside the worker goroutine
// itself — a fatal codec error is "marked engine stopped" per §7 item 3,
// but the worker can't call Stop() to do it: Stop() waits on this very
// goroutine's WaitGroup entry, which would deadlock. A no-op if Stop() has
// already won the race to flip running off.
func (e *Engine) failStopped(err error, op string) {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.opts.Logger.Printf("%v", errors.Wrap(err, op))
	if e.ws != nil {
		e.ws.destroyHelpers()
		e.ws = nil
	}
	e.opts.Codec.SetMute(true)
	e.opts.Codec.SetSpeakerAmp(true)
}

// processBlockRecovered wraps processBlock so a panic in any stage (most
// plausibly a misbehaving external helper) is recovered, logged with the
// engine's InstanceID, and treated as if the block produced silence — the
// DSP loop itself never unwinds (spec.md §7's propagation policy).
func (e *Engine) processBlockRecovered(ws *workerState, p *Parameters, in []byte, out []byte) (lv Levels) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Printf("engine %s: recovered panic in block processing: %v", e.opts.InstanceID, r)
			for i := range out {
				out[i] = 0
			}
			lv = e.paramState.GetLevels()
		}
	}()
	return e.processBlock(ws, p, in, out)
}

// processBlock runs one 10 ms iteration of the DSP chain (spec.md §4.5
// steps 2–13; step 1 is handled by reconcile above).
func (e *Engine) processBlock(ws *workerState, p *Parameters, in []byte, out []byte) Levels {
	n := len(ws.left)

	// Step 2: deinterleave 4-channel int16 PCM into float32 [-1, 1].
	// Channel index 2 (an auxiliary echo-cancellation reference alongside
	// the headphone-boom reference on channel 3) is read off the wire to
	// keep the codec's fixed 4-channel frame shape, but only primary L/R
	// and the headphone-boom reference (HP) feed the pipeline, per
	// spec.md §4.5 step 2's three-channel deinterleave.
	for i := 0; i < n; i++ {
		base := i * 8
		ws.left[i] = int16le(in, base+0)
		ws.right[i] = int16le(in, base+2)
		ws.refHP[i] = int16le(in, base+6)
	}

	// Step 3: HPF then LPF.
	if p.HPF.Enabled {
		ws.hpfL.ProcessBuffer(ws.left)
		ws.hpfR.ProcessBuffer(ws.right)
	}
	if p.LPF.Enabled {
		ws.lpfL.ProcessBuffer(ws.left)
		ws.lpfR.ProcessBuffer(ws.right)
	}

	if p.Tinnitus.NotchesPreEQ {
		ws.tinnitusLayer.Notches(ws.left, ws.right)
	}

	// Step 4: three peaking-EQ biquads in series.
	for i := range ws.eqL {
		ws.eqL[i].ProcessBuffer(ws.left)
		ws.eqR[i].ProcessBuffer(ws.right)
	}

	if !p.Tinnitus.NotchesPreEQ {
		ws.tinnitusLayer.Notches(ws.left, ws.right)
	}
	ws.tinnitusLayer.Synthesize(ws.left, ws.right, tinnitusConfigFrom(p))

	// Step 5: reference conditioning.
	for i, s := range ws.refHP {
		ws.refHP[i] = s * float32(p.VoiceExclusion.RefGain)
	}
	ws.refHpf.ProcessBuffer(ws.refHP)
	ws.refLpf.ProcessBuffer(ws.refHP)

	// Step 6: HP RMS/peak.
	rmsHP, peakHP := ws.meterHP.Update(ws.refHP)

	// Step 7: headphone-presence probe, polled at most every
	// headphoneProbeInterval blocks (plus once immediately on the first
	// block, via headphoneFirstProbe).
	ws.headphoneCounter++
	if ws.headphoneCounter >= headphoneProbeInterval || !ws.headphoneFirstProbe {
		ws.headphoneCounter = 0
		ws.headphoneFirstProbe = true
		if e.opts.HeadphoneDetect != nil {
			ws.headphonePresent = e.opts.HeadphoneDetect.Present()
		} else {
			ws.headphonePresent = true
		}
	}

	// Step 8: voice-exclusion, mutually exclusive modes, skipped entirely
	// without a headphone present.
	vadSpeech := e.paramState.GetLevels().VADSpeechDetected
	if p.VoiceExclusion.Enabled && ws.headphonePresent {
		switch p.VoiceExclusion.Mode {
		case VoiceExclusionNLMS:
			ws.voiceExclusionNLMS(p)
		case VoiceExclusionAEC:
			vadSpeech = ws.voiceExclusionAEC(p, vadSpeech)
		}
	}

	// Step 9: noise suppression.
	if p.NS.Enabled && ws.nsHandle != nil {
		ws.bridgeHelper16k(ws.left, &ws.nsDownL, &ws.nsUpL, ws.nsHandle.Process)
		ws.bridgeHelper16k(ws.right, &ws.nsDownR, &ws.nsUpR, ws.nsHandle.Process)
	}

	// Step 10: AGC.
	if p.AGC.Enabled && ws.agcHandle != nil {
		ws.bridgeHelper16k(ws.left, &ws.agcDownL, &ws.agcUpL, ws.agcHandle.Process)
		ws.bridgeHelper16k(ws.right, &ws.agcDownR, &ws.agcUpR, ws.agcHandle.Process)
	}

	// Step 11: output gain, with soft-clip saturation when boosted.
	gain := float32(p.Output.Gain)
	boost := p.Output.BoostEnabled && p.Output.Gain > 1
	for i := range ws.left {
		ws.left[i] = applyGain(ws.left[i], gain, boost)
		ws.right[i] = applyGain(ws.right[i], gain, boost)
	}

	// Step 12: RMS/peak, published Levels.
	rmsL, peakL := ws.meterL.Update(ws.left)
	rmsR, peakR := ws.meterR.Update(ws.right)

	lv := Levels{
		RMSLeft: rmsL, RMSRight: rmsR,
		PeakLeft: peakL, PeakRight: peakR,
		RMSHP: rmsHP, PeakHP: peakHP,
		VADSpeechDetected: vadSpeech,
	}

	// Step 13: clamp, int16 convert, mute, interleave, write.
	for i := 0; i < n; i++ {
		l, r := clamp11(ws.left[i]), clamp11(ws.right[i])
		if p.Output.Mute {
			l, r = 0, 0
		}
		putInt16le(out, i*4+0, l)
		putInt16le(out, i*4+2, r)
	}
	return lv
}

func tinnitusConfigFrom(p *Parameters) tinnitus.Config {
	var cfg tinnitus.Config
	for i, nparam := range p.Tinnitus.Notches {
		cfg.Notches[i] = tinnitus.NotchConfig{Enabled: nparam.Enabled, Frequency: nparam.Frequency, Q: nparam.Q}
	}
	cfg.Noise = tinnitus.NoiseConfig{
		Type: tinnitus.NoiseType(p.Tinnitus.Noise.Type), Level: p.Tinnitus.Noise.Level,
		LowCut: p.Tinnitus.Noise.LowCut, HighCut: p.Tinnitus.Noise.HighCut,
	}
	cfg.Tone = tinnitus.ToneConfig{Enabled: p.Tinnitus.Tone.Enabled, Freq: p.Tinnitus.Tone.Freq, Level: p.Tinnitus.Tone.Level}
	cfg.Binaural = tinnitus.BinauralConfig{
		Enabled: p.Tinnitus.Binaural.Enabled, Carrier: p.Tinnitus.Binaural.Carrier,
		Beat: p.Tinnitus.Binaural.Beat, Level: p.Tinnitus.Binaural.Level,
	}
	cfg.Shelf = tinnitus.ShelfConfig{Enabled: p.Tinnitus.HFExt.Enabled, Freq: p.Tinnitus.HFExt.Freq, GainDb: p.Tinnitus.HFExt.GainDb}
	return cfg
}

// voiceExclusionNLMS runs the NLMS voice-exclusion path for both primary
// channels against the conditioned reference (spec.md §4.5 step 8, NLMS
// branch): downsample to 16 kHz, adapt per-sample, upsample the estimate,
// and subtract it from the original signal with blend weighting and a
// per-sample removal-magnitude clamp. The reference is downsampled once
// and shared by both channels' adaptive filters.
func (ws *workerState) voiceExclusionNLMS(p *Parameters) {
	ref16 := ws.scratch16c[:ws.helperBlock]
	ws.veDownHP.Process(ws.refHP, ref16)
	ws.voiceExclusionNLMSChannel(ws.left, ws.nlmsL, &ws.veDownL, &ws.veUpL, ref16, p)
	ws.voiceExclusionNLMSChannel(ws.right, ws.nlmsR, &ws.veDownR, &ws.veUpR, ref16, p)
}

func (ws *workerState) voiceExclusionNLMSChannel(channel []float32, filter *nlms.Filter, down *resample.Downsampler3, up *resample.Upsampler3, ref16 []float32, p *Parameters) {
	primary16 := ws.scratch16a[:ws.helperBlock]
	down.Process(channel, primary16)

	estimate16 := ws.scratch16b[:ws.helperBlock]
	for i, d := range primary16 {
		yHat := filter.Step(float64(ref16[i]), float64(d), p.VoiceExclusion.StepSize)
		if math.IsNaN(yHat) {
			yHat = 0
		}
		estimate16[i] = float32(yHat)
	}

	estimate48 := ws.scratch48[:len(channel)]
	up.Process(estimate16, estimate48)

	blend := float32(p.VoiceExclusion.Blend)
	maxAtten := float32(p.VoiceExclusion.MaxAttenuation)
	for i, x := range channel {
		remove := estimate48[i] * blend
		if math.IsNaN(float64(remove)) {
			remove = 0
		}
		limit := absFloat32(x) * maxAtten
		if remove > limit {
			remove = limit
		} else if remove < -limit {
			remove = -limit
		}
		channel[i] = x - remove
	}
}

// voiceExclusionAEC runs the external-AEC voice-exclusion path (spec.md
// §4.5 step 8, AEC branch). All three bridges (reference, left, right) are
// fed one BlockSize-at-16kHz chunk every block, so they cross the 512-sample
// frame boundary in lockstep: when the reference frame is ready, the two
// primary frames are guaranteed ready too, and the three are processed
// together. Draining queued AEC output back into the 48 kHz stream happens
// every block regardless, since drain and accumulate run on independent
// schedules (spec.md invariant 6). It returns the (possibly updated) VAD
// speech flag.
func (ws *workerState) voiceExclusionAEC(p *Parameters, lastVAD bool) bool {
	tmp16 := ws.scratch16a[:ws.helperBlock]

	ws.aecDownHP.Process(ws.refHP, tmp16)
	refFrame, refReady := ws.bridgeRef.PushInput(tmp16)

	ws.aecDownL.Process(ws.left, tmp16)
	lFrame, lReady := ws.bridgeL.PushInput(tmp16)

	ws.aecDownR.Process(ws.right, tmp16)
	rFrame, rReady := ws.bridgeR.PushInput(tmp16)

	vadSpeech := lastVAD
	if refReady && ws.vadHandle != nil {
		speech, err := ws.vadHandle.Process(int16SliceInto(refFrame, ws.aecInt16A), ws.opts.HelperRate, aecbridge.FrameSize*1000/ws.opts.HelperRate)
		if err == nil {
			vadSpeech = speech
		}
	}

	blend := float32(p.VoiceExclusion.Blend)
	if ws.vadHandle != nil && p.VoiceExclusion.VADGateEnabled && !vadSpeech {
		blend *= float32(1 - p.VoiceExclusion.VADGateAtten)
	}

	if refReady && ws.aecHandle != nil {
		if lReady {
			ws.runAECHelper(refFrame, lFrame, &ws.bridgeL)
		}
		if rReady {
			ws.runAECHelper(refFrame, rFrame, &ws.bridgeR)
		}
	}

	ws.drainAEC(ws.left, &ws.bridgeL, &ws.aecUpL, blend)
	ws.drainAEC(ws.right, &ws.bridgeR, &ws.aecUpR, blend)
	return vadSpeech
}

// runAECHelper hands one accumulated 512-sample primary/reference frame
// pair to the external AEC helper and enqueues its output for draining.
func (ws *workerState) runAECHelper(refFrame, primaryFrame []float32, bridge *aecbridge.Bridge) {
	primaryInt := int16SliceInto(primaryFrame, ws.aecInt16A)
	refInt := int16SliceInto(refFrame, ws.aecInt16B)
	out := ws.aecInt16Out[:len(primaryFrame)]
	if err := ws.aecHandle.Process(primaryInt, refInt, out); err != nil {
		return
	}
	outF := ws.aecFloatOut[:len(out)]
	for i, s := range out {
		outF[i] = float32(s) / 32768.0
	}
	bridge.PushOutput(outF)
}

// drainAEC pulls one BlockSize-at-16kHz chunk of already-computed AEC
// output off bridge, upsamples it, and blends it into channel. A no-op
// when fewer than BlockSize samples are queued, per aecbridge.DrainBlock.
func (ws *workerState) drainAEC(channel []float32, bridge *aecbridge.Bridge, up *resample.Upsampler3, blend float32) {
	drained := ws.scratch16b[:ws.helperBlock]
	if !bridge.DrainBlock(drained) {
		return
	}
	estimate48 := ws.scratch48[:len(channel)]
	up.Process(drained, estimate48)
	for i, x := range channel {
		channel[i] = (1-blend)*x + blend*estimate48[i]
	}
}

// bridgeHelper16k runs one primary channel through a 48↔16 kHz external
// helper (NS or AGC share this shape per spec.md §4.5 steps 9–10):
// downsample, int16-convert, Process, convert back, upsample.
func (ws *workerState) bridgeHelper16k(channel []float32, down *resample.Downsampler3, up *resample.Upsampler3, process func(in, out []int16) error) {
	n16 := ws.helperBlock
	in16 := ws.scratch16a[:n16]
	down.Process(channel, in16)

	ints := ws.scratchInt16a[:n16]
	for i, s := range in16 {
		ints[i] = floatToInt16(s)
	}
	outInts := ws.scratchInt16b[:n16]
	if err := process(ints, outInts); err != nil {
		return
	}
	back := ws.scratch16b[:n16]
	for i, s := range outInts {
		back[i] = float32(s) / 32768.0
	}
	up.Process(back, channel)
}

func applyGain(x, gain float32, boost bool) float32 {
	v := x * gain
	if boost {
		// Soft saturation instead of a hard ceiling, to avoid clicking at
		// the clip boundary (spec.md §4.5 step 11).
		return float32(math.Tanh(float64(v)))
	}
	return v
}

func clamp11(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func absFloat32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func floatToInt16(s float32) int16 {
	return int16(clamp11(s) * 32767)
}

func int16le(buf []byte, off int) float32 {
	v := int16(uint16(buf[off]) | uint16(buf[off+1])<<8)
	return float32(v) / 32768.0
}

func putInt16le(buf []byte, off int, v float32) {
	s := int16(v * 32767)
	buf[off] = byte(uint16(s))
	buf[off+1] = byte(uint16(s) >> 8)
}

// int16SliceInto converts a float32 16 kHz block to int16 PCM into dst
// (reused scratch storage, never allocated per call — spec.md §5), used only
// at the external-AEC/VAD frame boundary, not the per-block hot path.
func int16SliceInto(block []float32, dst []int16) []int16 {
	dst = dst[:len(block)]
	for i, s := range block {
		dst[i] = floatToInt16(s)
	}
	return dst
}
