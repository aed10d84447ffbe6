package hdspcore

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeCodec is an in-memory Codec test double generating synthetic 4-channel
// PCM on Read and recording the 2-channel PCM it receives on Write, grounded
// on the teacher's mockPAStream fake (audio_test.go). Unlike mockPAStream,
// Read/Write never block indefinitely: a real driver paces every call to the
// device's sample clock, which a test has no need to reproduce, since
// runWorker already re-checks stopCh once per iteration (engine.go's
// Start/Stop ordering note). closed flips that contract off, returning an
// error from both so a test can exercise the worker's fatal codec-error exit
// path the same way the teacher's tests exercise stream-stopped errors.
type fakeCodec struct {
	mu sync.Mutex

	sampleRate    int
	bitsPerSample int
	stereo        bool

	inGain, volume int
	muted          bool
	speakerAmp     bool

	blockSamples int
	gen          func(out []float32) // fills one primary-channel block
	refGen       func(out []float32) // fills the boom-reference channel; nil => silence

	writes [][]float32 // one decoded (L,R,L,R,...) block per Write call

	closed atomic.Bool
}

func newFakeCodec(blockSamples int, gen func([]float32)) *fakeCodec {
	return &fakeCodec{blockSamples: blockSamples, gen: gen, speakerAmp: true}
}

var errCodecClosed = fmt.Errorf("fakeCodec: closed")

func (f *fakeCodec) Reconfigure(sampleRate, bitsPerSample int, stereo bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleRate, f.bitsPerSample, f.stereo = sampleRate, bitsPerSample, stereo
	return nil
}

func (f *fakeCodec) Read(buf []byte) (int, error) {
	if f.closed.Load() {
		return 0, errCodecClosed
	}
	n := f.blockSamples
	primary := make([]float32, n)
	f.gen(primary)
	var ref []float32
	if f.refGen != nil {
		ref = make([]float32, n)
		f.refGen(ref)
	}
	for i := 0; i < n; i++ {
		putInt16le(buf, i*8+0, primary[i])
		putInt16le(buf, i*8+2, primary[i])
		putInt16le(buf, i*8+4, 0)
		if ref != nil {
			putInt16le(buf, i*8+6, ref[i])
		} else {
			putInt16le(buf, i*8+6, 0)
		}
	}
	return n * 8, nil
}

func (f *fakeCodec) Write(buf []byte) (int, error) {
	if f.closed.Load() {
		return 0, errCodecClosed
	}
	n := len(buf) / 4
	block := make([]float32, n*2)
	for i := 0; i < n; i++ {
		block[i*2+0] = int16le(buf, i*4+0)
		block[i*2+1] = int16le(buf, i*4+2)
	}
	f.mu.Lock()
	f.writes = append(f.writes, block)
	f.mu.Unlock()
	return len(buf), nil
}

func (f *fakeCodec) SetInGain(v int) { f.mu.Lock(); f.inGain = v; f.mu.Unlock() }
func (f *fakeCodec) SetVolume(v int) { f.mu.Lock(); f.volume = v; f.mu.Unlock() }
func (f *fakeCodec) SetMute(m bool)  { f.mu.Lock(); f.muted = m; f.mu.Unlock() }
func (f *fakeCodec) SetSpeakerAmp(enabled bool) {
	f.mu.Lock()
	f.speakerAmp = enabled
	f.mu.Unlock()
}

func (f *fakeCodec) snapshotWrites() [][]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float32, len(f.writes))
	copy(out, f.writes)
	return out
}

// waitForWrites spins until the codec has recorded at least n blocks, or
// fails the test after timeout — the fake-codec analogue of the teacher's
// waitBlocked helper.
func waitForWrites(t *testing.T, f *fakeCodec, n int, timeout time.Duration) [][]float32 {
	t.Helper()
	deadline := time.After(timeout)
	for {
		writes := f.snapshotWrites()
		if len(writes) >= n {
			return writes
		}
		select {
		case <-deadline:
			t.Fatalf("codec did not record %d blocks within %v (got %d)", n, timeout, len(writes))
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

const testBlockSize = 48 // 1 ms @ 48 kHz, helperBlock=16 @ 16 kHz: keeps tests fast

func silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}

// sineGen returns a generator producing a sine of the given amplitude at
// freq Hz, continuing phase across calls (no click at block boundaries).
func sineGen(freq, sampleRate float64, amplitude float32) func([]float32) {
	var phase float64
	step := 2 * math.Pi * freq / sampleRate
	return func(out []float32) {
		for i := range out {
			out[i] = amplitude * float32(math.Sin(phase))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	}
}

// lcg is a tiny deterministic PRNG so white-noise generators are
// reproducible across test runs without needing math/rand's global lock.
type lcg struct{ state uint32 }

func (l *lcg) next() float32 {
	l.state = l.state*1664525 + 1013904223
	return float32(l.state>>8) / float32(1<<24) // [0, 1)
}

func whiteNoiseGen(amplitude float32, seed uint32) func([]float32) {
	g := &lcg{state: seed}
	return func(out []float32) {
		for i := range out {
			out[i] = amplitude * (2*g.next() - 1)
		}
	}
}

func newTestEngine(t *testing.T, codec *fakeCodec) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOptions{
		Codec:      codec,
		BlockSize:  testBlockSize,
		SampleRate: 48000,
		HelperRate: 16000,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func blockRMS(block []float32) float32 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(block))))
}

// --- Scenario 1: silent input, defaults, mute off -------------------------

func TestScenarioSilentInputProducesZeroOutput(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)
	e.SetMute(false)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	writes := waitForWrites(t, codec, 20, time.Second)
	for i, block := range writes {
		for _, s := range block {
			if s != 0 {
				t.Fatalf("block %d: expected all-zero output, got %v", i, s)
			}
		}
	}
	lv := e.GetLevels()
	if lv.RMSLeft != 0 || lv.RMSRight != 0 {
		t.Fatalf("expected zero RMS on silence, got L=%v R=%v", lv.RMSLeft, lv.RMSRight)
	}
}

// --- Scenario 2: full-scale 1 kHz sine, HPF @ 80 Hz, nothing else ---------

func TestScenarioHPFPassesToneWithinPointTwoDbAndNoClicks(t *testing.T) {
	codec := newFakeCodec(testBlockSize, sineGen(1000, 48000, 1.0))
	e := newTestEngine(t, codec)
	e.SetMute(false)
	e.SetHPF(true, 80)
	e.SetOutputGain(1.0)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	writes := waitForWrites(t, codec, 200, time.Second)

	// Discard the HPF's settling transient (a handful of blocks) and use a
	// steady-state window for the peak comparison.
	steady := writes[100:]
	var peak float32
	for _, block := range steady {
		for i := 0; i < len(block); i += 2 {
			if absFloat32(block[i]) > peak {
				peak = absFloat32(block[i])
			}
		}
	}
	wantMin := float32(1.0 * math.Pow(10, -0.2/20)) // -0.2 dB
	if peak < wantMin || peak > 1.0001 {
		t.Fatalf("steady-state peak %v out of 0.2 dB window around full scale", peak)
	}

	// No clicks: adjacent-sample deltas across block boundaries should stay
	// in line with the deltas a continuous sine produces mid-block.
	var maxDelta float32
	for _, block := range steady {
		for i := 2; i < len(block); i += 2 {
			d := absFloat32(block[i] - block[i-2])
			if d > maxDelta {
				maxDelta = d
			}
		}
	}
	// A full-scale 1 kHz sine at 48 kHz advances at most 2*pi*1000/48000
	// radians per sample; a click would blow well past that.
	maxExpected := float32(2 * math.Pi * 1000 / 48000 * 1.5)
	if maxDelta > maxExpected {
		t.Fatalf("sample-to-sample delta %v suggests a block-edge discontinuity (expected <= %v)", maxDelta, maxExpected)
	}
}

// --- Scenario 3: white noise at -20 dBFS, NS mode=2 -----------------------

func TestScenarioNoiseSuppressionReducesSteadyStateRMS(t *testing.T) {
	amplitude := float32(math.Pow(10, -20.0/20))

	baseline := newFakeCodec(testBlockSize, whiteNoiseGen(amplitude, 1))
	eb := newTestEngine(t, baseline)
	eb.SetMute(false)
	eb.SetHPF(false, 80)
	if err := eb.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	baselineWrites := waitForWrites(t, baseline, 100, time.Second)
	eb.Stop()

	suppressed := newFakeCodec(testBlockSize, whiteNoiseGen(amplitude, 1))
	es := newTestEngine(t, suppressed)
	es.SetMute(false)
	es.SetHPF(false, 80)
	es.SetNS(true, 2)
	if err := es.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	suppressedWrites := waitForWrites(t, suppressed, 100, time.Second)
	es.Stop()

	baseRMS := meanRMS(baselineWrites[50:])
	suppRMS := meanRMS(suppressedWrites[50:])
	if suppRMS >= baseRMS {
		t.Fatalf("NS mode=2 did not reduce steady-state RMS: baseline=%v suppressed=%v", baseRMS, suppRMS)
	}
}

func meanRMS(writes [][]float32) float32 {
	var sum float64
	for _, block := range writes {
		sum += float64(blockRMS(block))
	}
	return float32(sum / float64(len(writes)))
}

// --- Scenario 4: voice-exclusion NLMS converges on a delayed reference ----

func TestScenarioVoiceExclusionNLMSConverges(t *testing.T) {
	const delay = 5
	history := make([]float32, 0, 4096)
	var phase float64
	step := 2 * math.Pi * 300 / 48000

	primary := func(out []float32) {
		for i := range out {
			v := float32(math.Sin(phase))
			phase += step
			history = append(history, v)
			out[i] = v
		}
	}
	reference := func(out []float32) {
		n := len(history)
		for i := range out {
			idx := n - len(out) + i - delay
			if idx < 0 {
				out[i] = 0
			} else {
				out[i] = history[idx]
			}
		}
	}

	codec := newFakeCodec(testBlockSize, primary)
	codec.refGen = reference
	e := newTestEngine(t, codec)
	e.SetMute(false)
	e.SetHPF(false, 80)
	e.SetVoiceExclusion(VoiceExclusionParams{
		Enabled:        true,
		Mode:           VoiceExclusionNLMS,
		Blend:          1.0,
		StepSize:       0.1,
		FilterLength:   128,
		MaxAttenuation: 0.8,
		RefGain:        1.0,
		RefHpf:         20,
		RefLpf:         8000,
		AECFilterLen:   1,
		VADMode:        2,
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// 1 s of audio content at testBlockSize samples/block, 48 kHz.
	blocks := 48000 / testBlockSize
	writes := waitForWrites(t, codec, blocks, 5*time.Second)

	tail := writes[len(writes)-blocks/10:]
	residualRMS := meanRMS(tail)
	wantMax := float32(0.70710678) * 0.20 // 20% of the 1.0-amplitude sine's RMS
	if residualRMS > wantMax {
		t.Fatalf("voice-exclusion NLMS did not converge: residual RMS %v exceeds 20%% of input RMS (%v)", residualRMS, wantMax)
	}
}

// --- Scenario 5: boost with gain=3.0 on a full-scale sine -----------------

func TestScenarioBoostSoftClipsWithoutHardDiscontinuity(t *testing.T) {
	codec := newFakeCodec(testBlockSize, sineGen(1000, 48000, 1.0))
	e := newTestEngine(t, codec)
	e.SetMute(false)
	e.SetHPF(false, 80)
	e.SetOutputGain(3.0)
	e.SetBoostEnabled(true)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	writes := waitForWrites(t, codec, 200, time.Second)
	steady := writes[100:]
	for _, block := range steady {
		for _, s := range block {
			if absFloat32(s) > 1.0 {
				t.Fatalf("boosted output exceeded full scale: %v", s)
			}
		}
	}

	var maxDelta float32
	for _, block := range steady {
		for i := 2; i < len(block); i += 2 {
			d := absFloat32(block[i] - block[i-2])
			if d > maxDelta {
				maxDelta = d
			}
		}
	}
	if maxDelta > 1.5 {
		t.Fatalf("boosted output shows a hard-clip-style discontinuity: max delta %v", maxDelta)
	}
}

// --- Scenario 6: setter churn while a tone plays --------------------------

func TestScenarioEQGainChurnNeverProducesLargeDiscontinuity(t *testing.T) {
	codec := newFakeCodec(testBlockSize, sineGen(1000, 48000, 0.5))
	e := newTestEngine(t, codec)
	e.SetMute(false)
	e.SetHPF(false, 80)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	stopChurn := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gains := []float64{-12, -6, 0, 6, 12}
		i := 0
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopChurn:
				return
			case <-ticker.C:
				e.SetEQGain(1, gains[i%len(gains)])
				i++
			}
		}
	}()

	writes := waitForWrites(t, codec, 400, 2*time.Second)
	close(stopChurn)
	wg.Wait()

	// One-block settle: no single-sample jump should exceed what a
	// worst-case coefficient swap on a full-scale signal could produce.
	const settleBound = float32(2.5)
	for bi := 1; bi < len(writes); bi++ {
		prevLast := writes[bi-1][len(writes[bi-1])-2]
		curFirst := writes[bi][0]
		if d := absFloat32(curFirst - prevLast); d > settleBound {
			t.Fatalf("block %d: cross-block jump %v exceeds one-block settle bound", bi, d)
		}
	}
}

// --- Invariants ------------------------------------------------------------

func TestInvariantMuteForcesZeroOutput(t *testing.T) {
	codec := newFakeCodec(testBlockSize, sineGen(1000, 48000, 1.0))
	e := newTestEngine(t, codec)
	e.SetMute(true)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	writes := waitForWrites(t, codec, 50, time.Second)
	for i, block := range writes {
		for _, s := range block {
			if s != 0 {
				t.Fatalf("block %d: mute asserted but got nonzero sample %v", i, s)
			}
		}
	}
}

func TestInvariantOutputAlwaysClamped(t *testing.T) {
	codec := newFakeCodec(testBlockSize, sineGen(1000, 48000, 1.0))
	e := newTestEngine(t, codec)
	e.SetMute(false)
	e.SetOutputGain(6.0)
	e.SetBoostEnabled(false) // no boost: gain stage alone must still clamp
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	writes := waitForWrites(t, codec, 50, time.Second)
	for _, block := range writes {
		for _, s := range block {
			if s < -1 || s > 1 {
				t.Fatalf("output sample %v outside [-1, 1]", s)
			}
		}
	}
}

func TestInvariantParameterClampRoundTrip(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)

	p := DefaultParameters()
	p.MicGain = 1000     // out of [0, 240]
	p.HPF.Frequency = -5 // out of [20, 2000]
	p.Output.Gain = 100  // out of [0, 6]
	e.SetParams(p)

	got := e.GetParams()
	want := p
	want.Clamp()
	if got != want {
		t.Fatalf("GetParams after SetParams did not equal the clamped record:\n got=%+v\nwant=%+v", got, want)
	}
}

// --- Lifecycle --------------------------------------------------------------

func TestStartStopIdempotent(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	waitForWrites(t, codec, 5, time.Second)

	e.Stop()
	e.Stop() // idempotent, must not panic or double-close stopCh
}

func TestStopOnNeverStarted(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)
	e.Stop() // must be a no-op, not a panic on a nil stopCh
}

func TestStopConcurrent(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForWrites(t, codec, 5, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Stop()
		}()
	}
	wg.Wait()
	if e.IsRunning() {
		t.Fatalf("engine still reports running after concurrent Stop")
	}
}

func TestCodecReadErrorStopsWorkerWithoutPanic(t *testing.T) {
	codec := newFakeCodec(testBlockSize, silence)
	e := newTestEngine(t, codec)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForWrites(t, codec, 3, time.Second)

	codec.closed.Store(true)
	deadline := time.After(time.Second)
	for e.IsRunning() {
		select {
		case <-deadline:
			t.Fatalf("engine did not notice codec read error within timeout")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestNewEngineRequiresCodec(t *testing.T) {
	if _, err := NewEngine(EngineOptions{}); err != ErrCodecUnavailable {
		t.Fatalf("expected ErrCodecUnavailable, got %v", err)
	}
}
