// Package hdspcore implements a low-latency, real-time audio enhancement
// engine for a headset-style device: a configurable DSP chain sitting
// between a 4-channel microphone codec and a 2-channel headphone output,
// with live-tunable filtering, voice-exclusion echo cancellation, noise
// suppression, AGC, metering, and a tinnitus-masking synthesis layer.
//
// The engine owns no global state (see DESIGN.md's resolution of the
// "process-wide singleton" design note): callers construct an Engine value
// with NewEngine and are responsible for its lifetime.
package hdspcore

import (
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrCodecUnavailable is returned from NewEngine when no Codec was supplied,
// and (wrapped) from Start when reconfiguring the codec fails — a fatal
// condition for the session per spec.md §7 item 3.
var ErrCodecUnavailable = errors.New("hdspcore: codec unavailable")

// headphoneProbeInterval is how often (in blocks) the headphone-presence
// probe is polled — spec.md §4.5 step 7, "at most every 48 blocks (~½ s)".
const headphoneProbeInterval = 48

// EngineOptions bundles construction-time configuration, distinct from the
// live Parameters record exchanged via SetParams/GetParams.
type EngineOptions struct {
	// Logger receives the engine's structured log lines. Defaults to
	// log.Default() prefixed "[hdsp] " if nil.
	Logger *log.Logger

	// BlockSize is the pipeline's per-iteration sample count. Defaults to
	// 480 (10 ms @ 48 kHz). Only meant to be overridden for tests at
	// smaller sizes — never changed at runtime.
	BlockSize int

	// SampleRate is the primary pipeline sample rate. Defaults to 48000.
	SampleRate int

	// HelperRate is the external NS/AGC/AEC/VAD helper rate. Defaults to
	// 16000.
	HelperRate int

	// InstanceID identifies this engine in its start, stop and
	// recovered-panic log lines, so a harness running several simulated
	// headsets can tell them apart. Helper-handle open failures are logged
	// without it. Generated with uuid.New() if zero.
	InstanceID uuid.UUID

	// Codec is the required external audio driver (§6). NewEngine returns
	// ErrCodecUnavailable if nil.
	Codec Codec

	// HeadphoneDetect is the optional headphone-presence probe. If nil,
	// the engine behaves as if a headphone is always present.
	HeadphoneDetect HeadphoneDetect

	// NSProvider, AGCProvider, AECProvider, VADProvider are the external
	// helper providers. Any left nil fall back to this module's built-in
	// reference implementation (helpers.go), so the engine is usable
	// without a real platform SDK.
	NSProvider  NSProvider
	AGCProvider AGCProvider
	AECProvider AECProvider
	VADProvider VADProvider
}

func (o *EngineOptions) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "[hdsp] ", log.LstdFlags)
	}
	if o.BlockSize == 0 {
		o.BlockSize = 480
	}
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
	if o.HelperRate == 0 {
		o.HelperRate = 16000
	}
	if o.InstanceID == uuid.Nil {
		o.InstanceID = uuid.New()
	}
	if o.NSProvider == nil {
		o.NSProvider = builtinNSProvider{}
	}
	if o.AGCProvider == nil {
		o.AGCProvider = builtinAGCProvider{}
	}
	if o.AECProvider == nil {
		o.AECProvider = builtinAECProvider{}
	}
	if o.VADProvider == nil {
		o.VADProvider = builtinVADProvider{}
	}
}

// Engine is one DSP engine instance: the live parameter/Levels record, the
// external collaborators it was constructed with, and (while running) the
// worker goroutine's exclusively-owned pipeline state.
type Engine struct {
	*paramState

	opts EngineOptions

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	ws *workerState
}

// NewEngine validates opts and returns a ready-to-Start Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Codec == nil {
		return nil, ErrCodecUnavailable
	}
	opts.setDefaults()
	return &Engine{
		paramState: newParamState(),
		opts:       opts,
	}, nil
}

// IsRunning reports whether the worker goroutine is active.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// Start validates the engine is not already running, resets all filter and
// adaptive-filter state, opens whatever external helper handles the current
// parameters require, and dispatches the worker goroutine. It follows the
// teacher's AudioEngine.Start/Stop sequencing: the speaker amp is disabled
// before the worker starts touching the signal path, to avoid feedback
// while filter state is still settling, and re-enabled only in Stop.
func (e *Engine) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return nil
	}

	if err := e.opts.Codec.Reconfigure(e.opts.SampleRate, 16, true); err != nil {
		e.running.Store(false)
		return errors.Wrapf(ErrCodecUnavailable, "reconfigure: %v", err)
	}
	e.opts.Codec.SetSpeakerAmp(false)

	params := e.paramState.GetParams()
	ws := newWorkerState(e.opts)
	ws.reconcile(params, &e.opts)
	e.ws = ws

	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runWorker(ws)
	}()

	e.opts.Logger.Printf("engine %s started", e.opts.InstanceID)
	return nil
}

// Stop signals the worker to exit, waits for it, then tears down helper
// handles and mutes/re-enables the speaker amp. Stream-stop-before-release
// ordering matters here exactly as in the teacher's AudioEngine.Stop: the
// stop signal unblocks the worker's blocking codec read/write before any
// state the worker might still be touching is released.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	e.wg.Wait()

	if e.ws != nil {
		e.ws.destroyHelpers()
		e.ws = nil
	}

	e.opts.Codec.SetMute(true)
	e.opts.Codec.SetSpeakerAmp(true)
	e.opts.Logger.Printf("engine %s stopped", e.opts.InstanceID)
}
