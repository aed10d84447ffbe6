// Command dspsim drives a hdspcore.Engine against a synthetic signal
// generator instead of a real headset codec, so the DSP chain can be
// exercised and watched outside of go test. Grounded on
// linuxmatters-jivetalking's cmd/jivetalking/main.go: kong for flag
// parsing, a bubbletea program for the live display, and a background
// goroutine driving the work while the TUI's event loop owns the terminal.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"hdspcore"
)

// CLI defines dspsim's command-line interface.
type CLI struct {
	Duration time.Duration `default:"10s" help:"How long to run before stopping."`

	ToneHz   float64 `default:"1000" help:"Test-tone frequency in Hz, 0 to disable."`
	ToneAmp  float64 `default:"0.3" help:"Test-tone linear amplitude, [0, 1]."`
	NoiseAmp float64 `default:"0" help:"White-noise linear amplitude mixed into the tone, [0, 1]."`
	EchoMs   float64 `default:"0" help:"If > 0, feed a delayed+attenuated copy of the primary signal as the boom reference, simulating acoustic echo."`

	BlockSize  int `default:"480" help:"Pipeline block size in samples."`
	SampleRate int `default:"48000" help:"Primary sample rate in Hz."`
	HelperRate int `default:"16000" help:"NS/AGC/AEC/VAD helper rate in Hz."`

	HPF     bool    `help:"Enable the high-pass filter."`
	HPFFreq float64 `default:"80" help:"High-pass cutoff in Hz."`
	LPF     bool    `help:"Enable the low-pass filter."`
	LPFFreq float64 `default:"18000" help:"Low-pass cutoff in Hz."`

	NS     bool `help:"Enable noise suppression."`
	NSMode int  `default:"1" help:"Noise-suppression mode, [0, 2]."`

	AGC bool `help:"Enable automatic gain control."`

	VoiceExclusion bool `help:"Enable voice-exclusion (requires --echo-ms to have any effect)."`

	Gain  float64 `default:"1.0" help:"Output gain, [0, 6]."`
	Boost bool    `help:"Enable the soft-clip boost path above gain 1.0."`

	Headless bool `help:"Print periodic level summaries instead of a live TUI."`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("dspsim"),
		kong.Description("Synthetic-signal simulation harness for the hdspcore DSP engine"),
		kong.UsageOnError(),
	)

	sim := newSimCodec(cli.SampleRate, cli.BlockSize, cli.ToneHz, cli.ToneAmp, cli.NoiseAmp, cli.EchoMs)

	engine, err := hdspcore.NewEngine(hdspcore.EngineOptions{
		Codec:      sim,
		BlockSize:  cli.BlockSize,
		SampleRate: cli.SampleRate,
		HelperRate: cli.HelperRate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dspsim: %v\n", err)
		os.Exit(1)
	}

	engine.SetHPF(cli.HPF, cli.HPFFreq)
	engine.SetLPF(cli.LPF, cli.LPFFreq)
	engine.SetNS(cli.NS, cli.NSMode)
	if cli.AGC {
		engine.SetAGC(hdspcore.AGCParams{Enabled: true, Mode: 1, TargetLevelDbfs: -20})
	}
	if cli.VoiceExclusion {
		ve := hdspcore.VoiceExclusionParams{
			Enabled:        true,
			Mode:           hdspcore.VoiceExclusionNLMS,
			Blend:          1.0,
			StepSize:       0.1,
			FilterLength:   128,
			MaxAttenuation: 0.8,
			RefGain:        1.0,
			RefHpf:         20,
			RefLpf:         8000,
			AECFilterLen:   1,
			VADMode:        2,
		}
		engine.SetVoiceExclusion(ve)
	}
	engine.SetOutputGain(cli.Gain)
	engine.SetBoostEnabled(cli.Boost)
	engine.SetMute(false)

	if err := engine.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "dspsim: start: %v\n", err)
		os.Exit(1)
	}
	defer engine.Stop()

	if cli.Headless {
		runHeadless(engine, cli.Duration)
		return
	}

	model := newModel(engine, cli.Duration)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dspsim: ui: %v\n", err)
		os.Exit(1)
	}
}

func runHeadless(engine *hdspcore.Engine, duration time.Duration) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(duration)
	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			lv := engine.GetLevels()
			fmt.Printf("L rms=%.3f peak=%.3f | R rms=%.3f peak=%.3f | HP rms=%.3f peak=%.3f | vad=%v\n",
				lv.RMSLeft, lv.PeakLeft, lv.RMSRight, lv.PeakRight, lv.RMSHP, lv.PeakHP, lv.VADSpeechDetected)
		}
	}
}
