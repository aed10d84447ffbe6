package tinnitus

// NotchConfig configures one notch filter in a NotchBank.
type NotchConfig struct {
	Enabled   bool
	Frequency float64 // Hz, clamped to [500, 12000] by the caller
	Q         float64 // clamped to [1, 16] by the caller
}

// NoiseConfig configures the masking-noise generator.
type NoiseConfig struct {
	Type    NoiseType
	Level   float32
	LowCut  float64
	HighCut float64
}

// ToneConfig configures the pure-tone finder, added equally to both
// channels so the listener can sweep it to match their perceived tone.
type ToneConfig struct {
	Enabled bool
	Freq    float64
	Level   float32
}

// BinauralConfig configures the binaural-beat generator.
type BinauralConfig struct {
	Enabled bool
	Carrier float64
	Beat    float64 // Hz, clamped to [1, 40] by the caller
	Level   float32
}

// ShelfConfig configures the HF-extension high-shelf filter.
type ShelfConfig struct {
	Enabled bool
	Freq    float64
	GainDb  float64
}

// Config bundles every tinnitus sub-component's configuration for one
// Configure call.
type Config struct {
	Notches  [MaxNotches]NotchConfig
	Noise    NoiseConfig
	Tone     ToneConfig
	Binaural BinauralConfig
	Shelf    ShelfConfig
}

// Layer is the full per-channel tinnitus synthesis/suppression chain
// (spec.md §4.6): six notches, a masking-noise generator, a tone-finder
// oscillator, a binaural-beat pair, and an HF-extension shelf. One Layer
// per stereo output pair; the notch bank and shelf run per-channel, masking
// noise comes from a separately seeded generator per channel, the tone is
// generated once and summed into both channels, and the binaural pair puts
// the carrier on the left and carrier+beat on the right.
type Layer struct {
	sampleRate float64

	notchesL, notchesR NotchBank
	shelfL, shelfR     HFExtension

	noiseL, noiseR *Generator
	tone           *Oscillator
	binaural       *BinauralGenerator

	scratch  []float32
	scratchL []float32
	scratchR []float32
}

// NewLayer returns a Layer for the given sample rate and block size. The
// noise generators are seeded differently per channel so left/right
// masking noise decorrelates instead of sounding mono.
func NewLayer(sampleRate float64, blockSize int) *Layer {
	return &Layer{
		sampleRate: sampleRate,
		noiseL:     NewGenerator(0x2545F491),
		noiseR:     NewGenerator(0x9E3779B9),
		tone:       NewOscillator(sampleRate),
		binaural:   NewBinauralGenerator(sampleRate),
		scratch:    make([]float32, blockSize),
		scratchL:   make([]float32, blockSize),
		scratchR:   make([]float32, blockSize),
	}
}

// Configure applies cfg to every sub-component. Safe to call every block;
// each sub-component's Configure is itself cheap (coefficient recompute
// only, no allocation).
func (l *Layer) Configure(cfg Config) {
	for i, nc := range cfg.Notches {
		l.notchesL.Configure(i, nc.Enabled, nc.Frequency, nc.Q, l.sampleRate)
		l.notchesR.Configure(i, nc.Enabled, nc.Frequency, nc.Q, l.sampleRate)
	}
	l.noiseL.Configure(cfg.Noise.LowCut, cfg.Noise.HighCut, l.sampleRate)
	l.noiseR.Configure(cfg.Noise.LowCut, cfg.Noise.HighCut, l.sampleRate)
	l.tone.SetEnabled(cfg.Tone.Enabled)
	l.binaural.SetEnabled(cfg.Binaural.Enabled)
	l.shelfL.Configure(cfg.Shelf.Enabled, cfg.Shelf.Freq, cfg.Shelf.GainDb, l.sampleRate)
	l.shelfR.Configure(cfg.Shelf.Enabled, cfg.Shelf.Freq, cfg.Shelf.GainDb, l.sampleRate)
}

// Process runs notch suppression on left/right in place, then synthesizes
// and sums masking noise, tone-finder, and binaural beats, then applies
// the HF-extension shelf, per spec.md §4.6's ordering ("notches ... then
// added at level ... HF extension").
func (l *Layer) Process(left, right []float32, cfg Config) {
	l.Notches(left, right)
	l.Synthesize(left, right, cfg)
}

// Notches runs only the notch bank. Split out from Process so the pipeline
// can route notches ahead of the 3-band EQ when Parameters.Tinnitus.NotchesPreEQ
// is set, instead of in their default post-EQ position.
func (l *Layer) Notches(left, right []float32) {
	l.notchesL.ProcessBuffer(left)
	l.notchesR.ProcessBuffer(right)
}

// Synthesize runs everything in Process except the notch bank: masking
// noise, tone-finder, binaural beats, then the HF-extension shelf.
func (l *Layer) Synthesize(left, right []float32, cfg Config) {
	n := len(left)

	noise := l.scratch[:n]
	l.noiseL.Generate(noise, cfg.Noise.Type, cfg.Noise.Level)
	for i := range left {
		left[i] += noise[i]
	}
	l.noiseR.Generate(noise, cfg.Noise.Type, cfg.Noise.Level)
	for i := range right {
		right[i] += noise[i]
	}

	if cfg.Tone.Enabled || l.tone.Enabled() || l.tone.fadeFrames != 0 {
		tone := l.scratch[:n]
		l.tone.Generate(tone, cfg.Tone.Freq, cfg.Tone.Level)
		for i := range left {
			left[i] += tone[i]
			right[i] += tone[i]
		}
	}

	if cfg.Binaural.Enabled || l.binaural.Enabled() || l.binaural.left.fadeFrames != 0 {
		beatL, beatR := l.scratchL[:n], l.scratchR[:n]
		l.binaural.Generate(beatL, beatR, cfg.Binaural.Carrier, cfg.Binaural.Beat, cfg.Binaural.Level)
		for i := range left {
			left[i] += beatL[i]
			right[i] += beatR[i]
		}
	}

	l.shelfL.ProcessBuffer(left)
	l.shelfR.ProcessBuffer(right)
}

// Reset clears every sub-component's internal state.
func (l *Layer) Reset() {
	l.notchesL.Reset()
	l.notchesR.Reset()
	l.noiseL.Reset()
	l.noiseR.Reset()
	l.tone.Reset()
	l.binaural.Reset()
	l.shelfL.Reset()
	l.shelfR.Reset()
}
