package tinnitus

// BinauralGenerator produces a binaural-beat pair: a carrier tone to the
// left channel and carrier+beat to the right, so the perceived beat
// frequency is the difference between the two ears' tones.
type BinauralGenerator struct {
	left, right *Oscillator
}

// NewBinauralGenerator returns a BinauralGenerator at the given sample rate.
func NewBinauralGenerator(sampleRate float64) *BinauralGenerator {
	return &BinauralGenerator{
		left:  NewOscillator(sampleRate),
		right: NewOscillator(sampleRate),
	}
}

// SetEnabled starts/stops both channels' fade envelopes together so the
// beat doesn't momentarily appear lopsided.
func (b *BinauralGenerator) SetEnabled(enabled bool) {
	b.left.SetEnabled(enabled)
	b.right.SetEnabled(enabled)
}

// Enabled reports the generator's logical enabled state.
func (b *BinauralGenerator) Enabled() bool { return b.left.Enabled() }

// Generate fills outL/outR with the carrier and carrier+beat tones
// respectively, at the given level.
func (b *BinauralGenerator) Generate(outL, outR []float32, carrier, beat float64, level float32) {
	b.left.Generate(outL, carrier, level)
	b.right.Generate(outR, carrier+beat, level)
}

// Reset clears both oscillators' phase/fade state.
func (b *BinauralGenerator) Reset() {
	b.left.Reset()
	b.right.Reset()
}
