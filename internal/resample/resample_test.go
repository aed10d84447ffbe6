package resample

import (
	"math"
	"testing"
)

func sine(freq, sampleRate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

func rms(buf []float32) float64 {
	var sum float64
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	if len(buf) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// TestDownsampleReducesLength verifies the basic 3:1 length relationship.
func TestDownsampleReducesLength(t *testing.T) {
	var d Downsampler3
	in := sine(1000, 48000, 300)
	out := make([]float32, 100)
	d.Process(in, out)
	if len(out) != 100 {
		t.Fatalf("expected 100 output samples, got %d", len(out))
	}
}

// TestUpsampleExpandsLength verifies the basic 1:3 length relationship.
func TestUpsampleExpandsLength(t *testing.T) {
	var u Upsampler3
	in := sine(1000, 16000, 100)
	out := make([]float32, 300)
	u.Process(in, out)
	if len(out) != 300 {
		t.Fatalf("expected 300 output samples, got %d", len(out))
	}
}

// TestRoundTripPreservesLowFrequencyContent exercises the resampler identity
// property from spec.md §8: a signal well inside the passband, downsampled
// then upsampled, should closely resemble the original away from the
// boundary, once the filter's startup transient has passed.
func TestRoundTripPreservesLowFrequencyContent(t *testing.T) {
	const blocksAt48 = 480 * 10 // 10 blocks, far more than the filter's settle time
	in := sine(1000, 48000, blocksAt48)

	var down Downsampler3
	var up Upsampler3

	mid := make([]float32, blocksAt48/3)
	down.Process(in, mid)

	out := make([]float32, blocksAt48)
	up.Process(mid, out)

	// Compare steady-state RMS well after the transient and well before the
	// trailing edge, where the causal group delay has fully settled.
	skip := 480
	a := in[skip : blocksAt48-skip]
	b := out[skip : blocksAt48-skip]

	ra, rb := rms(a), rms(b)
	if ra == 0 {
		t.Fatal("input RMS is zero, test signal is degenerate")
	}
	ratioDb := 20 * math.Log10(rb/ra)
	// A generous bound: the round trip should preserve most of the energy
	// of a passband tone, not attenuate it by more than 6 dB.
	if math.Abs(ratioDb) > 6 {
		t.Errorf("round-trip RMS ratio %.2f dB outside expected passband range", ratioDb)
	}
}

// TestHighFrequencyIsAttenuatedByDownsample verifies content above the new
// 16 kHz Nyquist (8 kHz) is suppressed by the anti-aliasing filter rather
// than folding back as audible noise.
func TestHighFrequencyIsAttenuatedByDownsample(t *testing.T) {
	in := sine(15000, 48000, 4800)
	var d Downsampler3
	out := make([]float32, 1600)
	d.Process(in, out)

	inRMS := rms(in[480:])
	outRMS := rms(out[160:])
	if outRMS >= inRMS*0.5 {
		t.Errorf("expected strong attenuation of 15kHz content after downsample, in=%.4f out=%.4f", inRMS, outRMS)
	}
}

// TestResetClearsHistory verifies Reset zeros the carried history.
func TestResetClearsHistory(t *testing.T) {
	var d Downsampler3
	in := sine(1000, 48000, 480)
	out := make([]float32, 160)
	d.Process(in, out)
	d.Reset()
	if d.history != ([downHistory]float64{}) {
		t.Error("Reset did not clear history")
	}
}

// BenchmarkDownsampleBlock measures the per-block cost of downsampling a
// standard 480-sample 48 kHz block to 160 samples.
func BenchmarkDownsampleBlock(b *testing.B) {
	var d Downsampler3
	in := sine(1000, 48000, 480)
	out := make([]float32, 160)

	b.ResetTimer()
	for b.Loop() {
		d.Process(in, out)
	}
}
