package meter

import (
	"math"
	"testing"
)

// TestSilentBlockIsZero verifies RMS and peak are both zero for silence.
func TestSilentBlockIsZero(t *testing.T) {
	m := New()
	block := make([]float32, 480)
	rms, peak := m.Update(block)
	if rms != 0 || peak != 0 {
		t.Errorf("expected rms=0 peak=0 for silence, got rms=%v peak=%v", rms, peak)
	}
}

// TestPeakMonotonicDecay verifies the exact decay law from spec.md §8: if
// no sample in a block exceeds prev_peak*decay, the reported peak equals
// exactly prev_peak*decay.
func TestPeakMonotonicDecay(t *testing.T) {
	m := New()
	loud := make([]float32, 480)
	loud[0] = 1.0
	_, peak := m.Update(loud)
	if peak != 1.0 {
		t.Fatalf("expected initial peak 1.0, got %v", peak)
	}

	silence := make([]float32, 480)
	_, peak2 := m.Update(silence)
	want := peak * DefaultDecay
	if peak2 != want {
		t.Errorf("expected decayed peak %v, got %v", want, peak2)
	}

	_, peak3 := m.Update(silence)
	want2 := peak2 * DefaultDecay
	if peak3 != want2 {
		t.Errorf("expected decayed peak %v, got %v", want2, peak3)
	}
}

// TestPeakHoldsAboveDecayedValue verifies a loud sample mid-stream raises
// the peak back up even after decay has begun.
func TestPeakHoldsAboveDecayedValue(t *testing.T) {
	m := New()
	loud := make([]float32, 480)
	loud[0] = 0.5
	m.Update(loud)

	silence := make([]float32, 480)
	m.Update(silence)
	m.Update(silence)

	louder := make([]float32, 480)
	louder[100] = 0.9
	_, peak := m.Update(louder)
	if peak != 0.9 {
		t.Errorf("expected peak to jump to new louder sample 0.9, got %v", peak)
	}
}

// TestRMSKnownSine verifies RMS against the analytically known value for a
// full-scale sine (RMS = amplitude/sqrt(2)).
func TestRMSKnownSine(t *testing.T) {
	const n = 4800
	block := make([]float32, n)
	for i := range block {
		t := float64(i) / 48000.0
		block[i] = float32(math.Sin(2 * math.Pi * 1000 * t))
	}
	got := RMS(block)
	want := float32(1.0 / math.Sqrt2)
	if math.Abs(float64(got-want)) > 0.01 {
		t.Errorf("RMS: want ~%v, got %v", want, got)
	}
}

// TestResetClearsPeak verifies Reset zeros the peak-hold register.
func TestResetClearsPeak(t *testing.T) {
	m := New()
	loud := make([]float32, 10)
	loud[0] = 1.0
	m.Update(loud)
	if m.Peak() == 0 {
		t.Fatal("expected non-zero peak before reset")
	}
	m.Reset()
	if m.Peak() != 0 {
		t.Errorf("expected zero peak after reset, got %v", m.Peak())
	}
}

// TestRatio verifies the mic-calibration ratio helper, including the
// zero-denominator guard.
func TestRatio(t *testing.T) {
	if got := Ratio(1.0, 2.0); got != 0.5 {
		t.Errorf("Ratio(1,2): want 0.5, got %v", got)
	}
	if got := Ratio(1.0, 0.0); got != 0 {
		t.Errorf("Ratio(1,0): want 0, got %v", got)
	}
}
