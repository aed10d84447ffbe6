package aecbridge

import "testing"

func block(fill float32) []float32 {
	b := make([]float32, BlockSize)
	for i := range b {
		b[i] = fill
	}
	return b
}

// TestNoOutputBeforeFullFrame verifies the boundary behavior from spec.md
// §8: the bridge produces no input frame until 512 samples have
// accumulated.
func TestNoOutputBeforeFullFrame(t *testing.T) {
	b := New()
	for i := 0; i < FrameSize/BlockSize; i++ {
		frame, ready := b.PushInput(block(float32(i)))
		if ready {
			t.Fatalf("push %d: unexpected frame ready (accumulated %d of %d)", i, (i+1)*BlockSize, FrameSize)
		}
		_ = frame
	}
}

// TestFrameReadyAtStraddlingBoundary verifies a full FrameSize frame becomes
// available as soon as accumulation reaches 512 samples, even though 512 is
// not a multiple of BlockSize (160): the 4th push straddles the boundary,
// and the samples past the boundary must be carried into the next frame
// rather than dropped.
func TestFrameReadyAtStraddlingBoundary(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		_, ready := b.PushInput(block(1))
		if ready {
			t.Fatalf("push %d: unexpected frame ready (accumulated %d of %d)", i, (i+1)*BlockSize, FrameSize)
		}
	}

	// 4th push: 480 + 160 = 640, straddling FrameSize by 128 samples.
	frame, ready := b.PushInput(block(2))
	if !ready {
		t.Fatal("expected a frame to be ready once accumulation reaches FrameSize")
	}
	if len(frame) != FrameSize {
		t.Fatalf("expected frame length %d, got %d", FrameSize, len(frame))
	}
	for i := 0; i < 480; i++ {
		if frame[i] != 1 {
			t.Fatalf("frame[%d] = %v, want 1", i, frame[i])
		}
	}
	for i := 480; i < FrameSize; i++ {
		if frame[i] != 2 {
			t.Fatalf("frame[%d] = %v, want 2 (leading edge of straddling block)", i, frame[i])
		}
	}

	// The 128-sample leftover tail of the straddling block must lead the
	// next frame, not be dropped: 128 (carried) + 160 + 160 + 160 = 608,
	// ready on the 3rd subsequent push with a 96-sample remainder.
	for i := 0; i < 2; i++ {
		_, ready = b.PushInput(block(3))
		if ready {
			t.Fatalf("push %d after straddle: unexpected frame ready", i)
		}
	}
	frame2, ready := b.PushInput(block(3))
	if !ready {
		t.Fatal("expected a second frame to be ready")
	}
	for i := 0; i < 128; i++ {
		if frame2[i] != 2 {
			t.Fatalf("frame2[%d] = %v, want 2 (carried leftover)", i, frame2[i])
		}
	}
	for i := 128; i < FrameSize; i++ {
		if frame2[i] != 3 {
			t.Fatalf("frame2[%d] = %v, want 3", i, frame2[i])
		}
	}
}

// TestDrainBlockRequiresFullFrame verifies DrainBlock refuses to return a
// partial chunk: one 512-sample frame yields three full 160-sample chunks
// (480 samples), and the 32-sample remainder stays queued.
func TestDrainBlockRequiresFullFrame(t *testing.T) {
	b := New()
	dst := make([]float32, BlockSize)
	if b.DrainBlock(dst) {
		t.Fatal("expected DrainBlock to fail on an empty bridge")
	}

	b.PushOutput(make([]float32, FrameSize))
	drained := 0
	for b.DrainBlock(dst) {
		drained += BlockSize
	}
	if want := FrameSize / BlockSize * BlockSize; drained != want {
		t.Errorf("expected to drain exactly %d samples, drained %d", want, drained)
	}
}

// TestDrainPreservesOrder verifies samples come out in the order they went
// in, across a PushOutput/DrainBlock sequence spanning multiple frames.
func TestDrainPreservesOrder(t *testing.T) {
	b := New()
	frame := make([]float32, FrameSize)
	for i := range frame {
		frame[i] = float32(i)
	}
	b.PushOutput(frame)

	dst := make([]float32, BlockSize)
	var got []float32
	for b.DrainBlock(dst) {
		got = append(got, dst...)
	}
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d: want %v, got %v", i, float32(i), v)
		}
	}
}

// TestResetClearsState verifies Reset discards both input accumulation and
// queued output.
func TestResetClearsState(t *testing.T) {
	b := New()
	b.PushInput(block(1))
	b.PushOutput(make([]float32, FrameSize))
	b.Reset()

	if b.QueuedOutput() != 0 {
		t.Errorf("expected no queued output after Reset, got %d", b.QueuedOutput())
	}
	var ready bool
	for i := 0; i < 3; i++ {
		_, ready = b.PushInput(block(1))
		if ready {
			t.Fatal("frame ready too early after Reset")
		}
	}
	_, ready = b.PushInput(block(1))
	if !ready {
		t.Fatal("expected fresh accumulation to still work after Reset")
	}
}
