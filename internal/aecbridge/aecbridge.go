// Package aecbridge accumulates the 160-sample 16 kHz blocks the DSP
// pipeline produces every 10 ms into the 512-sample frames the external AEC
// helper requires, and drains its 512-sample outputs back into the
// pipeline's 160-sample cadence. Two independent rings are needed because
// input accumulation and output drain run on different schedules relative
// to the 512-sample frame boundary (spec.md invariant 6).
//
// Neither side is a modulo-indexed ring: the input side is a fixed-size
// linear accumulator whose overflow is copied back to its start, and the
// output side is a slice FIFO that is compacted before each append. There
// are no sequence numbers or timeouts, since there is no network loss to
// conceal inside the DSP core.
package aecbridge

// FrameSize is the external AEC helper's required frame size in samples at
// 16 kHz (spec.md §4.5 step 8, §8 "AEC frame bridge").
const FrameSize = 512

// BlockSize is the pipeline's per-block sample count at 16 kHz (10 ms at
// 16 kHz = 160 samples).
const BlockSize = 160

// Bridge accumulates 16 kHz blocks into AEC-sized frames and drains AEC
// output frames back into block-sized chunks.
type Bridge struct {
	in     [FrameSize]float32
	inLen  int
	frame  [FrameSize]float32 // last completed input frame, returned by PushInput
	out    []float32 // FIFO of already-produced samples awaiting drain
	outPos int
}

// New returns an empty Bridge.
func New() *Bridge {
	return &Bridge{}
}

// Reset clears all buffered state.
func (b *Bridge) Reset() {
	b.inLen = 0
	b.out = b.out[:0]
	b.outPos = 0
}

// PushInput appends a BlockSize chunk to the input accumulator. It returns
// the full FrameSize input frame, and true, exactly when enough samples have
// accumulated to form one — the returned slice aliases internal storage and
// is only valid until the next PushInput call. FrameSize (512) is not a
// multiple of BlockSize (160), so a block routinely straddles the frame
// boundary; whatever doesn't fit in the current frame is carried over as the
// start of the next one rather than dropped.
func (b *Bridge) PushInput(block []float32) ([]float32, bool) {
	n := copy(b.in[b.inLen:FrameSize], block)
	b.inLen += n
	if b.inLen < FrameSize {
		return nil, false
	}
	b.frame = b.in
	leftover := block[n:]
	b.inLen = copy(b.in[:], leftover)
	return b.frame[:], true
}

// PushOutput enqueues one FrameSize AEC output frame for later draining in
// BlockSize chunks.
func (b *Bridge) PushOutput(frame []float32) {
	if b.outPos > 0 {
		// Compact before growing so the FIFO doesn't grow unbounded.
		b.out = append(b.out[:0], b.out[b.outPos:]...)
		b.outPos = 0
	}
	b.out = append(b.out, frame...)
}

// DrainBlock removes and returns the next BlockSize output samples, or
// false if fewer than BlockSize samples are currently queued (the caller
// should fall back to passthrough/silence for this block — per spec.md,
// "does not produce output until it has accumulated 512 samples").
func (b *Bridge) DrainBlock(dst []float32) bool {
	available := len(b.out) - b.outPos
	if available < len(dst) {
		return false
	}
	copy(dst, b.out[b.outPos:b.outPos+len(dst)])
	b.outPos += len(dst)
	return true
}

// QueuedOutput reports how many output samples are currently buffered,
// useful for tests and metering.
func (b *Bridge) QueuedOutput() int {
	return len(b.out) - b.outPos
}
