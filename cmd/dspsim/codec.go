package main

import (
	"encoding/binary"
	"math"
	"sync"
)

// simCodec implements hdspcore.Codec by synthesizing a test signal on Read
// and discarding whatever it receives on Write, since there is no physical
// playback device in a simulation harness. The primary channel carries a
// sine tone optionally mixed with white noise; the boom-reference channel
// optionally carries a delayed, attenuated copy of the primary signal so
// --voice-exclusion has something to cancel against.
type simCodec struct {
	mu sync.Mutex

	sampleRate   int
	blockSamples int

	toneHz, toneAmp, noiseAmp float64
	echoSamples               int
	echoAtten                 float64

	phase   float64
	rngSeed uint32

	history []float64 // ring of recent primary samples, for the echo reference

	inGain, volume int
	muted          bool
	speakerAmp     bool
}

func newSimCodec(sampleRate, blockSamples int, toneHz, toneAmp, noiseAmp, echoMs float64) *simCodec {
	c := &simCodec{
		sampleRate:   sampleRate,
		blockSamples: blockSamples,
		toneHz:       toneHz,
		toneAmp:      toneAmp,
		noiseAmp:     noiseAmp,
		rngSeed:      0xC0FFEE,
		speakerAmp:   true,
	}
	if echoMs > 0 {
		c.echoSamples = int(echoMs * float64(sampleRate) / 1000)
		c.echoAtten = 0.4
	}
	return c
}

func (c *simCodec) Reconfigure(sampleRate, bitsPerSample int, stereo bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sampleRate = sampleRate
	return nil
}

func (c *simCodec) next() float64 {
	c.rngSeed = c.rngSeed*1664525 + 1013904223
	return float64(c.rngSeed>>8)/float64(1<<24)*2 - 1
}

func (c *simCodec) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.blockSamples
	step := 2 * math.Pi * c.toneHz / float64(c.sampleRate)

	for i := 0; i < n; i++ {
		v := c.toneAmp*math.Sin(c.phase) + c.noiseAmp*c.next()
		c.phase += step
		if c.phase > 2*math.Pi {
			c.phase -= 2 * math.Pi
		}
		c.history = append(c.history, v)

		var ref float64
		if c.echoSamples > 0 {
			idx := len(c.history) - 1 - c.echoSamples
			if idx >= 0 {
				ref = c.history[idx] * c.echoAtten
			}
		}

		writeInt16le(buf, i*8+0, v)
		writeInt16le(buf, i*8+2, v)
		writeInt16le(buf, i*8+4, 0)
		writeInt16le(buf, i*8+6, ref)
	}

	// Keep the echo history bounded to the last 200 ms (sampleRate/5
	// samples); a longer --echo-ms finds no history and leaves the
	// reference silent.
	if maxHistory := c.sampleRate / 5; len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}

	return n * 8, nil
}

func (c *simCodec) Write(buf []byte) (int, error) {
	return len(buf), nil
}

func (c *simCodec) SetInGain(v int)  { c.mu.Lock(); c.inGain = v; c.mu.Unlock() }
func (c *simCodec) SetVolume(v int)  { c.mu.Lock(); c.volume = v; c.mu.Unlock() }
func (c *simCodec) SetMute(m bool)   { c.mu.Lock(); c.muted = m; c.mu.Unlock() }
func (c *simCodec) SetSpeakerAmp(enabled bool) {
	c.mu.Lock()
	c.speakerAmp = enabled
	c.mu.Unlock()
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func writeInt16le(buf []byte, off int, v float64) {
	s := int16(clampUnit(v) * 32767)
	binary.LittleEndian.PutUint16(buf[off:], uint16(s))
}
