package hdspcore

// Codec is the external audio driver the engine reads from and writes to.
// It is consumed, never owned: construction, device selection, and physical
// capture/playback live entirely outside this package.
type Codec interface {
	// Reconfigure sets the transfer format. Called once, from Start.
	Reconfigure(sampleRate, bitsPerSample int, stereo bool) error

	// Read blocks until one interleaved 4-channel 16-bit PCM block is
	// available and fills buf, returning the number of bytes read. It
	// is the worker's sole pacing point on the input side.
	Read(buf []byte) (int, error)

	// Write blocks until the interleaved 2-channel 16-bit PCM block in buf
	// has been accepted by the driver. It is the worker's sole pacing
	// point on the output side.
	Write(buf []byte) (int, error)

	SetInGain(v int)
	SetVolume(v int)
	SetMute(muted bool)

	// SetSpeakerAmp enables or disables the speaker amplifier. The
	// engine disables it on Start (to prevent feedback while filter state
	// settles) and re-enables it on Stop.
	SetSpeakerAmp(enabled bool)
}

// HeadphoneDetect reports whether a headphone is currently connected. The
// engine polls it at most once every headphoneProbeInterval blocks.
type HeadphoneDetect interface {
	Present() bool
}

// NSProvider opens a noise-suppression helper handle.
type NSProvider interface {
	Create(frameSize, mode, rate int) (NSHandle, error)
}

// NSHandle is one open noise-suppression helper instance.
type NSHandle interface {
	Process(in, out []int16) error
	Destroy()
}

// AGCProvider opens an automatic-gain-control helper handle.
type AGCProvider interface {
	Create(mode, rate int) (AGCHandle, error)
}

// AGCHandle is one open AGC helper instance.
type AGCHandle interface {
	SetConfig(compressionDb float64, limiterEnabled bool, targetDbfs float64)
	Process(in, out []int16) error
	Destroy()
}

// AECProvider opens an acoustic-echo-cancellation helper handle.
type AECProvider interface {
	Create(rate, filterLen, channels, mode int) (AECHandle, error)
}

// AECHandle is one open AEC helper instance. Process runs one fixed-size
// frame (512 samples per spec.md §6) given the primary signal and the
// far-end reference.
type AECHandle interface {
	Process(primary, reference, out []int16) error
	Destroy()
}

// VADProvider opens a voice-activity-detection helper handle.
type VADProvider interface {
	Create(mode int) (VADHandle, error)
}

// VADHandle is one open VAD helper instance.
type VADHandle interface {
	// Process classifies one frame of samples at the given rate and
	// frame duration, reporting speech presence.
	Process(samples []int16, rate, frameMs int) (speech bool, err error)
	Destroy()
}
