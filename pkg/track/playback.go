package track

import "sync/atomic"

// PlaybackTrack is a preloaded audio loop mixed into the monitor bus (and,
// while mix-recording, into the mix file) alongside live input tracks. It
// shares Track's control atomics minus Armed/Recording, and adds a playback
// position.
type PlaybackTrack struct {
	// Name is the source file's base name, for UI display.
	Name string

	// Samples holds the full decoded file, interleaved if Channels == 2.
	Samples []float32

	// Channels is 1 (mono) or 2 (stereo); validated at load.
	Channels int

	// SampleRate is the rate the file was recorded at; validated at load to
	// equal the engine's sample rate. Mismatched files are rejected, never
	// resampled.
	SampleRate int

	position   atomic.Uint64
	monitoring atomic.Bool
	solo       atomic.Bool
	level      *AtomicF32
	pan        *AtomicF32
	peakLevel  *AtomicF32
}

// NewPlaybackTrack wraps already-validated, already-decoded samples.
// Monitoring defaults to true: a freshly loaded playback track is assumed
// audible until the operator mutes it.
func NewPlaybackTrack(name string, samples []float32, channels, sampleRate int) *PlaybackTrack {
	pt := &PlaybackTrack{
		Name:       name,
		Samples:    samples,
		Channels:   channels,
		SampleRate: sampleRate,
		level:      NewAtomicF32(1.0),
		pan:        NewAtomicF32(0.0),
		peakLevel:  NewAtomicF32(0.0),
	}
	pt.monitoring.Store(true)
	return pt
}

// NumFrames returns the number of playable frames (samples / channels). A
// zero-length source has NumFrames() == 0, which the audio callback must
// skip.
func (pt *PlaybackTrack) NumFrames() int {
	if pt.Channels == 0 {
		return 0
	}
	return len(pt.Samples) / pt.Channels
}

func (pt *PlaybackTrack) Position() int     { return int(pt.position.Load()) }
func (pt *PlaybackTrack) SetPosition(p int) { pt.position.Store(uint64(p)) }
func (pt *PlaybackTrack) ResetPosition()    { pt.position.Store(0) }

// Advance moves the playback position forward by frames, looping modulo
// NumFrames. Playback tracks loop forever while playing; there is no
// stop-at-end mode.
func (pt *PlaybackTrack) Advance(frames int) {
	total := pt.NumFrames()
	if total == 0 {
		return
	}
	next := (pt.Position() + frames) % total
	pt.SetPosition(next)
}

func (pt *PlaybackTrack) IsMonitoring() bool    { return pt.monitoring.Load() }
func (pt *PlaybackTrack) SetMonitoring(on bool) { pt.monitoring.Store(on) }
func (pt *PlaybackTrack) IsSolo() bool          { return pt.solo.Load() }
func (pt *PlaybackTrack) SetSolo(on bool)       { pt.solo.Store(on) }

func (pt *PlaybackTrack) Level() float32 { return pt.level.Load() }
func (pt *PlaybackTrack) SetLevel(level float32) {
	pt.level.Store(clamp(level, 0, 1))
}

func (pt *PlaybackTrack) Pan() float32 { return pt.pan.Load() }
func (pt *PlaybackTrack) SetPan(pan float32) {
	pt.pan.Store(clamp(pan, -1, 1))
}

func (pt *PlaybackTrack) PanGains() (left, right float32) {
	return calculatePanGains(pt.pan.Load())
}

func (pt *PlaybackTrack) PeakLevel() float32 { return pt.peakLevel.Load() }

func (pt *PlaybackTrack) UpdatePeakLevel(sample float32) {
	if sample < 0 {
		sample = -sample
	}
	if sample > pt.peakLevel.Load() {
		pt.peakLevel.Store(sample)
	}
}

func (pt *PlaybackTrack) DecayPeakLevel(rate float32) {
	next := pt.peakLevel.Load() - rate
	if next < 0 {
		next = 0
	}
	pt.peakLevel.Store(next)
}

// FrameAt returns the (left, right) sample pair at the given frame index,
// duplicating a mono sample to both channels.
func (pt *PlaybackTrack) FrameAt(frame int) (left, right float32) {
	if pt.Channels == 1 {
		s := pt.Samples[frame]
		return s, s
	}
	base := frame * 2
	return pt.Samples[base], pt.Samples[base+1]
}
