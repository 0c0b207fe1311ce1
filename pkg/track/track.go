// Package track holds the per-channel state shared between the audio
// callback core and the UI/control thread: Track for live input channels,
// PlaybackTrack for preloaded playback loops. Every control value is an
// atomic so the audio thread can read it lock-free every frame while the
// control thread writes it from user input.
package track

import (
	"math"
	"sync/atomic"
)

// panQuarterPi is pi/4, the equal-power pan law's angle scale: angle =
// (pan+1) * panQuarterPi.
const panQuarterPi = math.Pi / 4

// calculatePanGains implements the equal-power panning law shared by Track
// and PlaybackTrack: angle = (pan+1)*pi/4, gainL = cos(angle), gainR =
// sin(angle). At pan=0 both gains are ~0.707; at pan=-1, (1,0); at pan=+1,
// (0,1).
func calculatePanGains(pan float32) (left, right float32) {
	angle := float64(pan+1) * panQuarterPi
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// Track represents one channel of the live input device.
type Track struct {
	// ID is the stable integer identity assigned at construction. File
	// names are derived from ID+1.
	ID int

	// InputChannel is the interleaved input channel index this track reads
	// from. Out-of-range values are skipped silently by the audio callback.
	InputChannel int

	armed      atomic.Bool
	monitoring atomic.Bool
	solo       atomic.Bool
	recording  atomic.Bool
	level      *AtomicF32
	pan        *AtomicF32
	peakLevel  *AtomicF32
}

// NewTrack creates a Track bound to inputChannel, with level 1.0, pan
// centered, disarmed and unmonitored.
func NewTrack(id, inputChannel int) *Track {
	return &Track{
		ID:           id,
		InputChannel: inputChannel,
		level:        NewAtomicF32(1.0),
		pan:          NewAtomicF32(0.0),
		peakLevel:    NewAtomicF32(0.0),
	}
}

func (t *Track) IsArmed() bool      { return t.armed.Load() }
func (t *Track) IsMonitoring() bool { return t.monitoring.Load() }
func (t *Track) IsSolo() bool       { return t.solo.Load() }
func (t *Track) IsRecording() bool  { return t.recording.Load() }

func (t *Track) SetMonitoring(on bool) { t.monitoring.Store(on) }
func (t *Track) SetSolo(on bool)       { t.solo.Store(on) }

// SetArmed sets the armed flag. The session controller is responsible for
// rejecting an arm change while IsRecording() is true; Track itself
// does not enforce that, since it has no notion of "rejects".
func (t *Track) SetArmed(on bool) { t.armed.Store(on) }

// SetRecording is written by the controller only, to reflect a live arm
// into a write in progress; the audio thread only reads it.
func (t *Track) SetRecording(on bool) { t.recording.Store(on) }

func (t *Track) Level() float32 { return t.level.Load() }

// SetLevel clamps to [0, 1] before storing.
func (t *Track) SetLevel(level float32) {
	t.level.Store(clamp(level, 0, 1))
}

func (t *Track) Pan() float32 { return t.pan.Load() }

// SetPan clamps to [-1, 1] before storing.
func (t *Track) SetPan(pan float32) {
	t.pan.Store(clamp(pan, -1, 1))
}

// PanGains returns the current equal-power (left, right) gains for Pan().
func (t *Track) PanGains() (left, right float32) {
	return calculatePanGains(t.pan.Load())
}

func (t *Track) PeakLevel() float32 { return t.peakLevel.Load() }

// UpdatePeakLevel is called from the audio thread: it only ever raises the
// stored peak (write-max, no read-modify-write race with the decay below).
func (t *Track) UpdatePeakLevel(sample float32) {
	if sample < 0 {
		sample = -sample
	}
	if sample > t.peakLevel.Load() {
		t.peakLevel.Store(sample)
	}
}

// DecayPeakLevel is called from the UI thread to fall the meter back toward
// zero between updates; it never goes negative.
func (t *Track) DecayPeakLevel(rate float32) {
	next := t.peakLevel.Load() - rate
	if next < 0 {
		next = 0
	}
	t.peakLevel.Store(next)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
