// Package engine implements the real-time audio pipeline: the input
// callback that reads interleaved device frames and feeds the ring
// buffers, the monitor output callback that plays the monitor bus back
// out, and the start/stop surface the session controller and the UI
// drive it through. The engine owns two PortAudio streams, input-only
// and output-only, so each callback runs on its own driver thread
// rather than one combined duplex callback.
package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/odaacabeef/stems/pkg/filewriter"
	"github.com/odaacabeef/stems/pkg/ringbuffer"
	"github.com/odaacabeef/stems/pkg/track"
)

const (
	ringSeconds   = 10
	monitorRingMS = 10
)

// Config configures a new Engine. Devices, channel counts and per-track
// initial state all arrive pre-resolved; device enumeration and config
// file parsing happen elsewhere.
type Config struct {
	SampleRate      int
	InputChannels   int
	OutputChannels  int
	InputDeviceIdx  int
	OutputDeviceIdx int
	FramesPerBuffer int

	// OutputSampleRate is the output device's resolved rate. Zero means
	// "same as SampleRate". A mismatch is allowed but reported as a
	// warning from StartStream, since the two streams then run on
	// different clocks and the monitor may glitch.
	OutputSampleRate int

	// MonitorStart/MonitorEnd are 1-indexed output channel numbers; exactly
	// the stereo pair the monitor callback writes to.
	MonitorStart int
	MonitorEnd   int

	Tracks   []*track.Track
	Playback []*track.PlaybackTrack
}

// Engine owns the ring buffers, the track registry, and the input/output
// PortAudio streams. It is the façade the session controller drives.
type Engine struct {
	cfg Config

	tracks   []*track.Track
	playback []*track.PlaybackTrack

	inputRing   *ringbuffer.RingBuffer[filewriter.Sample]
	mixRing     *ringbuffer.RingBuffer[filewriter.StereoSample]
	monitorRing *ringbuffer.RingBuffer[filewriter.StereoSample]

	recording         atomic.Bool
	playing           atomic.Bool
	mixRecordingArmed atomic.Bool
	mixRecording      atomic.Bool

	monitorStart atomic.Int32
	monitorEnd   atomic.Int32

	inputStream  *portaudio.PaStream
	outputStream *portaudio.PaStream

	// inputScratch/outputScratch are reused by the callback trampolines
	// (stream.go) so the real-time path never allocates.
	inputScratch  []float32
	outputScratch []float32

	logger *slog.Logger
}

// New constructs an Engine from cfg. The input and mix rings hold
// ringSeconds of audio; the monitor ring is kept small for low monitoring
// latency. All three are allocated once here, for the lifetime of the
// engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:         cfg,
		tracks:      cfg.Tracks,
		playback:    cfg.Playback,
		inputRing:   ringbuffer.New[filewriter.Sample](uint64(cfg.SampleRate * ringSeconds * max(cfg.InputChannels, 1))),
		mixRing:     ringbuffer.New[filewriter.StereoSample](uint64(cfg.SampleRate * ringSeconds)),
		monitorRing: ringbuffer.New[filewriter.StereoSample](uint64(cfg.SampleRate*monitorRingMS/1000 + 1)),
		logger:      logger,
	}
	if e.cfg.OutputSampleRate == 0 {
		e.cfg.OutputSampleRate = cfg.SampleRate
	}
	e.monitorStart.Store(int32(cfg.MonitorStart))
	e.monitorEnd.Store(int32(cfg.MonitorEnd))
	return e
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SampleRate returns the engine's configured sample rate.
func (e *Engine) SampleRate() int { return e.cfg.SampleRate }

// Tracks returns the input track registry.
func (e *Engine) Tracks() []*track.Track { return e.tracks }

// Playback returns the playback track registry.
func (e *Engine) Playback() []*track.PlaybackTrack { return e.playback }

// InputRing exposes the per-track sample ring for the per-track writer.
func (e *Engine) InputRing() *ringbuffer.RingBuffer[filewriter.Sample] { return e.inputRing }

// MixRing exposes the stereo mix ring for the mix writer.
func (e *Engine) MixRing() *ringbuffer.RingBuffer[filewriter.StereoSample] { return e.mixRing }

// IsRecording reports the session-level recording flag.
func (e *Engine) IsRecording() bool { return e.recording.Load() }

// IsPlaying reports the session-level playback flag.
func (e *Engine) IsPlaying() bool { return e.playing.Load() }

// IsMixRecordingArmed reports whether the mix bus will be written on the
// next recording pass.
func (e *Engine) IsMixRecordingArmed() bool { return e.mixRecordingArmed.Load() }

// SetMixRecordingArmed toggles whether the mix bus will be written on the
// next recording pass.
func (e *Engine) SetMixRecordingArmed(v bool) { e.mixRecordingArmed.Store(v) }

// IsMixRecording reports whether the mix bus is being written in the
// current pass.
func (e *Engine) IsMixRecording() bool { return e.mixRecording.Load() }

// SetMixRecording is written by the session controller when the mix
// writer for a pass actually starts; cleared by StopRecording.
func (e *Engine) SetMixRecording(v bool) { e.mixRecording.Store(v) }

// SetMonitorChannels configures the 1-indexed output channel pair the
// monitor callback writes to.
func (e *Engine) SetMonitorChannels(start1idx, end1idx int) {
	e.monitorStart.Store(int32(start1idx))
	e.monitorEnd.Store(int32(end1idx))
}

// StartRecording flips every armed track's recording flag and the
// session-level recording flag. It must only be called by the session
// controller on a clock Commit, with the writers already started.
// Rejects if already recording.
func (e *Engine) StartRecording(armedTrackIDs []int) error {
	if e.recording.Load() {
		return fmt.Errorf("engine: already recording")
	}
	armed := make(map[int]bool, len(armedTrackIDs))
	for _, id := range armedTrackIDs {
		armed[id] = true
	}
	for _, t := range e.tracks {
		if armed[t.ID] {
			t.SetRecording(true)
		}
	}
	e.recording.Store(true)
	return nil
}

// StopRecording clears the session-level and per-track recording flags.
// It does not stop the writers (that is the session controller's job);
// this method only flips the atomics the audio callback reads.
func (e *Engine) StopRecording() {
	e.recording.Store(false)
	e.mixRecording.Store(false)
	for _, t := range e.tracks {
		t.SetRecording(false)
	}
}

// StartPlayback resets every playback track's position and sets the
// session-level playing flag.
func (e *Engine) StartPlayback() {
	for _, p := range e.playback {
		p.ResetPosition()
	}
	e.playing.Store(true)
}

// StopPlayback clears the session-level playing flag and rewinds every
// playback track to frame zero, so the next pass starts its loops from
// the top. Residual playback content already queued in the monitor ring
// is not drained here: the ring's one consumer is the output callback,
// which empties it within one ring's worth of audio (~10ms) on its own,
// and popping from a second thread would break the SPSC contract.
func (e *Engine) StopPlayback() {
	e.playing.Store(false)
	for _, p := range e.playback {
		p.ResetPosition()
	}
}

// processBuffer is the per-buffer body of the input callback, factored out of the
// PortAudio callback trampoline so it can be unit tested without a real
// audio device. input holds frames*inputChannels interleaved float32
// samples.
func (e *Engine) processBuffer(input []float32, frames int) {
	recording := e.recording.Load()
	playing := e.playing.Load()
	mixArmed := e.mixRecordingArmed.Load()

	anySolo := false
	for _, t := range e.tracks {
		if t.IsSolo() {
			anySolo = true
			break
		}
	}
	if !anySolo {
		for _, p := range e.playback {
			if p.IsSolo() {
				anySolo = true
				break
			}
		}
	}

	inputChannels := e.cfg.InputChannels

	for frame := 0; frame < frames; frame++ {
		var monitorL, monitorR float32

		for _, t := range e.tracks {
			ch := t.InputChannel
			if ch < 0 || ch >= inputChannels {
				continue
			}
			sample := input[frame*inputChannels+ch]
			processed := sample * t.Level()
			t.UpdatePeakLevel(processed)

			if recording && t.IsArmed() {
				e.inputRing.Push(filewriter.Sample{TrackID: t.ID, Value: processed})
			}

			shouldMonitor := t.IsMonitoring()
			if anySolo {
				shouldMonitor = t.IsSolo()
			}
			if shouldMonitor {
				gl, gr := t.PanGains()
				monitorL += processed * gl
				monitorR += processed * gr
			}
		}

		var playbackL, playbackR float32
		if playing {
			for _, p := range e.playback {
				numFrames := p.NumFrames()
				if numFrames == 0 {
					continue
				}
				pos := (int(p.Position()) + frame) % numFrames
				left, right := p.FrameAt(pos)

				shouldMonitor := p.IsMonitoring()
				if anySolo {
					shouldMonitor = p.IsSolo()
				}
				if !shouldMonitor {
					continue
				}

				gl, gr := p.PanGains()
				pl := left * p.Level() * gl
				pr := right * p.Level() * gr
				playbackL += pl
				playbackR += pr
				p.UpdatePeakLevel(pl)
				p.UpdatePeakLevel(pr)
			}
		}

		mixL := monitorL + playbackL
		mixR := monitorR + playbackR

		e.monitorRing.Push(filewriter.StereoSample{Left: mixL, Right: mixR})
		if recording && mixArmed {
			e.mixRing.Push(filewriter.StereoSample{Left: mixL, Right: mixR})
		}
	}

	if playing {
		for _, p := range e.playback {
			numFrames := p.NumFrames()
			if numFrames == 0 {
				continue
			}
			p.Advance(frames)
		}
	}
}

// monitorBuffer is the body of the monitor output callback: clears output to
// silence, then pops one stereo pair per frame from MonitorRing and writes
// it to the configured 1-indexed channel pair; an empty ring substitutes
// silence rather than blocking.
func (e *Engine) monitorBuffer(output []float32, frames, outputChannels int) {
	for i := range output {
		output[i] = 0
	}

	startIdx := int(e.monitorStart.Load()) - 1
	endIdx := int(e.monitorEnd.Load()) - 1
	if startIdx < 0 || startIdx >= outputChannels || endIdx < 0 || endIdx >= outputChannels {
		return
	}

	for frame := 0; frame < frames; frame++ {
		pair, ok := e.monitorRing.Pop()
		if !ok {
			continue
		}
		output[frame*outputChannels+startIdx] = pair.Left
		output[frame*outputChannels+endIdx] = pair.Right
	}
}
