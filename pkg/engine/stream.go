package engine

import (
	"fmt"
	"math"

	"github.com/drgolem/go-portaudio/portaudio"
)

// StartStream opens and starts both the input stream (feeding
// processBuffer) and the output stream (feeding monitorBuffer), one
// input-only and one output-only PortAudio stream so each callback gets
// its own driver thread. Returns a non-fatal warning string when the
// input and output rates disagree; calling it while already streaming is
// a no-op.
func (e *Engine) StartStream() (warning string, err error) {
	if e.inputStream != nil {
		return "", nil
	}
	if err := e.initInputStream(); err != nil {
		return "", fmt.Errorf("engine: init input stream: %w", err)
	}
	if err := e.initOutputStream(); err != nil {
		e.inputStream.CloseCallback()
		return "", fmt.Errorf("engine: init output stream: %w", err)
	}

	if err := e.inputStream.StartStream(); err != nil {
		return "", fmt.Errorf("engine: start input stream: %w", err)
	}
	if err := e.outputStream.StartStream(); err != nil {
		e.inputStream.StopStream()
		return "", fmt.Errorf("engine: start output stream: %w", err)
	}

	e.logger.Info("audio streams started",
		"sample_rate", e.cfg.SampleRate,
		"input_channels", e.cfg.InputChannels,
		"output_channels", e.cfg.OutputChannels,
		"frames_per_buffer", e.cfg.FramesPerBuffer)

	return e.sampleRateWarning(), nil
}

// sampleRateWarning reports the non-fatal mismatch warning surfaced by
// StartStream, empty when the rates agree.
func (e *Engine) sampleRateWarning() string {
	if e.cfg.OutputSampleRate == e.cfg.SampleRate {
		return ""
	}
	return fmt.Sprintf("Sample rate mismatch: input %dHz, output %dHz. May cause choppy audio.",
		e.cfg.SampleRate, e.cfg.OutputSampleRate)
}

func (e *Engine) initInputStream() error {
	params := portaudio.PaStreamParameters{
		DeviceIndex:  e.cfg.InputDeviceIdx,
		ChannelCount: e.cfg.InputChannels,
		SampleFormat: portaudio.SampleFmtFloat32,
	}

	stream := &portaudio.PaStream{
		InputParameters: &params,
		SampleRate:      float64(e.cfg.SampleRate),
	}

	// Scratch buffer sized once here and reused by every callback
	// invocation; the callback itself must not allocate.
	e.inputScratch = make([]float32, e.cfg.FramesPerBuffer*e.cfg.InputChannels)

	if err := stream.OpenCallback(e.cfg.FramesPerBuffer, e.inputCallback); err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}

	e.inputStream = stream
	return nil
}

func (e *Engine) initOutputStream() error {
	params := portaudio.PaStreamParameters{
		DeviceIndex:  e.cfg.OutputDeviceIdx,
		ChannelCount: e.cfg.OutputChannels,
		SampleFormat: portaudio.SampleFmtFloat32,
	}

	stream := &portaudio.PaStream{
		OutputParameters: &params,
		SampleRate:       float64(e.cfg.OutputSampleRate),
	}

	e.outputScratch = make([]float32, e.cfg.FramesPerBuffer*e.cfg.OutputChannels)

	if err := stream.OpenCallback(e.cfg.FramesPerBuffer, e.outputCallback); err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}

	e.outputStream = stream
	return nil
}

// inputCallback adapts PortAudio's byte-buffer callback convention to
// processBuffer's float32 slice. It runs on PortAudio's own real-time
// thread, not a Go goroutine; it reuses e.inputScratch rather than
// allocating per call.
func (e *Engine) inputCallback(
	input, _ []byte,
	frameCount uint,
	_ *portaudio.StreamCallbackTimeInfo,
	_ portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	frames := int(frameCount)
	samples := e.inputScratch[:frames*e.cfg.InputChannels]
	bytesToFloat32(input, samples)
	e.processBuffer(samples, frames)
	return portaudio.Continue
}

// outputCallback is the Monitor Output Callback's PortAudio trampoline.
func (e *Engine) outputCallback(
	_, output []byte,
	frameCount uint,
	_ *portaudio.StreamCallbackTimeInfo,
	_ portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	frames := int(frameCount)
	samples := e.outputScratch[:frames*e.cfg.OutputChannels]
	e.monitorBuffer(samples, frames, e.cfg.OutputChannels)
	floatsToBytes(samples, output)
	return portaudio.Continue
}

func bytesToFloat32(b []byte, out []float32) {
	for i := range out {
		if (i+1)*4 > len(b) {
			break
		}
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
}

func floatsToBytes(f []float32, b []byte) {
	for i, v := range f {
		if (i+1)*4 > len(b) {
			break
		}
		bits := math.Float32bits(v)
		b[i*4] = byte(bits)
		b[i*4+1] = byte(bits >> 8)
		b[i*4+2] = byte(bits >> 16)
		b[i*4+3] = byte(bits >> 24)
	}
}

// StopStream stops and closes both streams. Safe to call when streams were
// never started.
func (e *Engine) StopStream() error {
	var firstErr error
	if e.inputStream != nil {
		if err := e.inputStream.StopStream(); err != nil {
			firstErr = fmt.Errorf("engine: stop input stream: %w", err)
		}
		if err := e.inputStream.CloseCallback(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: close input stream: %w", err)
		}
		e.inputStream = nil
	}
	if e.outputStream != nil {
		if err := e.outputStream.StopStream(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: stop output stream: %w", err)
		}
		if err := e.outputStream.CloseCallback(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: close output stream: %w", err)
		}
		e.outputStream = nil
	}
	return firstErr
}

// Close force-stops playback and recording and tears down both streams.
// Callers defer it so an abandoned engine never leaves a stream running.
func (e *Engine) Close() error {
	e.StopPlayback()
	e.StopRecording()
	return e.StopStream()
}
