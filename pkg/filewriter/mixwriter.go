package filewriter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/odaacabeef/stems/pkg/ringbuffer"
)

// StereoSample is one interleaved stereo frame popped off MixRing.
type StereoSample struct {
	Left  float32
	Right float32
}

// MixWriter drains a ring of interleaved stereo frames to a single stereo
// float32 WAV file, the "mix" output alongside the per-track Writer.
type MixWriter struct {
	ring       *ringbuffer.RingBuffer[StereoSample]
	outputDir  string
	sampleRate int
	logger     *slog.Logger

	running atomic.Bool
	done    chan error
}

// NewMix creates a MixWriter around ring.
func NewMix(ring *ringbuffer.RingBuffer[StereoSample], outputDir string, sampleRate int, logger *slog.Logger) *MixWriter {
	return &MixWriter{
		ring:       ring,
		outputDir:  outputDir,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Start begins draining the ring into "mix-{timestamp}.wav". Returns an
// error if already running.
func (w *MixWriter) Start(timestamp string) error {
	if w.running.Load() {
		return fmt.Errorf("filewriter: mix writer already running")
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("filewriter: create output dir: %w", err)
	}

	path := filepath.Join(w.outputDir, fmt.Sprintf("mix-%s.wav", timestamp))
	ww, err := createWAVWriter(path, 2, uint32(w.sampleRate))
	if err != nil {
		return fmt.Errorf("filewriter: %w", err)
	}

	w.running.Store(true)
	w.done = make(chan error, 1)

	go w.run(ww)
	return nil
}

func (w *MixWriter) run(ww *wavWriter) {
	lastFlush := time.Now()

	var firstErr error
	keepErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	drainOnce := func() int {
		written := 0
		for {
			frame, ok := w.ring.Pop()
			if !ok {
				break
			}
			if err := ww.writeSample(frame.Left); err != nil {
				w.logger.Error("filewriter: mix write failed", "channel", "left", "error", err)
				keepErr(err)
			}
			if err := ww.writeSample(frame.Right); err != nil {
				w.logger.Error("filewriter: mix write failed", "channel", "right", "error", err)
				keepErr(err)
			}
			written++
		}
		return written
	}

	for w.running.Load() {
		written := drainOnce()

		if time.Since(lastFlush) > flushInterval {
			if err := ww.flush(); err != nil {
				w.logger.Error("filewriter: mix flush failed", "error", err)
				keepErr(err)
			}
			lastFlush = time.Now()
		}

		if written == 0 {
			time.Sleep(idleSleep)
		}
	}

	drainOnce()

	if err := ww.close(); err != nil {
		w.logger.Error("filewriter: mix finalize failed", "error", err)
		keepErr(err)
	}

	w.done <- firstErr
}

// StopAsync signals the drain goroutine to finish without waiting.
func (w *MixWriter) StopAsync() {
	w.running.Store(false)
}

// Join blocks until a prior StopAsync's drain goroutine has finalized the
// file, returning any write error.
func (w *MixWriter) Join() error {
	if w.done == nil {
		return nil
	}
	err := <-w.done
	w.done = nil
	return err
}

// Stop is StopAsync followed by Join.
func (w *MixWriter) Stop() error {
	w.StopAsync()
	return w.Join()
}

// IsRunning reports whether a drain goroutine is currently active.
func (w *MixWriter) IsRunning() bool {
	return w.running.Load()
}
