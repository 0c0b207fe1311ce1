// Package filewriter implements the background workers that drain the
// input and mix ring buffers to disk: create the output directory, open
// one file per armed track (or one stereo mix file), drain whatever is
// available, flush every couple of seconds for crash safety, sleep
// briefly when the ring is empty, and on stop drain to completion and
// finalize. Each worker is a goroutine with an atomic running flag; its
// completion (and any write error) is reported through a done channel so
// the same ring buffer can be reused on the next recording pass without
// reallocating.
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

// Sample is one item popped off InputRing: a raw input sample tagged with
// the track it belongs to.
type Sample struct {
	TrackID int
	Value   float32
}

const (
	flushInterval = 2 * time.Second
	idleSleep     = time.Millisecond
)

// Writer drains a ring of tagged Samples to one mono float32 WAV file per
// armed track.
type Writer struct {
	ring       *ringbuffer.RingBuffer[Sample]
	outputDir  string
	sampleRate int
	logger     *slog.Logger

	running atomic.Bool
	done    chan error
}

// New creates a Writer around ring. ring is not consumed until Start.
func New(ring *ringbuffer.RingBuffer[Sample], outputDir string, sampleRate int, logger *slog.Logger) *Writer {
	return &Writer{
		ring:       ring,
		outputDir:  outputDir,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Start begins draining the ring into one file per armedTrackIDs (1-indexed
// in the file name: NN = id+1), named "{NN:02}-{timestamp}.wav". It returns
// immediately; the drain loop runs in its own goroutine. Returns an error
// if already running.
func (w *Writer) Start(timestamp string, armedTrackIDs []int) error {
	if w.running.Load() {
		return fmt.Errorf("filewriter: already running")
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("filewriter: create output dir: %w", err)
	}

	writers := make(map[int]*wavWriter, len(armedTrackIDs))
	for _, id := range armedTrackIDs {
		name := fmt.Sprintf("%02d-%s.wav", id+1, timestamp)
		path := filepath.Join(w.outputDir, name)
		ww, err := createWAVWriter(path, 1, uint32(w.sampleRate))
		if err != nil {
			for _, open := range writers {
				open.close()
			}
			return fmt.Errorf("filewriter: %w", err)
		}
		writers[id] = ww
	}

	w.running.Store(true)
	w.done = make(chan error, 1)

	go w.run(writers)
	return nil
}

func (w *Writer) run(writers map[int]*wavWriter) {
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
			sample, ok := w.ring.Pop()
			if !ok {
				break
			}
			if ww, tracked := writers[sample.TrackID]; tracked {
				if err := ww.writeSample(sample.Value); err != nil {
					w.logger.Error("filewriter: write sample failed", "track_id", sample.TrackID, "error", err)
					keepErr(err)
				}
				written++
			}
		}
		return written
	}

	for w.running.Load() {
		written := drainOnce()

		if time.Since(lastFlush) > flushInterval {
			for id, ww := range writers {
				if err := ww.flush(); err != nil {
					w.logger.Error("filewriter: flush failed", "track_id", id, "error", err)
					keepErr(err)
				}
			}
			lastFlush = time.Now()
		}

		if written == 0 {
			time.Sleep(idleSleep)
		}
	}

	drainOnce() // drain whatever arrived between the last check and stop

	for id, ww := range writers {
		if err := ww.close(); err != nil {
			w.logger.Error("filewriter: finalize failed", "track_id", id, "error", err)
			keepErr(err)
		}
	}

	w.done <- firstErr
}

// StopAsync signals the drain goroutine to finish without waiting for it.
// Used from the clock-driven Stop path, which must stay
// responsive; the join cost is deliberately deferred to the next Start.
func (w *Writer) StopAsync() {
	w.running.Store(false)
}

// Join blocks until the drain goroutine (signaled by a prior StopAsync)
// has finalized its files, and returns any error encountered while
// writing. Safe to call even if Start was never called.
func (w *Writer) Join() error {
	if w.done == nil {
		return nil
	}
	err := <-w.done
	w.done = nil
	return err
}

// Stop is StopAsync followed by Join, used on full shutdown, where there
// is no "next Start" to defer the join to.
func (w *Writer) Stop() error {
	w.StopAsync()
	return w.Join()
}

// IsRunning reports whether a drain goroutine is currently active.
func (w *Writer) IsRunning() bool {
	return w.running.Load()
}
