package filewriter

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odaacabeef/stems/pkg/ringbuffer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readWAVHeader(t *testing.T, path string) (channels uint16, sampleRate uint32, dataSize uint32) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	channels = binary.LittleEndian.Uint16(header[22:24])
	sampleRate = binary.LittleEndian.Uint32(header[24:28])
	dataSize = binary.LittleEndian.Uint32(header[40:44])
	return
}

func TestWriterProducesOneFilePerArmedTrack(t *testing.T) {
	dir := t.TempDir()
	ring := ringbuffer.New[Sample](64)
	w := New(ring, dir, 48000, testLogger())

	if err := w.Start("20260731-120000", []int{0, 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ring.Push(Sample{TrackID: 0, Value: 0.5})
	ring.Push(Sample{TrackID: 2, Value: -0.25})
	ring.Push(Sample{TrackID: 5, Value: 1.0}) // not armed, must be dropped

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(entries), entries)
	}

	path0 := filepath.Join(dir, "01-20260731-120000.wav")
	ch, rate, dataSize := readWAVHeader(t, path0)
	if ch != 1 {
		t.Errorf("track 0 channels: got %d, want 1", ch)
	}
	if rate != 48000 {
		t.Errorf("track 0 sample rate: got %d, want 48000", rate)
	}
	if dataSize != 4 {
		t.Errorf("track 0 data size: got %d, want 4 (one float32 sample)", dataSize)
	}

	path2 := filepath.Join(dir, "03-20260731-120000.wav")
	if _, err := os.Stat(path2); err != nil {
		t.Errorf("expected file for track 2: %v", err)
	}
}

func TestWriterStartTwiceFails(t *testing.T) {
	dir := t.TempDir()
	ring := ringbuffer.New[Sample](16)
	w := New(ring, dir, 48000, testLogger())

	if err := w.Start("a", []int{0}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start("b", []int{0}); err == nil {
		t.Error("second Start while running should fail")
	}
}

func TestWriterStopAsyncThenJoin(t *testing.T) {
	dir := t.TempDir()
	ring := ringbuffer.New[Sample](16)
	w := New(ring, dir, 48000, testLogger())

	if err := w.Start("20260731-130000", []int{0}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ring.Push(Sample{TrackID: 0, Value: 1})

	w.StopAsync()
	if err := w.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if w.IsRunning() {
		t.Error("writer should not be running after Join")
	}

	path := filepath.Join(dir, "01-20260731-130000.wav")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected finalized file: %v", err)
	}
}

func TestWriterJoinWithoutStartIsNoop(t *testing.T) {
	ring := ringbuffer.New[Sample](4)
	w := New(ring, t.TempDir(), 48000, testLogger())
	if err := w.Join(); err != nil {
		t.Errorf("Join without Start: got %v, want nil", err)
	}
}

func TestMixWriterProducesStereoFile(t *testing.T) {
	dir := t.TempDir()
	ring := ringbuffer.New[StereoSample](64)
	w := NewMix(ring, dir, 44100, testLogger())

	if err := w.Start("20260731-140000"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ring.Push(StereoSample{Left: 0.1, Right: -0.1})
	ring.Push(StereoSample{Left: 0.2, Right: -0.2})

	// Give the drain goroutine a moment on the (unlikely) slow scheduler
	// before demanding a clean stop.
	time.Sleep(2 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	path := filepath.Join(dir, "mix-20260731-140000.wav")
	ch, rate, dataSize := readWAVHeader(t, path)
	if ch != 2 {
		t.Errorf("channels: got %d, want 2", ch)
	}
	if rate != 44100 {
		t.Errorf("sample rate: got %d, want 44100", rate)
	}
	if dataSize != 16 {
		t.Errorf("data size: got %d, want 16 (2 frames * 2 channels * 4 bytes)", dataSize)
	}
}

func TestMixWriterStartTwiceFails(t *testing.T) {
	dir := t.TempDir()
	ring := ringbuffer.New[StereoSample](4)
	w := NewMix(ring, dir, 44100, testLogger())

	if err := w.Start("a"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start("b"); err == nil {
		t.Error("second Start while running should fail")
	}
}
