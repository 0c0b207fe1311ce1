package filewriter

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// wavHeaderSize is the canonical 44-byte PCM WAV header: RIFF/WAVE, a 16
// byte fmt chunk, and the data chunk tag with a placeholder size.
const wavHeaderSize = 44

// riffSizeOffset and dataSizeOffset are the two little-endian uint32
// fields patched once the final sample count is known.
const (
	riffSizeOffset = 4
	dataSizeOffset = 40
)

// wavWriter incrementally appends 32-bit float PCM samples to a file whose
// total length isn't known up front. youpy/go-wav's Writer requires the
// sample count at construction, which doesn't fit a ring-buffer-fed
// writer of unknown final length, so the header is written and patched
// here directly.
type wavWriter struct {
	f              *os.File
	channels       uint16
	sampleRate     uint32
	samplesWritten uint64 // total float32 values written, across all channels
}

func createWAVWriter(path string, channels uint16, sampleRate uint32) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w := &wavWriter{f: f, channels: channels, sampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	const bitsPerSample = 32
	blockAlign := w.channels * (bitsPerSample / 8)
	byteRate := w.sampleRate * uint32(blockAlign)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 0) // placeholder, patched at Close
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 3)  // WAVE_FORMAT_IEEE_FLOAT
	binary.LittleEndian.PutUint16(header[22:24], w.channels)
	binary.LittleEndian.PutUint32(header[24:28], w.sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], 0) // placeholder, patched at Close

	_, err := w.f.Write(header)
	return err
}

// writeSample appends one float32 PCM value (one channel's worth of one
// frame; a stereo frame is two calls).
func (w *wavWriter) writeSample(v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	if _, err := w.f.Write(buf[:]); err != nil {
		return err
	}
	w.samplesWritten++
	return nil
}

func (w *wavWriter) flush() error {
	return w.f.Sync()
}

// close patches the RIFF and data chunk sizes with the now-known total and
// closes the file.
func (w *wavWriter) close() error {
	dataBytes := w.samplesWritten * 4
	riffSize := uint32(dataBytes) + uint32(wavHeaderSize) - 8

	if _, err := w.f.WriteAt(le32(riffSize), riffSizeOffset); err != nil {
		w.f.Close()
		return fmt.Errorf("patch RIFF size: %w", err)
	}
	if _, err := w.f.WriteAt(le32(uint32(dataBytes)), dataSizeOffset); err != nil {
		w.f.Close()
		return fmt.Errorf("patch data size: %w", err)
	}
	return w.f.Close()
}

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}
