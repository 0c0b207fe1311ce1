// Package playback loads a file on disk into an in-memory PlaybackTrack.
// MP3 and FLAC route through the decoders.NewDecoder factory; WAV is
// handled here directly (rather than through pkg/decoders/wav.Decoder,
// which rejects non-PCM files) so that a 32-bit IEEE float recording this
// engine produced can be looped back in as a playback track.
package playback

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/youpy/go-wav"

	"github.com/odaacabeef/stems/pkg/decoders"
	"github.com/odaacabeef/stems/pkg/track"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// Load reads path and returns a PlaybackTrack at its natural channel
// count. Its sample rate must equal targetSampleRate; a mismatched file
// is rejected rather than resampled.
func Load(path string, targetSampleRate int) (*track.PlaybackTrack, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		samples    []float32
		channels   int
		sampleRate int
		err        error
	)

	if ext == ".wav" {
		samples, channels, sampleRate, err = loadWAV(path)
	} else {
		samples, channels, sampleRate, err = loadViaDecoder(path)
	}
	if err != nil {
		return nil, err
	}

	if sampleRate != targetSampleRate {
		return nil, fmt.Errorf("playback: %s sample rate %d does not match engine rate %d", path, sampleRate, targetSampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("playback: %s has %d channels, only mono or stereo supported", path, channels)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return track.NewPlaybackTrack(name, samples, channels, sampleRate), nil
}

func loadWAV(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("playback: open %s: %w", path, err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("playback: read %s format: %w", path, err)
	}

	if format.AudioFormat != wavFormatPCM && format.AudioFormat != wavFormatFloat {
		return nil, 0, 0, fmt.Errorf("playback: %s: unsupported WAV format code %d", path, format.AudioFormat)
	}

	channels := int(format.NumChannels)
	bits := int(format.BitsPerSample)

	var out []float32
	for {
		chunk, err := reader.ReadSamples(1024)
		for _, s := range chunk {
			for ch := 0; ch < channels; ch++ {
				if ch >= len(s.Values) {
					break
				}
				out = append(out, convertWAVSample(s.Values[ch], bits, format.AudioFormat))
			}
		}
		if err != nil {
			break
		}
		if len(chunk) == 0 {
			break
		}
	}

	return out, channels, int(format.SampleRate), nil
}

// convertWAVSample converts one raw decoded sample value to a [-1, 1]
// float32. For IEEE float WAV data the raw integer is the float32's bit
// pattern; for PCM it's divided by the full-scale value for its bit depth.
func convertWAVSample(v int, bits int, audioFormat uint16) float32 {
	if audioFormat == wavFormatFloat {
		return math.Float32frombits(uint32(int32(v)))
	}
	switch bits {
	case 8:
		return (float32(v) - 128) / 128
	case 16:
		return float32(v) / 32768
	case 24:
		return float32(v) / 8388608
	case 32:
		return float32(v) / 2147483648
	default:
		return 0
	}
}

func loadViaDecoder(path string) ([]float32, int, int, error) {
	dec, err := decoders.NewDecoder(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("playback: %w", err)
	}
	defer dec.Close()

	rate, channels, bps := dec.GetFormat()
	bytesPerSample := bps / 8
	if bytesPerSample == 0 {
		return nil, 0, 0, fmt.Errorf("playback: %s: invalid bit depth %d", path, bps)
	}

	const frameBatch = 4096
	buf := make([]byte, frameBatch*channels*bytesPerSample)

	var out []float32
	for {
		n, err := dec.DecodeSamples(frameBatch, buf)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				offset := (i*channels + ch) * bytesPerSample
				out = append(out, decodeIntSample(buf[offset:offset+bytesPerSample], bps))
			}
		}
		if err != nil || n == 0 {
			break
		}
	}

	return out, channels, rate, nil
}

func decodeIntSample(b []byte, bits int) float32 {
	switch bits {
	case 8:
		return (float32(b[0]) - 128) / 128
	case 16:
		v := int16(uint16(b[0]) | uint16(b[1])<<8)
		return float32(v) / 32768
	case 24:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float32(v) / 8388608
	case 32:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
		return float32(v) / 2147483648
	default:
		return 0
	}
}
