// Package config loads the pre-initialization configuration from a YAML
// file: device selection, the monitor channel pair, per-track initial
// state, and the playback file list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceConfig names the audio device and the monitor output channel
// pair. Audio and Monitorch are optional; a nil value means "not
// specified", resolved by the caller. The record command reads only
// Monitorch; Audio is parsed but not used, and devices are chosen by the
// command's --input-device/--output-device index flags.
type DeviceConfig struct {
	Audio     *string `yaml:"audio"`
	Monitorch *string `yaml:"monitorch"`
}

// TrackConfig holds a track's optional initial state. A nil field means
// "use the engine default" rather than "set to zero/false".
type TrackConfig struct {
	Arm     *bool    `yaml:"arm"`
	Monitor *bool    `yaml:"monitor"`
	Solo    *bool    `yaml:"solo"`
	Level   *float32 `yaml:"level"`
	Pan     *float32 `yaml:"pan"`
}

// PlaybackConfig names a file to preload as a PlaybackTrack, with its
// initial monitor/solo/level/pan state.
type PlaybackConfig struct {
	File    string   `yaml:"file"`
	Monitor *bool    `yaml:"monitor"`
	Solo    *bool    `yaml:"solo"`
	Level   *float32 `yaml:"level"`
	Pan     *float32 `yaml:"pan"`
}

// Config is the top-level configuration document.
type Config struct {
	Devices  DeviceConfig        `yaml:"devices"`
	Tracks   map[int]TrackConfig `yaml:"tracks"`
	Playback []PlaybackConfig    `yaml:"playback"`
}

// LoadFile reads and parses path, then validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Devices.Monitorch != nil {
		if _, _, err := ValidateMonitorChannels(*c.Devices.Monitorch); err != nil {
			return err
		}
	}

	for num, tc := range c.Tracks {
		if num < 1 {
			return fmt.Errorf("track number must be >= 1, got %d", num)
		}
		if tc.Level != nil && (*tc.Level < 0.0 || *tc.Level > 1.0) {
			return fmt.Errorf("track %d level must be between 0.0 and 1.0, got %v", num, *tc.Level)
		}
		if tc.Pan != nil && (*tc.Pan < -1.0 || *tc.Pan > 1.0) {
			return fmt.Errorf("track %d pan must be between -1.0 and 1.0, got %v", num, *tc.Pan)
		}
	}

	for _, pc := range c.Playback {
		if pc.File == "" {
			return fmt.Errorf("playback entry missing required 'file'")
		}
		if pc.Level != nil && (*pc.Level < 0.0 || *pc.Level > 1.0) {
			return fmt.Errorf("playback %s level must be between 0.0 and 1.0, got %v", pc.File, *pc.Level)
		}
		if pc.Pan != nil && (*pc.Pan < -1.0 || *pc.Pan > 1.0) {
			return fmt.Errorf("playback %s pan must be between -1.0 and 1.0, got %v", pc.File, *pc.Pan)
		}
	}

	return nil
}

// ValidateMonitorChannels parses a "START-END" 1-indexed channel range
// (e.g. "17-18") and enforces it names exactly two channels.
func ValidateMonitorChannels(s string) (start, end int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid monitor channels format %q: expected START-END (e.g. \"17-18\")", s)
	}

	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start channel %q: %w", parts[0], err)
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end channel %q: %w", parts[1], err)
	}

	if start < 1 {
		return 0, 0, fmt.Errorf("start channel must be >= 1, got %d", start)
	}
	if end < start {
		return 0, 0, fmt.Errorf("end channel %d must be >= start channel %d", end, start)
	}
	if end-start+1 != 2 {
		return 0, 0, fmt.Errorf("monitor channels must be exactly 2 channels (stereo), got %d", end-start+1)
	}

	return start, end, nil
}
