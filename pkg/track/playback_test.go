package track

import "testing"

func TestPlaybackNumFrames(t *testing.T) {
	pt := NewPlaybackTrack("loop.wav", make([]float32, 960), 2, 48000)
	if got := pt.NumFrames(); got != 480 {
		t.Errorf("NumFrames: got %d, want 480", got)
	}
}

func TestPlaybackNumFramesZeroChannels(t *testing.T) {
	pt := &PlaybackTrack{Samples: []float32{1, 2, 3}}
	if got := pt.NumFrames(); got != 0 {
		t.Errorf("NumFrames with 0 channels: got %d, want 0", got)
	}
}

func TestPlaybackDefaultsToMonitoring(t *testing.T) {
	pt := NewPlaybackTrack("loop.wav", nil, 1, 48000)
	if !pt.IsMonitoring() {
		t.Error("a freshly loaded playback track should default to monitoring on")
	}
}

func TestPlaybackAdvanceLoops(t *testing.T) {
	pt := NewPlaybackTrack("loop.wav", make([]float32, 10), 1, 48000) // 10 frames
	pt.SetPosition(8)
	pt.Advance(5) // (8 + 5) mod 10 == 3
	if got := pt.Position(); got != 3 {
		t.Errorf("Advance wraparound: got %d, want 3", got)
	}
}

func TestPlaybackAdvanceZeroLength(t *testing.T) {
	pt := NewPlaybackTrack("empty.wav", nil, 1, 48000)
	pt.Advance(16) // must not panic on modulo-by-zero
	if got := pt.Position(); got != 0 {
		t.Errorf("Advance on empty track: got %d, want 0", got)
	}
}

func TestPlaybackFrameAtMono(t *testing.T) {
	pt := NewPlaybackTrack("mono.wav", []float32{0.25, 0.5, 0.75}, 1, 48000)
	l, r := pt.FrameAt(1)
	if l != 0.5 || r != 0.5 {
		t.Errorf("FrameAt(1) mono: got (%v, %v), want (0.5, 0.5)", l, r)
	}
}

func TestPlaybackFrameAtStereo(t *testing.T) {
	pt := NewPlaybackTrack("stereo.wav", []float32{0.1, 0.2, 0.3, 0.4}, 2, 48000)
	l, r := pt.FrameAt(1)
	if l != 0.3 || r != 0.4 {
		t.Errorf("FrameAt(1) stereo: got (%v, %v), want (0.3, 0.4)", l, r)
	}
}

func TestPlaybackLevelPanClamping(t *testing.T) {
	pt := NewPlaybackTrack("loop.wav", nil, 1, 48000)
	pt.SetLevel(1.5)
	if got := pt.Level(); got != 1.0 {
		t.Errorf("SetLevel(1.5): got %v, want 1.0", got)
	}
	pt.SetPan(-2.0)
	if got := pt.Pan(); got != -1.0 {
		t.Errorf("SetPan(-2.0): got %v, want -1.0", got)
	}
}
