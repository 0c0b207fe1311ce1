package track

import "testing"

func TestTrackCreation(t *testing.T) {
	tr := NewTrack(0, 0)
	if tr.ID != 0 {
		t.Errorf("ID: got %d, want 0", tr.ID)
	}
	if tr.IsArmed() {
		t.Error("new track should not be armed")
	}
	if got := tr.Level(); got != 1.0 {
		t.Errorf("Level: got %v, want 1.0", got)
	}
	if got := tr.Pan(); got != 0.0 {
		t.Errorf("Pan: got %v, want 0.0", got)
	}
}

func TestLevelClamping(t *testing.T) {
	tr := NewTrack(0, 0)
	tr.SetLevel(1.5)
	if got := tr.Level(); got != 1.0 {
		t.Errorf("SetLevel(1.5): got %v, want 1.0", got)
	}
	tr.SetLevel(-0.5)
	if got := tr.Level(); got != 0.0 {
		t.Errorf("SetLevel(-0.5): got %v, want 0.0", got)
	}
}

func TestPanClamping(t *testing.T) {
	tr := NewTrack(0, 0)
	tr.SetPan(2.0)
	if got := tr.Pan(); got != 1.0 {
		t.Errorf("SetPan(2.0): got %v, want 1.0", got)
	}
	tr.SetPan(-2.0)
	if got := tr.Pan(); got != -1.0 {
		t.Errorf("SetPan(-2.0): got %v, want -1.0", got)
	}
}

func TestPanGains(t *testing.T) {
	tr := NewTrack(0, 0)

	tr.SetPan(0.0)
	l, r := tr.PanGains()
	if abs(l-0.707) > 0.01 || abs(r-0.707) > 0.01 {
		t.Errorf("center pan gains: got (%v, %v), want ~(0.707, 0.707)", l, r)
	}

	tr.SetPan(-1.0)
	l, r = tr.PanGains()
	if abs(l-1.0) > 0.01 || abs(r) > 0.01 {
		t.Errorf("full left pan gains: got (%v, %v), want ~(1, 0)", l, r)
	}

	tr.SetPan(1.0)
	l, r = tr.PanGains()
	if abs(l) > 0.01 || abs(r-1.0) > 0.01 {
		t.Errorf("full right pan gains: got (%v, %v), want ~(0, 1)", l, r)
	}
}

func TestPeakLevelWriteMax(t *testing.T) {
	tr := NewTrack(0, 0)

	tr.UpdatePeakLevel(0.3)
	tr.UpdatePeakLevel(0.1) // lower sample must not lower the peak
	if got := tr.PeakLevel(); got != 0.3 {
		t.Errorf("peak after lower sample: got %v, want 0.3", got)
	}

	tr.UpdatePeakLevel(-0.9) // magnitude, not sign
	if got := tr.PeakLevel(); got != 0.9 {
		t.Errorf("peak after negative sample: got %v, want 0.9", got)
	}
}

func TestPeakLevelDecayNeverNegative(t *testing.T) {
	tr := NewTrack(0, 0)
	tr.UpdatePeakLevel(0.05)
	tr.DecayPeakLevel(1.0)
	if got := tr.PeakLevel(); got != 0 {
		t.Errorf("decay past zero: got %v, want 0", got)
	}
}

func TestArmDisarmRoundTrip(t *testing.T) {
	tr := NewTrack(0, 0)
	initial := tr.IsArmed()
	tr.SetArmed(true)
	tr.SetArmed(false)
	if tr.IsArmed() != initial {
		t.Error("arm then disarm did not return to initial state")
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
