package ringbuffer

import "testing"

func TestNewRoundsToPowerOf2(t *testing.T) {
	tests := []struct {
		input    uint64
		expected uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{100, 128},
		{1000, 1024},
		{1024, 1024},
	}

	for _, tt := range tests {
		rb := New[float32](tt.input)
		if rb.Size() != tt.expected {
			t.Errorf("New(%d): got size %d, want %d", tt.input, rb.Size(), tt.expected)
		}
	}
}

func TestPushPop(t *testing.T) {
	rb := New[float32](4)

	for i, v := range []float32{0.1, 0.2, 0.3, 0.4} {
		if !rb.Push(v) {
			t.Fatalf("Push %d: unexpected drop", i)
		}
	}

	// Buffer is full now.
	if rb.Push(0.5) {
		t.Fatal("Push on full buffer should drop")
	}

	for i, want := range []float32{0.1, 0.2, 0.3, 0.4} {
		got, ok := rb.Pop()
		if !ok {
			t.Fatalf("Pop %d: unexpected empty", i)
		}
		if got != want {
			t.Errorf("Pop %d: got %v, want %v", i, got, want)
		}
	}

	if _, ok := rb.Pop(); ok {
		t.Fatal("Pop on empty buffer should report false")
	}
}

func TestPushPopStruct(t *testing.T) {
	type sample struct {
		trackID int
		value   float32
	}

	rb := New[sample](8)

	if !rb.Push(sample{trackID: 2, value: 0.5}) {
		t.Fatal("unexpected drop")
	}

	got, ok := rb.Pop()
	if !ok {
		t.Fatal("unexpected empty")
	}
	if got.trackID != 2 || got.value != 0.5 {
		t.Errorf("got %+v, want {2 0.5}", got)
	}
}

func TestAvailableCounts(t *testing.T) {
	rb := New[int](8)

	if got := rb.AvailableWrite(); got != 8 {
		t.Errorf("AvailableWrite: got %d, want 8", got)
	}
	if got := rb.AvailableRead(); got != 0 {
		t.Errorf("AvailableRead: got %d, want 0", got)
	}

	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	if got := rb.AvailableRead(); got != 3 {
		t.Errorf("AvailableRead: got %d, want 3", got)
	}
	if got := rb.AvailableWrite(); got != 5 {
		t.Errorf("AvailableWrite: got %d, want 5", got)
	}
}

func TestWraparound(t *testing.T) {
	rb := New[int](4)

	for i := 0; i < 100; i++ {
		if !rb.Push(i) {
			t.Fatalf("Push(%d): unexpected drop", i)
		}
		got, ok := rb.Pop()
		if !ok {
			t.Fatalf("Pop after Push(%d): unexpected empty", i)
		}
		if got != i {
			t.Errorf("Pop after Push(%d): got %d", i, got)
		}
	}
}

func TestReset(t *testing.T) {
	rb := New[int](4)
	rb.Push(1)
	rb.Push(2)
	rb.Reset()

	if got := rb.AvailableRead(); got != 0 {
		t.Errorf("AvailableRead after Reset: got %d, want 0", got)
	}
	if got := rb.AvailableWrite(); got != 4 {
		t.Errorf("AvailableWrite after Reset: got %d, want 4", got)
	}
}
