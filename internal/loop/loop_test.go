package loop

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		freq float64
		want time.Duration
	}{
		{60, 16666666 * time.Nanosecond},
		{50, 20 * time.Millisecond},
		{1, time.Second},
	}
	for _, tt := range tests {
		if got := Interval(tt.freq); got != tt.want {
			t.Errorf("Interval(%v) = %v, want %v", tt.freq, got, tt.want)
		}
	}
}

func TestManual_Advance(t *testing.T) {
	m := NewManual()
	count := 0
	m.Every(10*time.Millisecond, func() { count++ })

	m.Advance(35 * time.Millisecond)
	if count != 3 {
		t.Errorf("expected 3 ticks, got %d", count)
	}
	m.Advance(5 * time.Millisecond)
	if count != 4 {
		t.Errorf("expected 4 ticks, got %d", count)
	}
	if m.Now() != 40*time.Millisecond {
		t.Errorf("expected clock at 40ms, got %v", m.Now())
	}
}

func TestManual_Stop(t *testing.T) {
	m := NewManual()
	count := 0
	h := m.Every(10*time.Millisecond, func() { count++ })
	if m.Active() != 1 {
		t.Fatalf("expected 1 active handle, got %d", m.Active())
	}

	h.Stop()
	h.Stop()
	m.Advance(time.Second)
	if count != 0 {
		t.Errorf("stopped handle fired %d times", count)
	}
	if m.Active() != 0 {
		t.Errorf("expected 0 active handles, got %d", m.Active())
	}
	if m.Started() != 1 {
		t.Errorf("expected 1 started handle, got %d", m.Started())
	}
}

func TestManual_StopFromCallback(t *testing.T) {
	m := NewManual()
	count := 0
	var h Handle
	h = m.Every(10*time.Millisecond, func() {
		count++
		h.Stop()
	})
	m.Advance(100 * time.Millisecond)
	if count != 1 {
		t.Errorf("expected exactly one tick before stop, got %d", count)
	}
}

func TestTicker_FiresAndStops(t *testing.T) {
	var count atomic.Int64
	h := NewTicker().Every(5*time.Millisecond, func() { count.Add(1) })

	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	if count.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", count.Load())
	}

	// An invocation in flight at Stop may still finish; none may start after.
	time.Sleep(10 * time.Millisecond)
	stopped := count.Load()
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != stopped {
		t.Errorf("ticker fired after stop: %d -> %d", stopped, got)
	}
}
