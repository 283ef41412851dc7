package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	if d := clock.Since(time.Now().Add(-time.Second)); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestFramePeriod(t *testing.T) {
	tests := []struct {
		rate float64
		want time.Duration
	}{
		{60, 16666666 * time.Nanosecond},
		{30, 33333333 * time.Nanosecond},
		{1, time.Second},
		{0, 0},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := FramePeriod(tt.rate); got != tt.want {
			t.Errorf("FramePeriod(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestMockClock_SetAndSince(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	if !clock.Now().Equal(start) {
		t.Fatalf("got %v, want %v", clock.Now(), start)
	}
	clock.Set(start.Add(time.Minute))
	if got := clock.Since(start); got != time.Minute {
		t.Errorf("Since() = %v, want 1m", got)
	}
}

func TestMockTicker_FiresOnSchedule(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C():
		if !got.Equal(start.Add(time.Second)) {
			t.Errorf("tick time = %v", got)
		}
	default:
		t.Fatal("ticker did not fire")
	}

	clock.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire a second time")
	}
	if clock.Tickers() != 1 {
		t.Errorf("Tickers() = %d, want 1", clock.Tickers())
	}
}

func TestMockTicker_DropsWhenReaderIsBehind(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Millisecond)
	for i := 0; i < 5; i++ {
		clock.Advance(time.Millisecond)
	}
	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("expected buffered ticks to be dropped")
	default:
	}
}

func TestMockTicker_StopAndReset(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(2 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	ticker.Reset(time.Second)
	clock.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("reset ticker did not fire")
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	ticker.Trigger(now)
	if got := <-ticker.C(); !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}
}
