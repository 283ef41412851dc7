package monitor

import (
	"sync"
	"time"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// ActivitySample is the per-frame activity record kept for charts.
type ActivitySample struct {
	Timestamp  time.Time `json:"timestamp"`
	Detections int       `json:"detections"`
	Live       int       `json:"live"`
	Born       int       `json:"born"`
	Died       int       `json:"died"`
}

// Activity keeps a fixed-size window of recent frame activity. It is a
// pipeline frame sink.
type Activity struct {
	mu      sync.Mutex
	samples []ActivitySample
	next    int
	full    bool
}

// NewActivity returns a window holding the last size frames.
func NewActivity(size int) *Activity {
	if size < 1 {
		size = 1
	}
	return &Activity{samples: make([]ActivitySample, size)}
}

// ObserveFrame implements pipeline.FrameSink.
func (a *Activity) ObserveFrame(s blob.FrameSummary, _ []blob.OutputRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples[a.next] = ActivitySample{
		Timestamp:  s.Timestamp,
		Detections: s.Detections,
		Live:       s.Live,
		Born:       len(s.Born),
		Died:       len(s.Died),
	}
	a.next = (a.next + 1) % len(a.samples)
	if a.next == 0 {
		a.full = true
	}
}

// Samples returns the window oldest first.
func (a *Activity) Samples() []ActivitySample {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.full {
		return append([]ActivitySample(nil), a.samples[:a.next]...)
	}
	out := make([]ActivitySample, 0, len(a.samples))
	out = append(out, a.samples[a.next:]...)
	return append(out, a.samples[:a.next]...)
}
