package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/monitoring"
	"github.com/banshee-data/touchtrack/internal/replay"
	"github.com/banshee-data/touchtrack/internal/timeutil"
)

// Source yields detection frames. Next returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (replay.Frame, error)
}

// FrameSink observes every processed frame. Implementations must not
// retain records beyond the call.
type FrameSink interface {
	ObserveFrame(summary blob.FrameSummary, records []blob.OutputRecord)
}

// PersistenceSink stores touches whose grace period expired.
type PersistenceSink interface {
	PersistTouches(died []blob.TrackedEntity) error
}

// Recorder captures the raw input frames, e.g. a replay.Writer.
type Recorder interface {
	WriteFrame(f replay.Frame) error
}

// Config holds the dependencies of a Runner.
type Config struct {
	Tracker *blob.Tracker
	Source  Source
	Clock   timeutil.Clock // Defaults to timeutil.RealClock

	// FramePeriod paces the loop. Zero processes frames as fast as the
	// source yields them.
	FramePeriod time.Duration

	// UseSourceTime stamps each update with the frame's recorded
	// timestamp instead of the clock. Frames without one use the clock.
	UseSourceTime bool

	Sinks       []FrameSink
	Persistence PersistenceSink // Optional
	Recorder    Recorder        // Optional
}

// Stats are cumulative runner counters.
type Stats struct {
	Frames        uint64    `json:"frames"`
	Detections    uint64    `json:"detections"`
	Born          uint64    `json:"born"`
	Died          uint64    `json:"died"`
	Skipped       uint64    `json:"skipped"`
	Live          int       `json:"live"`
	PersistErrors uint64    `json:"persist_errors"`
	RecordErrors  uint64    `json:"record_errors"`
	LastFrame     time.Time `json:"last_frame"`
}

// Runner is the per-frame driver. Tracker.Update is only ever invoked from
// the goroutine running Run or Step.
type Runner struct {
	cfg Config

	frames        atomic.Uint64
	detections    atomic.Uint64
	born          atomic.Uint64
	died          atomic.Uint64
	skipped       atomic.Uint64
	persistErrors atomic.Uint64
	recordErrors  atomic.Uint64

	mu        sync.Mutex
	live      int
	lastFrame time.Time
}

// ErrNoTracker is returned by NewRunner when no tracker is configured.
var ErrNoTracker = errors.New("pipeline: tracker is required")

// ErrNoSource is returned by NewRunner when no source is configured.
var ErrNoSource = errors.New("pipeline: source is required")

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Tracker == nil {
		return nil, ErrNoTracker
	}
	if isNilInterface(cfg.Source) {
		return nil, ErrNoSource
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if isNilInterface(cfg.Persistence) {
		cfg.Persistence = nil
	}
	if isNilInterface(cfg.Recorder) {
		cfg.Recorder = nil
	}
	return &Runner{cfg: cfg}, nil
}

// Run processes frames until the source is exhausted or ctx is done. A
// drained source is not an error.
func (r *Runner) Run(ctx context.Context) error {
	monitoring.Logf("[pipeline] starting (period=%v, source time=%v)", r.cfg.FramePeriod, r.cfg.UseSourceTime)
	defer func() {
		s := r.Stats()
		monitoring.Logf("[pipeline] stopped after %d frames: born=%d died=%d", s.Frames, s.Born, s.Died)
	}()

	if r.cfg.FramePeriod <= 0 {
		for {
			if err := r.Step(ctx); err != nil {
				return endOfRun(err)
			}
		}
	}

	ticker := r.cfg.Clock.NewTicker(r.cfg.FramePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := r.Step(ctx); err != nil {
				return endOfRun(err)
			}
		}
	}
}

func endOfRun(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Step pulls one frame and runs it through the tracker and sinks.
func (r *Runner) Step(ctx context.Context) error {
	frame, err := r.cfg.Source.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("failed to read frame: %w", err)
	}

	now := r.cfg.Clock.Now()
	if r.cfg.UseSourceTime {
		if ts := frame.Time(); !ts.IsZero() {
			now = ts
		}
	}

	if r.cfg.Recorder != nil {
		if err := r.cfg.Recorder.WriteFrame(frame); err != nil {
			r.recordErrors.Add(1)
			monitoring.Logf("[pipeline] failed to record frame %d: %v", frame.Seq, err)
		}
	}

	summary := r.cfg.Tracker.Update(frame.Detections, now)

	r.frames.Add(1)
	r.detections.Add(uint64(summary.Detections))
	r.born.Add(uint64(len(summary.Born)))
	r.died.Add(uint64(len(summary.Died)))
	r.skipped.Add(uint64(summary.Skipped))
	r.mu.Lock()
	r.live = summary.Live
	r.lastFrame = now
	r.mu.Unlock()

	if r.cfg.Persistence != nil && len(summary.Died) > 0 {
		if err := r.cfg.Persistence.PersistTouches(summary.Died); err != nil {
			r.persistErrors.Add(1)
			monitoring.Logf("[pipeline] failed to persist %d touches: %v", len(summary.Died), err)
		}
	}

	if len(r.cfg.Sinks) > 0 {
		records := r.cfg.Tracker.Output().Records()
		for _, s := range r.cfg.Sinks {
			s.ObserveFrame(summary, records)
		}
	}
	return nil
}

// Stats returns the cumulative counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	live, last := r.live, r.lastFrame
	r.mu.Unlock()
	return Stats{
		Frames:        r.frames.Load(),
		Detections:    r.detections.Load(),
		Born:          r.born.Load(),
		Died:          r.died.Load(),
		Skipped:       r.skipped.Load(),
		Live:          live,
		PersistErrors: r.persistErrors.Load(),
		RecordErrors:  r.recordErrors.Load(),
		LastFrame:     last,
	}
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
