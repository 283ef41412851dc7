package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/monitoring"
	"github.com/banshee-data/touchtrack/internal/replay"
	"github.com/banshee-data/touchtrack/internal/timeutil"
)

type sliceSource struct {
	mu     sync.Mutex
	frames []replay.Frame
	err    error
}

func (s *sliceSource) Next(ctx context.Context) (replay.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return replay.Frame{}, err
	}
	if len(s.frames) == 0 {
		if s.err != nil {
			return replay.Frame{}, s.err
		}
		return replay.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

type captureSink struct {
	mu        sync.Mutex
	summaries []blob.FrameSummary
	records   [][]blob.OutputRecord
}

func (c *captureSink) ObserveFrame(s blob.FrameSummary, records []blob.OutputRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, s)
	c.records = append(c.records, records)
}

type persistSink struct {
	died []blob.TrackedEntity
	err  error
}

func (p *persistSink) PersistTouches(died []blob.TrackedEntity) error {
	p.died = append(p.died, died...)
	return p.err
}

type recordSink struct {
	frames []replay.Frame
}

func (r *recordSink) WriteFrame(f replay.Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

func det(x, y float64) blob.Detection {
	return blob.Detection{Centroid: blob.Point{X: x, Y: y}, Area: 16}
}

func newTracker() *blob.Tracker {
	cfg := blob.DefaultTrackerConfig()
	cfg.GraceFrames = 2
	return blob.NewTracker(cfg)
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{Source: &sliceSource{}})
	assert.ErrorIs(t, err, ErrNoTracker)

	_, err = NewRunner(Config{Tracker: newTracker()})
	assert.ErrorIs(t, err, ErrNoSource)

	var nilSource *sliceSource
	_, err = NewRunner(Config{Tracker: newTracker(), Source: nilSource})
	assert.ErrorIs(t, err, ErrNoSource)

	var nilPersist *persistSink
	r, err := NewRunner(Config{Tracker: newTracker(), Source: &sliceSource{}, Persistence: nilPersist})
	require.NoError(t, err)
	assert.Nil(t, r.cfg.Persistence)
}

func TestRun_DrainsSourceWithSourceTime(t *testing.T) {
	monitoring.SetLogger(nil)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &sliceSource{}
	for i := 0; i < 6; i++ {
		f := replay.Frame{Seq: uint64(i), TimestampNanos: start.Add(time.Duration(i) * time.Second / 60).UnixNano()}
		if i < 3 {
			f.Detections = []blob.Detection{det(100, 100)}
		}
		src.frames = append(src.frames, f)
	}

	tracker := newTracker()
	sink := &captureSink{}
	persist := &persistSink{}
	rec := &recordSink{}
	r, err := NewRunner(Config{
		Tracker:       tracker,
		Source:        src,
		Clock:         timeutil.NewMockClock(time.Time{}),
		UseSourceTime: true,
		Sinks:         []FrameSink{sink},
		Persistence:   persist,
		Recorder:      rec,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.summaries, 6)
	assert.Equal(t, []blob.EntityID{1}, sink.summaries[0].Born)
	assert.True(t, sink.summaries[2].Timestamp.Equal(start.Add(2*time.Second/60)))
	assert.Len(t, sink.records[0], 1)
	assert.Empty(t, sink.records[5])

	require.Len(t, persist.died, 1)
	assert.Equal(t, blob.EntityID(1), persist.died[0].ID)
	assert.Len(t, rec.frames, 6)

	s := r.Stats()
	assert.Equal(t, uint64(6), s.Frames)
	assert.Equal(t, uint64(3), s.Detections)
	assert.Equal(t, uint64(1), s.Born)
	assert.Equal(t, uint64(1), s.Died)
	assert.Zero(t, s.Live)
	assert.True(t, s.LastFrame.Equal(start.Add(5*time.Second/60)))
}

func TestRun_PacedByClock(t *testing.T) {
	monitoring.SetLogger(nil)
	clock := timeutil.NewMockClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	src := &sliceSource{frames: []replay.Frame{
		{Detections: []blob.Detection{det(10, 10)}},
		{Detections: []blob.Detection{det(11, 10)}},
		{Detections: []blob.Detection{det(12, 10)}},
	}}
	sink := &captureSink{}
	r, err := NewRunner(Config{
		Tracker:     newTracker(),
		Source:      src,
		Clock:       clock,
		FramePeriod: 16 * time.Millisecond,
		Sinks:       []FrameSink{sink},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, r.Stats().Frames, "no frame before the first tick")

	deadline := time.After(5 * time.Second)
	for {
		clock.Advance(16 * time.Millisecond)
		select {
		case err := <-done:
			require.NoError(t, err)
			sink.mu.Lock()
			defer sink.mu.Unlock()
			require.Len(t, sink.summaries, 3)
			// Clock time is used when the source carries no timestamps.
			assert.False(t, sink.summaries[0].Timestamp.IsZero())
			assert.False(t, sink.summaries[1].Timestamp.Before(sink.summaries[0].Timestamp))
			return
		case <-deadline:
			t.Fatal("runner did not drain the source")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	monitoring.SetLogger(nil)
	clock := timeutil.NewMockClock(time.Time{})
	r, err := NewRunner(Config{
		Tracker:     newTracker(),
		Source:      &sliceSource{frames: []replay.Frame{{}}},
		Clock:       clock,
		FramePeriod: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner ignored cancellation")
	}
}

func TestRun_SourceErrorIsReturned(t *testing.T) {
	monitoring.SetLogger(nil)
	boom := errors.New("camera unplugged")
	r, err := NewRunner(Config{Tracker: newTracker(), Source: &sliceSource{err: boom}})
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStep_PersistErrorsAreCounted(t *testing.T) {
	monitoring.SetLogger(nil)
	src := &sliceSource{frames: []replay.Frame{
		{Detections: []blob.Detection{det(5, 5)}},
		{}, {},
	}}
	persist := &persistSink{err: errors.New("disk full")}
	r, err := NewRunner(Config{Tracker: newTracker(), Source: src, Clock: timeutil.NewMockClock(time.Unix(0, 0)), Persistence: persist})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Step(ctx))
	}
	assert.ErrorIs(t, r.Step(ctx), io.EOF)
	assert.Equal(t, uint64(1), r.Stats().PersistErrors)
	assert.Len(t, persist.died, 1)
}

func TestRun_SyntheticSource(t *testing.T) {
	monitoring.SetLogger(nil)
	gen := replay.NewSyntheticGenerator(9)
	gen.MaxFrames = 600
	tracker := blob.NewTracker(blob.DefaultTrackerConfig())
	r, err := NewRunner(Config{Tracker: tracker, Source: gen, UseSourceTime: true})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	s := r.Stats()
	assert.Equal(t, uint64(600), s.Frames)
	assert.Greater(t, s.Born, uint64(0))
	assert.Equal(t, s.Live, tracker.Output().Len())
}
