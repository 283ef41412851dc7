package blob

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothingStrength(t *testing.T) {
	tests := []struct {
		name   string
		delta  float64
		filter float64
		want   float64
	}{
		{"no movement", 0, 0, 0},
		{"unfiltered", 10, 0, 1 - math.Exp(-10)},
		{"filter 5", 10, 5, 1 - math.Exp(-10.0/51)},
		{"filter 15", 3, 15, 1 - math.Exp(-3.0/151)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, smoothingStrength(tt.delta, tt.filter), 1e-12)
		})
	}
}

func TestSmoothingIsIdempotentForStillTouches(t *testing.T) {
	for _, level := range []float64{0, 5, 15} {
		cfg := testConfig()
		cfg.MovementFilter = level
		tracker := NewTracker(cfg)
		tracker.Update([]Detection{at(40, 60)}, frameTime(0))
		tracker.Update([]Detection{at(40, 60)}, frameTime(1))

		e := tracker.Entities()[0]
		assert.Equal(t, Point{X: 40, Y: 60}, e.Centroid, "filter %v", level)
		assert.Equal(t, Point{}, e.Velocity, "filter %v", level)
		assert.Zero(t, e.Acceleration, "filter %v", level)
	}
}

func TestSmoothingBlendsTowardsDetection(t *testing.T) {
	cfg := testConfig()
	cfg.MovementFilter = 5
	tracker := NewTracker(cfg)
	tracker.Update([]Detection{at(0, 0)}, frameTime(0))
	tracker.Update([]Detection{at(10, 0)}, frameTime(1))

	a := 1 - math.Exp(-10.0/51)
	e := tracker.Entities()[0]
	assert.InDelta(t, 10*a, e.Centroid.X, 1e-9)
	assert.InDelta(t, 10*a, e.Velocity.X, 1e-9)
	assert.Equal(t, Point{}, e.LastCentroid)
	assert.InDelta(t, 10*a/(1000.0/60), e.Acceleration, 1e-9)
	assert.InDelta(t, 10*a, e.PathLength, 1e-9)
}

func TestAccelerationClampsElapsedTime(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Update([]Detection{at(0, 0)}, frameTime(0))
	tracker.Update([]Detection{at(5, 0)}, frameTime(0))

	e := tracker.Entities()[0]
	assert.False(t, math.IsInf(e.Acceleration, 0))
	assert.InDelta(t, e.Velocity.Len(), e.Acceleration, 1e-9)
}

func TestMinMovementThresholdPinsJitter(t *testing.T) {
	cfg := testConfig()
	cfg.MinMovementThreshold = 0.1
	tracker := NewTracker(cfg)
	tracker.Update([]Detection{at(100, 100)}, frameTime(0))

	tracker.Update([]Detection{at(100.5, 100)}, frameTime(1))
	e := tracker.Entities()[0]
	assert.Equal(t, Point{X: 100, Y: 100}, e.Centroid)
	assert.Zero(t, e.Acceleration)

	tracker.Update([]Detection{at(120, 100)}, frameTime(2))
	e = tracker.Entities()[0]
	assert.Greater(t, e.Centroid.X, 119.0)
	assert.Greater(t, e.Acceleration, 0.1)
}

func TestAverageAreaUpdatesPerInterval(t *testing.T) {
	tracker := NewTracker(testConfig())
	first := at(50, 50)
	first.Area = 10
	tracker.Update([]Detection{first}, frameTime(0))

	for frame := 1; frame < 30; frame++ {
		d := at(50, 50)
		d.Area = 20
		tracker.Update([]Detection{d}, frameTime(frame))
		require.Equal(t, 10.0, tracker.Entities()[0].AverageArea, "frame %d", frame)
	}

	d := at(50, 50)
	d.Area = 20
	tracker.Update([]Detection{d}, frameTime(30))
	assert.InDelta(t, (10+30*20)/31.0, tracker.Entities()[0].AverageArea, 1e-9)
}

func TestMirrorCopiesDetectionFields(t *testing.T) {
	tracker := NewTracker(testConfig())
	d := at(10, 10)
	d.SourceIntensity = 200
	d.BackgroundIntensity = 40
	d.Contour = []Point{{X: 8, Y: 8}, {X: 12, Y: 8}, {X: 12, Y: 12}}
	tracker.Update([]Detection{d}, frameTime(0))

	e := tracker.Entities()[0]
	assert.Equal(t, 200.0, e.SourceIntensity)
	assert.Equal(t, 40.0, e.BackgroundIntensity)
	assert.Equal(t, d.BoundingBox, e.BoundingBox)
	assert.Equal(t, d.Contour, e.Contour)
	assert.Equal(t, Point{X: 10, Y: 10}, e.Origin)
	assert.WithinDuration(t, epoch, e.LastUpdate, time.Millisecond)
}
