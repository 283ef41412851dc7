package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectionFromContour(t *testing.T) {
	t.Parallel()

	t.Run("square", func(t *testing.T) {
		d := DetectionFromContour([]Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}, 180, 30)
		assert.InDelta(t, 16, d.Area, 1e-9)
		assert.InDelta(t, 2, d.Centroid.X, 1e-9)
		assert.InDelta(t, 2, d.Centroid.Y, 1e-9)
		assert.Equal(t, Rect{X: 0, Y: 0, Width: 4, Height: 4}, d.BoundingBox)
		assert.InDelta(t, 4, d.Oriented.Width, 1e-9)
		assert.InDelta(t, 4, d.Oriented.Height, 1e-9)
		assert.InDelta(t, 0, d.Oriented.Angle, 1e-9)
		assert.Equal(t, 180.0, d.SourceIntensity)
		assert.Equal(t, 30.0, d.BackgroundIntensity)
	})

	t.Run("clockwise winding", func(t *testing.T) {
		d := DetectionFromContour([]Point{{0, 0}, {0, 4}, {4, 4}, {4, 0}}, 0, 0)
		assert.InDelta(t, 16, d.Area, 1e-9)
		assert.InDelta(t, 2, d.Centroid.X, 1e-9)
		assert.InDelta(t, 2, d.Centroid.Y, 1e-9)
	})

	t.Run("tall rectangle", func(t *testing.T) {
		d := DetectionFromContour([]Point{{0, 0}, {2, 0}, {2, 10}, {0, 10}}, 0, 0)
		assert.InDelta(t, 20, d.Area, 1e-9)
		assert.InDelta(t, 10, d.Oriented.Width, 1e-9)
		assert.InDelta(t, 2, d.Oriented.Height, 1e-9)
		assert.InDelta(t, -90, d.Oriented.Angle, 1e-9)
		assert.InDelta(t, 1, d.Oriented.Center.X, 1e-9)
		assert.InDelta(t, 5, d.Oriented.Center.Y, 1e-9)
	})

	t.Run("degenerate", func(t *testing.T) {
		d := DetectionFromContour([]Point{{0, 0}, {2, 0}, {4, 0}}, 0, 0)
		assert.Zero(t, d.Area)
		assert.Equal(t, Point{X: 2, Y: 0}, d.Centroid)
	})

	t.Run("empty", func(t *testing.T) {
		d := DetectionFromContour(nil, 1, 2)
		assert.Zero(t, d.Area)
		assert.Empty(t, d.Contour)
		assert.Equal(t, 1.0, d.SourceIntensity)
	})

	t.Run("contour is copied", func(t *testing.T) {
		pts := []Point{{0, 0}, {4, 0}, {4, 4}}
		d := DetectionFromContour(pts, 0, 0)
		pts[0] = Point{X: 99, Y: 99}
		assert.Equal(t, Point{}, d.Contour[0])
	})
}

func TestNormalizeOrientedBox(t *testing.T) {
	tests := []struct {
		in, want OrientedBox
	}{
		{OrientedBox{Width: 5, Height: 2, Angle: 10}, OrientedBox{Width: 5, Height: 2, Angle: 10}},
		{OrientedBox{Width: 2, Height: 5, Angle: 10}, OrientedBox{Width: 5, Height: 2, Angle: -80}},
		{OrientedBox{Width: 5, Height: 2, Angle: -100}, OrientedBox{Width: 5, Height: 2, Angle: 80}},
		{OrientedBox{Width: 5, Height: 2, Angle: 90}, OrientedBox{Width: 5, Height: 2, Angle: -90}},
		{OrientedBox{Width: 5, Height: 2, Angle: 450}, OrientedBox{Width: 5, Height: 2, Angle: -90}},
	}
	for _, tt := range tests {
		got := NormalizeOrientedBox(tt.in)
		assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
		assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		assert.InDelta(t, tt.want.Angle, got.Angle, 1e-9, "input %+v", tt.in)
	}
}

func TestPointHelpers(t *testing.T) {
	p := Point{X: 4, Y: 6}
	q := Point{X: 1, Y: 2}
	assert.Equal(t, Point{X: 3, Y: 4}, p.Sub(q))
	assert.Equal(t, 5.0, p.Sub(q).Len())
	assert.Equal(t, 25.0, p.DistanceSquared(q))
}
