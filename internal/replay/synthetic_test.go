package replay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticGenerator_Deterministic(t *testing.T) {
	a, b := NewSyntheticGenerator(11), NewSyntheticGenerator(11)
	for i := 0; i < 300; i++ {
		fa, fb := a.NextFrame(), b.NextFrame()
		if diff := cmp.Diff(fa, fb); diff != "" {
			t.Fatalf("frame %d differs (-a +b):\n%s", i, diff)
		}
	}
}

func TestSyntheticGenerator_FramesStayInBounds(t *testing.T) {
	g := NewSyntheticGenerator(5)
	g.TouchCount = 5
	var seen int
	for i := 0; i < 600; i++ {
		f := g.NextFrame()
		assert.Equal(t, uint64(i), f.Seq)
		assert.LessOrEqual(t, len(f.Detections), 5)
		for _, d := range f.Detections {
			seen++
			assert.GreaterOrEqual(t, d.Centroid.X, 0.0)
			assert.LessOrEqual(t, d.Centroid.X, g.Width)
			assert.GreaterOrEqual(t, d.Centroid.Y, 0.0)
			assert.LessOrEqual(t, d.Centroid.Y, g.Height)
			assert.Greater(t, d.Area, 0.0)
			assert.Len(t, d.Contour, 8)
		}
	}
	assert.Greater(t, seen, 0)
}

func TestSyntheticGenerator_Timestamps(t *testing.T) {
	g := NewSyntheticGenerator(1)
	f0 := g.NextFrame()
	f1 := g.NextFrame()
	assert.True(t, f0.Time().Equal(g.Start))
	assert.Equal(t, time.Second/60, f1.Time().Sub(f0.Time()))
}

func TestSyntheticGenerator_MaxFrames(t *testing.T) {
	g := NewSyntheticGenerator(1)
	g.MaxFrames = 3
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := g.Next(ctx)
		require.NoError(t, err)
	}
	_, err := g.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestSyntheticGenerator_PaceHonoursContext(t *testing.T) {
	g := NewSyntheticGenerator(1)
	g.Pace = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
