package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/touchtrack/internal/blob"
)

func TestTrailPlotter(t *testing.T) {
	tp := NewTrailPlotter(320, 240)
	_, err := tp.Generate()
	assert.Error(t, err, "generate before start")

	// Frames before Start are ignored.
	tp.ObserveFrame(blob.FrameSummary{Live: 1}, []blob.OutputRecord{{ID: 9}})

	dir := filepath.Join(t.TempDir(), "plots")
	require.NoError(t, tp.Start(dir))
	assert.True(t, tp.IsEnabled())

	n, err := tp.Generate()
	require.NoError(t, err)
	assert.Zero(t, n, "no trails yet")

	for i := 0; i < 20; i++ {
		records := []blob.OutputRecord{{ID: 1, Centroid: blob.Point{X: float64(10 + i), Y: 20}, Area: 16}}
		if i >= 10 {
			records = append(records, blob.OutputRecord{ID: 2, Centroid: blob.Point{X: 100, Y: float64(50 + i)}, Area: 20})
		}
		tp.ObserveFrame(blob.FrameSummary{Live: len(records)}, records)
	}
	assert.Equal(t, 2, tp.TrailCount())

	tp.Stop()
	assert.False(t, tp.IsEnabled())
	tp.ObserveFrame(blob.FrameSummary{}, []blob.OutputRecord{{ID: 3}})
	assert.Equal(t, 2, tp.TrailCount())

	n, err = tp.Generate()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, name := range []string{"trails.png", "live.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	colors := generateColors(4)
	assert.Len(t, colors, 4)
	assert.NotEqual(t, colors[0], colors[2])
}
