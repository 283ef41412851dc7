package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/touchtrack/internal/blob"
)

func TestActivityWindow(t *testing.T) {
	a := NewActivity(3)
	assert.Empty(t, a.Samples())

	for i := 1; i <= 5; i++ {
		a.ObserveFrame(blob.FrameSummary{
			Timestamp:  time.Unix(int64(i), 0),
			Detections: i,
			Live:       i,
			Died:       []blob.TrackedEntity{{ID: 1}},
		}, nil)
	}

	samples := a.Samples()
	assert.Len(t, samples, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{samples[0].Live, samples[1].Live, samples[2].Live})
	assert.Equal(t, 1, samples[2].Died)
}

func TestActivityMinimumSize(t *testing.T) {
	a := NewActivity(0)
	a.ObserveFrame(blob.FrameSummary{Live: 1}, nil)
	a.ObserveFrame(blob.FrameSummary{Live: 2}, nil)
	samples := a.Samples()
	assert.Len(t, samples, 1)
	assert.Equal(t, 2, samples[0].Live)
}
