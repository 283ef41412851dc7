package replay

import (
	"context"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// SyntheticGenerator produces deterministic frames of fingertip-like blobs
// that wander, pause and lift off. Two generators with the same seed and
// settings produce identical frames.
type SyntheticGenerator struct {
	// Configuration
	Width      float64       // camera width in pixels
	Height     float64       // camera height in pixels
	TouchCount int           // concurrent touch slots
	FrameRate  float64       // frames per second
	Radius     float64       // blob radius in pixels
	Speed      float64       // pixels per frame while moving
	Dropout    float64       // probability a live touch is missing from a frame
	MaxFrames  uint64        // stop after this many frames, 0 for unbounded
	Start      time.Time     // timestamp of frame 0
	Pace       time.Duration // wall-clock delay per frame, 0 to run flat out

	rng   *rand.Rand
	seq   uint64
	slots []synthTouch
}

type synthTouch struct {
	live  bool
	pos   blob.Point
	dir   float64
	life  int // frames until lift-off
	pause int // frames left standing still
	gap   int // frames until the slot respawns
}

// NewSyntheticGenerator returns a generator with the given seed and
// defaults matching a 320×240 camera at 60 Hz.
func NewSyntheticGenerator(seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		Width:      320,
		Height:     240,
		TouchCount: 3,
		FrameRate:  60,
		Radius:     4,
		Speed:      2,
		Dropout:    0.02,
		Start:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Next implements the pipeline source contract. It returns io.EOF once
// MaxFrames frames have been produced.
func (g *SyntheticGenerator) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if g.MaxFrames > 0 && g.seq >= g.MaxFrames {
		return Frame{}, io.EOF
	}
	if g.Pace > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(g.Pace):
		}
	}
	return g.NextFrame(), nil
}

// NextFrame advances the simulation by one frame.
func (g *SyntheticGenerator) NextFrame() Frame {
	if len(g.slots) != g.TouchCount {
		g.slots = make([]synthTouch, g.TouchCount)
		for i := range g.slots {
			g.slots[i].gap = g.rng.Intn(30)
		}
	}

	period := float64(time.Second) / math.Max(g.FrameRate, 1)
	f := Frame{
		Seq:            g.seq,
		TimestampNanos: g.Start.Add(time.Duration(float64(g.seq) * period)).UnixNano(),
	}
	g.seq++

	for i := range g.slots {
		s := &g.slots[i]
		if !s.live {
			if s.gap > 0 {
				s.gap--
				continue
			}
			g.spawn(s)
		}

		g.step(s)
		if !s.live {
			continue
		}
		if g.rng.Float64() < g.Dropout {
			continue
		}
		f.Detections = append(f.Detections, g.detectionAt(s.pos))
	}
	return f
}

func (g *SyntheticGenerator) spawn(s *synthTouch) {
	margin := g.Radius * 2
	s.live = true
	s.pos = blob.Point{
		X: margin + g.rng.Float64()*(g.Width-2*margin),
		Y: margin + g.rng.Float64()*(g.Height-2*margin),
	}
	s.dir = g.rng.Float64() * 2 * math.Pi
	s.life = 60 + g.rng.Intn(240)
	s.pause = 0
}

func (g *SyntheticGenerator) step(s *synthTouch) {
	s.life--
	if s.life <= 0 {
		s.live = false
		s.gap = 20 + g.rng.Intn(60)
		return
	}
	if s.pause > 0 {
		s.pause--
		return
	}
	if g.rng.Float64() < 0.01 {
		// Stand still for long enough to register as held.
		s.pause = 70 + g.rng.Intn(30)
		return
	}

	s.dir += (g.rng.Float64() - 0.5) * 0.3
	next := blob.Point{
		X: s.pos.X + g.Speed*math.Cos(s.dir),
		Y: s.pos.Y + g.Speed*math.Sin(s.dir),
	}
	if next.X < g.Radius || next.X > g.Width-g.Radius {
		s.dir = math.Pi - s.dir
		next.X = math.Min(math.Max(next.X, g.Radius), g.Width-g.Radius)
	}
	if next.Y < g.Radius || next.Y > g.Height-g.Radius {
		s.dir = -s.dir
		next.Y = math.Min(math.Max(next.Y, g.Radius), g.Height-g.Radius)
	}
	s.pos = next
}

// detectionAt builds an octagonal contour around p.
func (g *SyntheticGenerator) detectionAt(p blob.Point) blob.Detection {
	const sides = 8
	contour := make([]blob.Point, sides)
	for i := range contour {
		a := 2 * math.Pi * float64(i) / sides
		contour[i] = blob.Point{X: p.X + g.Radius*math.Cos(a), Y: p.Y + g.Radius*math.Sin(a)}
	}
	source := 180 + g.rng.Float64()*40
	return blob.DetectionFromContour(contour, source, 30)
}
