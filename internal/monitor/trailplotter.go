package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// TrailSample is one published position of a touch.
type TrailSample struct {
	FrameIdx int
	Centroid blob.Point
	Area     float64
}

// TrailPlotter records touch trajectories from the output map for
// visualisation after a run. It is a pipeline frame sink.
type TrailPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	width     float64
	height    float64

	trails   map[blob.EntityID][]TrailSample
	live     plotter.XYs
	frameIdx int
}

// NewTrailPlotter creates a plotter for a screen of the given size.
func NewTrailPlotter(width, height float64) *TrailPlotter {
	return &TrailPlotter{
		width:  width,
		height: height,
		trails: make(map[blob.EntityID][]TrailSample),
	}
}

// Start initializes the plotter for a new run.
func (tp *TrailPlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tp.outputDir = outputDir
	tp.enabled = true
	tp.trails = make(map[blob.EntityID][]TrailSample)
	tp.live = nil
	tp.frameIdx = 0
	return nil
}

// Stop disables sampling. Call Generate to produce output files.
func (tp *TrailPlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (tp *TrailPlotter) IsEnabled() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.enabled
}

// ObserveFrame implements pipeline.FrameSink.
func (tp *TrailPlotter) ObserveFrame(s blob.FrameSummary, records []blob.OutputRecord) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if !tp.enabled {
		return
	}
	for _, r := range records {
		tp.trails[r.ID] = append(tp.trails[r.ID], TrailSample{FrameIdx: tp.frameIdx, Centroid: r.Centroid, Area: r.Area})
	}
	tp.live = append(tp.live, plotter.XY{X: float64(tp.frameIdx), Y: float64(s.Live)})
	tp.frameIdx++
}

// TrailCount returns the number of distinct touches recorded.
func (tp *TrailPlotter) TrailCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.trails)
}

// Generate writes trails.png and live.png into the output directory and
// returns the number of files written.
func (tp *TrailPlotter) Generate() (int, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.outputDir == "" {
		return 0, fmt.Errorf("plotter not started")
	}
	if len(tp.trails) == 0 {
		return 0, nil
	}

	if err := tp.generateTrails(); err != nil {
		return 0, err
	}
	if err := tp.generateLive(); err != nil {
		return 1, err
	}
	return 2, nil
}

func (tp *TrailPlotter) generateTrails() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Touch trails (%d touches, %d frames)", len(tp.trails), tp.frameIdx)
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	if tp.width > 0 && tp.height > 0 {
		p.X.Min, p.X.Max = 0, tp.width
		p.Y.Min, p.Y.Max = 0, tp.height
	}

	ids := make([]blob.EntityID, 0, len(tp.trails))
	for id := range tp.trails {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	colors := generateColors(len(ids))

	for i, id := range ids {
		samples := tp.trails[id]
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: s.Centroid.X, Y: s.Centroid.Y}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)

		start, err := plotter.NewScatter(pts[:1])
		if err != nil {
			return err
		}
		start.Color = colors[i]
		start.Radius = vg.Points(2)
		p.Add(start)

		if len(ids) <= 20 {
			p.Legend.Add(fmt.Sprintf("#%d", id), line)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(tp.outputDir, "trails.png")
	if err := p.Save(8*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save trails plot: %w", err)
	}
	return nil
}

func (tp *TrailPlotter) generateLive() error {
	p := plot.New()
	p.Title.Text = "Live touches"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Touches"

	line, err := plotter.NewLine(tp.live)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	file := filepath.Join(tp.outputDir, "live.png")
	if err := p.Save(14*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("save live plot: %w", err)
	}
	return nil
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
