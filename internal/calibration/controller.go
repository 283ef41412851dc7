package calibration

import (
	"sync"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/monitoring"
)

// MinUpMatches is the number of matched frames a touch needs before its
// touch-up event may confirm a target. Shorter touches are treated as noise.
const MinUpMatches = 5

// State is the phase of a calibration session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Target is the tracker surface the controller drives.
type Target interface {
	SetTransformer(tr blob.Transformer)
	SetCalibrating(on bool)
}

// Status is a point-in-time view of a session.
type Status struct {
	State   State       `json:"state"`
	Done    int         `json:"done"`
	Total   int         `json:"total"`
	Next    *blob.Point `json:"next,omitempty"`
	Result  *FitResult  `json:"result,omitempty"`
	Affine  *Affine     `json:"affine,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Controller walks the user through a grid of targets. It implements
// blob.Listener and must be installed with Tracker.SetListener.
type Controller struct {
	target  Target
	targets []blob.Point

	// OnComplete, if set, is called with the installed transform.
	OnComplete func(Affine, FitResult)

	// Fallback is reinstalled when a session is cancelled or its fit
	// fails. Nil means identity. A successful fit replaces it.
	Fallback blob.Transformer

	mu        sync.Mutex
	state     State
	samples   []blob.Point
	confirmed map[blob.EntityID]bool
	result    *FitResult
	affine    *Affine
	message   string
}

// NewController returns an idle controller for the given screen-space
// targets.
func NewController(target Target, targets []blob.Point) *Controller {
	return &Controller{
		target:  target,
		targets: append([]blob.Point(nil), targets...),
		state:   StateIdle,
	}
}

// GridTargets lays out cols×rows targets evenly over a screen of w×h,
// inset by margin on every side, in row-major order.
func GridTargets(w, h float64, cols, rows int, margin float64) []blob.Point {
	if cols < 1 || rows < 1 {
		return nil
	}
	pos := func(i, n int, extent float64) float64 {
		if n == 1 {
			return extent / 2
		}
		return margin + float64(i)*(extent-2*margin)/float64(n-1)
	}
	out := make([]blob.Point, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, blob.Point{X: pos(c, cols, w), Y: pos(r, rows, h)})
		}
	}
	return out
}

// Start begins a new session. Raw camera coordinates are restored on the
// tracker until the session completes.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateRunning
	c.samples = c.samples[:0]
	c.confirmed = make(map[blob.EntityID]bool)
	c.result = nil
	c.affine = nil
	c.message = ""
	c.target.SetTransformer(nil)
	c.target.SetCalibrating(true)
	monitoring.Logf("[calibration] started with %d targets", len(c.targets))
}

// Cancel abandons a running session and reinstalls the fallback
// transform.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}
	c.state = StateCancelled
	c.target.SetCalibrating(false)
	c.target.SetTransformer(c.Fallback)
	monitoring.Logf("[calibration] cancelled after %d of %d targets", len(c.samples), len(c.targets))
}

// Status reports the session progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:   c.state,
		Done:    len(c.samples),
		Total:   len(c.targets),
		Result:  c.result,
		Affine:  c.affine,
		Message: c.message,
	}
	if c.state == StateRunning && len(c.samples) < len(c.targets) {
		next := c.targets[len(c.samples)]
		s.Next = &next
	}
	return s
}

// OnTouchEvent implements blob.Listener.
func (c *Controller) OnTouchEvent(ev blob.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}

	switch ev.Kind {
	case blob.TouchHeld:
	case blob.TouchUp:
		if ev.Entity.Matches < MinUpMatches {
			return
		}
	default:
		return
	}
	if c.confirmed[ev.Entity.ID] {
		return
	}
	c.confirmed[ev.Entity.ID] = true
	c.samples = append(c.samples, ev.Entity.Centroid)
	monitoring.Logf("[calibration] target %d/%d confirmed by touch %d (%s) at (%.1f, %.1f)",
		len(c.samples), len(c.targets), ev.Entity.ID, ev.Kind, ev.Entity.Centroid.X, ev.Entity.Centroid.Y)

	if len(c.samples) == len(c.targets) {
		c.finish()
	}
}

func (c *Controller) finish() {
	c.target.SetCalibrating(false)
	t, res, err := FitAffine(c.samples, c.targets)
	if err != nil {
		c.state = StateFailed
		c.message = err.Error()
		c.target.SetTransformer(c.Fallback)
		monitoring.Logf("[calibration] fit failed: %v", err)
		return
	}
	c.target.SetTransformer(t)
	c.Fallback = t
	c.state = StateDone
	c.result = &res
	c.affine = &t
	monitoring.Logf("[calibration] installed transform: rmse=%.2fpx quality=%s", res.RMSE, res.Quality)
	if c.OnComplete != nil {
		c.OnComplete(t, res)
	}
}
