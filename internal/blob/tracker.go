package blob

import (
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/touchtrack/internal/monitoring"
)

// claim records which entity, if any, has taken a detection this frame.
type claim struct {
	by    EntityID
	taken bool
}

// FrameSummary describes the outcome of one Update call.
type FrameSummary struct {
	Timestamp  time.Time
	Detections int
	Matched    []EntityID      // Entities continued by a detection this frame
	Born       []EntityID      // Entities spawned from unclaimed detections
	Died       []TrackedEntity // Final state of entities whose grace period expired
	Skipped    int             // Unclaimed detections not spawned because of MaxEntities
	Rejected   int             // Detections with a non-finite centroid or area
	Live       int             // Live entities after the update
}

// Tracker is the assignment engine. It owns every TrackedEntity and is
// driven by exactly one Update call per captured frame.
type Tracker struct {
	Config TrackerConfig

	// entities is the arena of live entities, ordered by id.
	entities []*TrackedEntity
	nextID   EntityID

	// Per-frame scratch, reused across frames.
	claims []claim
	order  []*TrackedEntity

	output      *OutputMap
	transform   Transformer
	listener    Listener
	calibrating bool

	mu sync.Mutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(config TrackerConfig) *Tracker {
	return &Tracker{
		Config:    config,
		nextID:    1,
		output:    NewOutputMap(),
		transform: IdentityTransform,
	}
}

// UpdateConfig applies fn to the tracker's configuration under the
// tracker lock.
func (t *Tracker) UpdateConfig(fn func(*TrackerConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.Config)
}

// SetListener installs the touch event listener. Passing nil disables
// notifications.
func (t *Tracker) SetListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

// SetTransformer installs the camera → screen transform used for output
// records. Passing nil restores the identity transform.
func (t *Tracker) SetTransformer(tr Transformer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tr == nil {
		tr = IdentityTransform
	}
	t.transform = tr
}

// SetCalibrating toggles calibration mode. Touch events are only emitted
// while calibrating.
func (t *Tracker) SetCalibrating(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrating = on
}

// Calibrating reports whether calibration mode is on.
func (t *Tracker) Calibrating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calibrating
}

// Output returns the published output map.
func (t *Tracker) Output() *OutputMap {
	return t.output
}

// TrackedEntities returns a snapshot of the published output records
// keyed by entity id.
func (t *Tracker) TrackedEntities() map[EntityID]OutputRecord {
	return t.output.Snapshot()
}

// Entities returns copies of the live entities in id order.
func (t *Tracker) Entities() []TrackedEntity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackedEntity, 0, len(t.entities))
	for _, e := range t.entities {
		out = append(out, e.snapshot())
	}
	return out
}

// Reset drops every entity and clears the output map. Ids keep increasing
// so no id is ever reused by this tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entities = nil
	t.output.clear()
}

// Update processes one frame of detections: candidate lists are rebuilt
// from each entity's previous position, entities claim detections nearest
// first with cascading reassignment, unmatched entities age out and
// unclaimed detections spawn new entities.
func (t *Tracker) Update(detections []Detection, now time.Time) FrameSummary {
	t.mu.Lock()

	summary := FrameSummary{Timestamp: now, Detections: len(detections)}
	var events []Event
	notify := func(kind EventKind, e *TrackedEntity) {
		if t.calibrating && t.listener != nil {
			events = append(events, Event{Kind: kind, Entity: e.snapshot(), At: now})
		}
	}

	t.resetClaims(len(detections))

	// Step 1: candidate lists from the previous frame's positions.
	maxDist2 := t.Config.MaxDistanceSquared()
	for _, e := range t.entities {
		e.candidates = buildCandidates(e, detections, maxDist2, t.Config.MaxCandidates, e.candidates)
	}

	// Step 2: closest first choice first; ties go to the lower id.
	t.order = append(t.order[:0], t.entities...)
	sort.SliceStable(t.order, func(a, b int) bool {
		return before(t.order[a], t.order[b])
	})

	// Step 3: greedy resolve with cascading reassignment.
	died := make(map[EntityID]bool)
	for i := 0; i < len(t.order); {
		e := t.order[i]

		if len(e.candidates) == 0 {
			e.Grace--
			if e.Grace <= 0 {
				e.Grace = 0
				died[e.ID] = true
				t.output.remove(e.ID)
				notify(TouchUp, e)
				summary.Died = append(summary.Died, e.snapshot())
			}
			i++
			continue
		}

		idx := e.candidates[0].Index
		if idx >= 0 && idx < len(detections) && !t.claims[idx].taken {
			t.claims[idx] = claim{by: e.ID, taken: true}
			kind := t.updateKinematics(e, &detections[idx], now)
			t.output.upsert(calibrate(e, t.transform))
			notify(kind, e)
			summary.Matched = append(summary.Matched, e.ID)
			i++
			continue
		}

		// Taken by a closer entity (or out of range): drop the candidate
		// and re-seat this entity within the unprocessed suffix.
		if idx >= 0 && idx < len(t.claims) {
			monitoring.Debugf("[tracker] entity %d: detection %d already claimed by %d", e.ID, idx, t.claims[idx].by)
		}
		e.candidates = append(e.candidates[:0], e.candidates[1:]...)
		if len(e.candidates) > 0 {
			t.bubble(i)
		}
	}

	if len(died) > 0 {
		live := t.entities[:0]
		for _, e := range t.entities {
			if !died[e.ID] {
				live = append(live, e)
			}
		}
		for j := len(live); j < len(t.entities); j++ {
			t.entities[j] = nil
		}
		t.entities = live
	}

	// Step 4: spawn entities for unclaimed detections.
	for idx := range detections {
		if t.claims[idx].taken {
			continue
		}
		if !detections[idx].finite() {
			summary.Rejected++
			continue
		}
		if t.Config.MaxEntities > 0 && len(t.entities) >= t.Config.MaxEntities {
			summary.Skipped++
			continue
		}
		e := &TrackedEntity{ID: t.nextID}
		t.nextID++
		t.initEntity(e, &detections[idx], now)
		t.claims[idx] = claim{by: e.ID, taken: true}
		t.entities = append(t.entities, e)
		t.output.upsert(calibrate(e, t.transform))
		notify(TouchDown, e)
		summary.Born = append(summary.Born, e.ID)
	}

	if summary.Rejected > 0 {
		monitoring.Debugf("[tracker] ignored %d malformed detections", summary.Rejected)
	}
	if summary.Skipped > 0 {
		monitoring.Logf("[tracker] entity cap %d reached: %d detections not spawned", t.Config.MaxEntities, summary.Skipped)
	}

	summary.Live = len(t.entities)
	listener := t.listener
	t.mu.Unlock()

	for _, ev := range events {
		listener.OnTouchEvent(ev)
	}
	return summary
}

// ClaimedBy reports which entity claimed detection idx in the most recent
// frame. Out-of-range indices report unclaimed.
func (t *Tracker) ClaimedBy(idx int) (EntityID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.claims) {
		return 0, false
	}
	c := t.claims[idx]
	return c.by, c.taken
}

func (t *Tracker) resetClaims(n int) {
	if cap(t.claims) < n {
		t.claims = make([]claim, n)
		return
	}
	t.claims = t.claims[:n]
	for i := range t.claims {
		t.claims[i] = claim{}
	}
}

// bubble moves order[i] towards the end until the suffix order[i:] is
// ascending again. Candidate distances only grow as candidates are
// dropped, so only forward moves are ever needed.
func (t *Tracker) bubble(i int) {
	for j := i; j+1 < len(t.order) && before(t.order[j+1], t.order[j]); j++ {
		t.order[j], t.order[j+1] = t.order[j+1], t.order[j]
	}
}

// before orders entities by first-choice distance, then by id.
func before(a, b *TrackedEntity) bool {
	da, db := firstChoice(a.candidates), firstChoice(b.candidates)
	if da != db {
		return da < db
	}
	return a.ID < b.ID
}
