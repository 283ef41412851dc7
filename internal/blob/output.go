package blob

import (
	"sort"
	"sync"
)

// Transformer converts camera-space coordinates into calibrated screen
// space. Implementations must be pure.
type Transformer interface {
	TransformPoint(p Point) Point
	TransformDimension(width, height float64) (float64, float64)
}

type identityTransform struct{}

func (identityTransform) TransformPoint(p Point) Point { return p }

func (identityTransform) TransformDimension(w, h float64) (float64, float64) { return w, h }

// IdentityTransform leaves coordinates unchanged.
var IdentityTransform Transformer = identityTransform{}

// OutputRecord is the calibrated snapshot of a tracked entity published
// for downstream consumers.
type OutputRecord struct {
	ID                  EntityID    `json:"id"`
	Centroid            Point       `json:"centroid"`
	Velocity            Point       `json:"velocity"`
	Acceleration        float64     `json:"acceleration"`
	BoundingBox         Rect        `json:"bounding_box"`
	Oriented            OrientedBox `json:"oriented"`
	Area                float64     `json:"area"`
	AverageArea         float64     `json:"average_area"`
	Age                 float64     `json:"age"`
	Sitting             float64     `json:"sitting"`
	SourceIntensity     float64     `json:"source_intensity"`
	BackgroundIntensity float64     `json:"background_intensity"`
}

// calibrate builds the screen-space record for e.
func calibrate(e *TrackedEntity, tr Transformer) OutputRecord {
	centroid := tr.TransformPoint(e.Centroid)
	last := tr.TransformPoint(e.LastCentroid)
	velocity := centroid.Sub(last)

	elapsed := e.elapsedMs
	if elapsed < minElapsedMs {
		elapsed = minElapsedMs
	}

	boxOrigin := tr.TransformPoint(Point{X: e.BoundingBox.X, Y: e.BoundingBox.Y})
	boxW, boxH := tr.TransformDimension(e.BoundingBox.Width, e.BoundingBox.Height)
	obW, obH := tr.TransformDimension(e.Oriented.Width, e.Oriented.Height)

	return OutputRecord{
		ID:           e.ID,
		Centroid:     centroid,
		Velocity:     velocity,
		Acceleration: velocity.Len() / elapsed,
		BoundingBox:  Rect{X: boxOrigin.X, Y: boxOrigin.Y, Width: boxW, Height: boxH},
		Oriented: OrientedBox{
			Center: tr.TransformPoint(e.Oriented.Center),
			Width:  obW,
			Height: obH,
			Angle:  e.Oriented.Angle,
		},
		Area:                e.Area,
		AverageArea:         e.AverageArea,
		Age:                 e.Age,
		Sitting:             e.Sitting,
		SourceIntensity:     e.SourceIntensity,
		BackgroundIntensity: e.BackgroundIntensity,
	}
}

// OutputMap is the externally visible id → record map. The tracker is its
// only writer; readers take snapshots between frames.
type OutputMap struct {
	mu      sync.RWMutex
	records map[EntityID]OutputRecord
}

// NewOutputMap returns an empty map.
func NewOutputMap() *OutputMap {
	return &OutputMap{records: make(map[EntityID]OutputRecord)}
}

func (m *OutputMap) upsert(r OutputRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
}

func (m *OutputMap) remove(id EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

func (m *OutputMap) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[EntityID]OutputRecord)
}

// Snapshot returns a copy of all records.
func (m *OutputMap) Snapshot() map[EntityID]OutputRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[EntityID]OutputRecord, len(m.records))
	for id, r := range m.records {
		out[id] = r
	}
	return out
}

// Get returns the record for id, if present.
func (m *OutputMap) Get(id EntityID) (OutputRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of published records.
func (m *OutputMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Records returns all records ordered by id.
func (m *OutputMap) Records() []OutputRecord {
	m.mu.RLock()
	out := make([]OutputRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
