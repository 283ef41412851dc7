package blob

import "time"

// EntityID identifies a tracked entity for the lifetime of a Tracker.
// Valid ids start at 1 and are never reused.
type EntityID int64

// NotSitting is the Sitting value of an entity that is moving or has
// already fired its held event for the current hold.
const NotSitting = -1.0

// TrackedEntity is a persistent touch with a stable id across frames.
type TrackedEntity struct {
	ID EntityID `json:"id"`

	// Kinematics (camera space)
	Centroid     Point   `json:"centroid"`
	LastCentroid Point   `json:"last_centroid"`
	Velocity     Point   `json:"velocity"`
	Acceleration float64 `json:"acceleration"`

	// Lifecycle
	BornAt     time.Time `json:"born_at"`
	LastUpdate time.Time `json:"last_update"`
	Age        float64   `json:"age"`     // Seconds since birth
	Sitting    float64   `json:"sitting"` // Seconds still, or NotSitting
	Grace      int       `json:"grace"`   // Remaining unmatched frames before deletion

	// Area averaging
	AverageArea float64 `json:"average_area"`

	// Mirrored from the most recent matched detection
	BoundingBox         Rect        `json:"bounding_box"`
	Oriented            OrientedBox `json:"oriented"`
	Contour             []Point     `json:"contour,omitempty"`
	Area                float64     `json:"area"`
	SourceIntensity     float64     `json:"source_intensity"`
	BackgroundIntensity float64     `json:"background_intensity"`

	// Touch summary, accumulated over the entity's lifetime
	Origin           Point   `json:"origin"`
	PathLength       float64 `json:"path_length"`
	PeakAcceleration float64 `json:"peak_acceleration"`
	HeldCount        int     `json:"held_count"`
	Matches          int     `json:"matches"`

	areaSum         float64
	areaCount       int
	areaWindowStart time.Time
	stillSince      time.Time
	heldLatched     bool
	elapsedMs       float64

	candidates []CandidateLink
}

// valid reports whether the entity was issued an id by a tracker.
// Zero-value placeholders never collect candidates.
func (e *TrackedEntity) valid() bool {
	return e.ID > 0
}

// snapshot returns a copy that shares no mutable tracker state.
func (e *TrackedEntity) snapshot() TrackedEntity {
	s := *e
	s.candidates = nil
	return s
}

// Candidates returns a copy of the entity's current candidate list.
func (e *TrackedEntity) Candidates() []CandidateLink {
	return append([]CandidateLink(nil), e.candidates...)
}

// mirror copies the geometric and intensity attributes of d.
func (e *TrackedEntity) mirror(d *Detection) {
	e.BoundingBox = d.BoundingBox
	e.Oriented = d.Oriented
	e.Contour = d.Contour
	e.Area = d.Area
	e.SourceIntensity = d.SourceIntensity
	e.BackgroundIntensity = d.BackgroundIntensity
}
