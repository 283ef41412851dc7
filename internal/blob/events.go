package blob

import "time"

// EventKind names a touch lifecycle notification.
type EventKind int

const (
	TouchDown  EventKind = iota // New entity spawned
	TouchMoved                  // Entity updated and not newly held
	TouchHeld                   // Entity crossed the stillness threshold (fires once per hold)
	TouchUp                     // Entity deleted after its grace period
)

func (k EventKind) String() string {
	switch k {
	case TouchDown:
		return "down"
	case TouchMoved:
		return "moved"
	case TouchHeld:
		return "held"
	case TouchUp:
		return "up"
	default:
		return "unknown"
	}
}

// Event carries the raw camera-space state of the entity that triggered it.
type Event struct {
	Kind   EventKind
	Entity TrackedEntity
	At     time.Time
}

// Listener receives touch events. Events are only emitted while the
// tracker is in calibration mode, and are delivered after the frame's
// update has finished, so listeners may call back into the tracker.
type Listener interface {
	OnTouchEvent(ev Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ev Event)

// OnTouchEvent calls f(ev).
func (f ListenerFunc) OnTouchEvent(ev Event) { f(ev) }
