package blob

import (
	"math"
	"time"
)

// minElapsedMs bounds the acceleration denominator so duplicate
// timestamps never divide by zero.
const minElapsedMs = 1.0

// smoothingStrength returns the blend weight given to the new position for
// a raw displacement of posDelta pixels. Larger filter levels damp small
// movements harder; large jumps always pass through almost unchanged.
func smoothingStrength(posDelta, filterLevel float64) float64 {
	return 1 - 1/math.Exp(posDelta/(1+10*filterLevel))
}

// initEntity sets up a newborn entity from its first detection.
func (t *Tracker) initEntity(e *TrackedEntity, d *Detection, now time.Time) {
	e.mirror(d)
	e.Centroid = d.Centroid
	e.LastCentroid = d.Centroid
	e.Origin = d.Centroid
	e.Velocity = Point{}
	e.Acceleration = 0
	e.BornAt = now
	e.LastUpdate = now
	e.Age = 0
	e.Sitting = 0
	e.Grace = t.Config.GraceFrames
	e.AverageArea = d.Area
	e.areaSum = d.Area
	e.areaCount = 1
	e.areaWindowStart = now
	e.stillSince = now
	e.elapsedMs = minElapsedMs
}

// updateKinematics applies a matched detection to the entity's previous
// state and reports which touch event the update represents.
func (t *Tracker) updateKinematics(e *TrackedEntity, d *Detection, now time.Time) EventKind {
	prev := e.Centroid
	raw := d.Centroid

	a := smoothingStrength(raw.Sub(prev).Len(), t.Config.MovementFilter)
	filtered := Point{
		X: a*raw.X + (1-a)*prev.X,
		Y: a*raw.Y + (1-a)*prev.Y,
	}

	elapsedMs := float64(now.Sub(e.LastUpdate)) / float64(time.Millisecond)
	if elapsedMs < minElapsedMs {
		elapsedMs = minElapsedMs
	}

	velocity := filtered.Sub(prev)
	accel := velocity.Len() / elapsedMs

	// Pin sub-threshold motion to the previous position to suppress jitter.
	if t.Config.MinMovementThreshold > 0 && accel < t.Config.MinMovementThreshold {
		filtered = prev
		velocity = Point{}
		accel = 0
	}

	e.mirror(d)
	e.LastCentroid = prev
	e.Centroid = filtered
	e.Velocity = velocity
	e.Acceleration = accel
	e.elapsedMs = elapsedMs
	e.Age = now.Sub(e.BornAt).Seconds()
	e.LastUpdate = now
	e.Grace = t.Config.GraceFrames
	e.Matches++
	e.PathLength += velocity.Len()
	if accel > e.PeakAcceleration {
		e.PeakAcceleration = accel
	}

	e.areaSum += d.Area
	e.areaCount++
	if now.Sub(e.areaWindowStart) >= t.Config.AreaAverageInterval {
		e.AverageArea = e.areaSum / float64(e.areaCount)
		e.areaSum = 0
		e.areaCount = 0
		e.areaWindowStart = now
	}

	return t.updateSitting(e, now)
}

// updateSitting maintains the stillness duration and fires the held event
// once per continuous hold.
func (t *Tracker) updateSitting(e *TrackedEntity, now time.Time) EventKind {
	if e.Acceleration >= t.Config.SittingAccelThreshold {
		e.Sitting = NotSitting
		e.heldLatched = false
		e.stillSince = now
		return TouchMoved
	}

	if e.heldLatched {
		return TouchMoved
	}

	e.Sitting = now.Sub(e.stillSince).Seconds()
	if e.Sitting > t.Config.HeldAfter.Seconds() {
		e.Sitting = NotSitting
		e.heldLatched = true
		e.HeldCount++
		return TouchHeld
	}
	return TouchMoved
}
