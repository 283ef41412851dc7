package blob

import "math"

// unreachableDistance sorts entities with no candidates after every entity
// that has one.
var unreachableDistance = math.Inf(1)

// CandidateLink is a potential match between a tracked entity and the
// detection at Index in the current frame.
type CandidateLink struct {
	Index           int
	DistanceSquared float64
}

// buildCandidates returns the entity's candidate list: detections within
// maxDistSquared of the entity's last known centroid, ascending by squared
// distance and capped at k entries. Equal distances keep detection order.
func buildCandidates(e *TrackedEntity, detections []Detection, maxDistSquared float64, k int, dst []CandidateLink) []CandidateLink {
	dst = dst[:0]
	if e == nil || !e.valid() || k <= 0 {
		return dst
	}

	for i := range detections {
		if !detections[i].finite() {
			continue
		}
		d2 := e.Centroid.DistanceSquared(detections[i].Centroid)
		// Written so that a NaN distance fails the gate.
		if !(d2 <= maxDistSquared) {
			continue
		}
		if len(dst) == k && d2 >= dst[k-1].DistanceSquared {
			continue
		}

		// Insertion sort: walk back over strictly larger entries.
		pos := len(dst)
		for pos > 0 && dst[pos-1].DistanceSquared > d2 {
			pos--
		}
		dst = append(dst, CandidateLink{})
		copy(dst[pos+1:], dst[pos:])
		dst[pos] = CandidateLink{Index: i, DistanceSquared: d2}

		if len(dst) > k {
			dst = dst[:k]
		}
	}
	return dst
}

// firstChoice is the entity's closest remaining candidate distance.
func firstChoice(links []CandidateLink) float64 {
	if len(links) == 0 {
		return unreachableDistance
	}
	return links[0].DistanceSquared
}
