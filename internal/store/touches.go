package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// Touch is a completed touch: an entity whose grace period expired.
type Touch struct {
	SessionID        uuid.UUID     `json:"session_id"`
	EntityID         blob.EntityID `json:"entity_id"`
	BornAt           time.Time     `json:"born_at"`
	LastSeen         time.Time     `json:"last_seen"`
	Duration         float64       `json:"duration_s"`
	Origin           blob.Point    `json:"origin"`
	End              blob.Point    `json:"end"`
	PathLength       float64       `json:"path_length"`
	PeakAcceleration float64       `json:"peak_acceleration"`
	HeldCount        int           `json:"held_count"`
	MeanArea         float64       `json:"mean_area"`
	Matches          int           `json:"matches"`
}

// TouchFromEntity converts the final state of a dead entity.
func TouchFromEntity(session uuid.UUID, e blob.TrackedEntity) Touch {
	return Touch{
		SessionID:        session,
		EntityID:         e.ID,
		BornAt:           e.BornAt,
		LastSeen:         e.LastUpdate,
		Duration:         e.LastUpdate.Sub(e.BornAt).Seconds(),
		Origin:           e.Origin,
		End:              e.Centroid,
		PathLength:       e.PathLength,
		PeakAcceleration: e.PeakAcceleration,
		HeldCount:        e.HeldCount,
		MeanArea:         e.AverageArea,
		Matches:          e.Matches,
	}
}

// PersistTouches writes the final state of each dead entity to the active
// session in a single transaction.
func (s *Store) PersistTouches(died []blob.TrackedEntity) error {
	if len(died) == 0 {
		return nil
	}
	session := s.ActiveSession()
	if session == uuid.Nil {
		return ErrNoSession
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO touches (
			session_id, entity_id, born_ns, last_seen_ns, duration_s,
			origin_x, origin_y, end_x, end_y, path_length,
			peak_acceleration, held_count, mean_area, matches
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range died {
		t := TouchFromEntity(session, e)
		if _, err := stmt.Exec(
			t.SessionID.String(), int64(t.EntityID), t.BornAt.UnixNano(), t.LastSeen.UnixNano(), t.Duration,
			t.Origin.X, t.Origin.Y, t.End.X, t.End.Y, t.PathLength,
			t.PeakAcceleration, t.HeldCount, t.MeanArea, t.Matches,
		); err != nil {
			return fmt.Errorf("failed to insert touch %d: %w", t.EntityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit touches: %w", err)
	}
	return nil
}

// Touches returns up to limit touches of a session, most recent first. A
// limit of zero or less returns every touch.
func (s *Store) Touches(session uuid.UUID, limit int) ([]Touch, error) {
	query := `
		SELECT entity_id, born_ns, last_seen_ns, duration_s,
		       origin_x, origin_y, end_x, end_y, path_length,
		       peak_acceleration, held_count, mean_area, matches
		FROM touches WHERE session_id = ?
		ORDER BY born_ns DESC, entity_id DESC`
	args := []interface{}{session.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query touches: %w", err)
	}
	defer rows.Close()

	var out []Touch
	for rows.Next() {
		var (
			t          Touch
			id         int64
			born, last int64
		)
		if err := rows.Scan(&id, &born, &last, &t.Duration,
			&t.Origin.X, &t.Origin.Y, &t.End.X, &t.End.Y, &t.PathLength,
			&t.PeakAcceleration, &t.HeldCount, &t.MeanArea, &t.Matches); err != nil {
			return nil, fmt.Errorf("failed to scan touch: %w", err)
		}
		t.SessionID = session
		t.EntityID = blob.EntityID(id)
		t.BornAt = time.Unix(0, born).UTC()
		t.LastSeen = time.Unix(0, last).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// TouchStats summarises a session's touches.
type TouchStats struct {
	Count        int     `json:"count"`
	Held         int     `json:"held"`
	MeanDuration float64 `json:"mean_duration_s"`
	MeanPath     float64 `json:"mean_path_length"`
	MaxPeakAccel float64 `json:"max_peak_acceleration"`
}

// Stats aggregates the touches of a session.
func (s *Store) Stats(session uuid.UUID) (TouchStats, error) {
	var st TouchStats
	err := s.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN held_count > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_s), 0),
		       COALESCE(AVG(path_length), 0),
		       COALESCE(MAX(peak_acceleration), 0)
		FROM touches WHERE session_id = ?`, session.String(),
	).Scan(&st.Count, &st.Held, &st.MeanDuration, &st.MeanPath, &st.MaxPeakAccel)
	if err != nil {
		return TouchStats{}, fmt.Errorf("failed to aggregate touches: %w", err)
	}
	return st, nil
}
