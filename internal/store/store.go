// Package store keeps a SQLite log of recording sessions and completed
// touches.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/monitoring"
)

// ErrNoSession is returned when touches are persisted before StartSession.
var ErrNoSession = errors.New("store: no active session")

// Store wraps the touch log database.
type Store struct {
	*sql.DB
	path string

	mu      sync.Mutex
	session uuid.UUID
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{DB: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Session describes one tracker run.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	Label     string     `json:"label"`
	Source    string     `json:"source"`
	Config    string     `json:"config"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StartSession records a new session and makes it the target of
// PersistTouches.
func (s *Store) StartSession(label, source string, cfg blob.TrackerConfig, now time.Time) (uuid.UUID, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode tracker config: %w", err)
	}
	id := uuid.New()
	if _, err := s.Exec(
		`INSERT INTO sessions (session_id, label, source, config_json, started_ns) VALUES (?, ?, ?, ?, ?)`,
		id.String(), label, source, string(cfgJSON), now.UnixNano(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}

	s.mu.Lock()
	s.session = id
	s.mu.Unlock()
	monitoring.Logf("[store] session %s started (%s)", id, source)
	return id, nil
}

// EndSession stamps the active session's end time.
func (s *Store) EndSession(now time.Time) error {
	s.mu.Lock()
	id := s.session
	s.session = uuid.Nil
	s.mu.Unlock()
	if id == uuid.Nil {
		return ErrNoSession
	}
	if _, err := s.Exec(`UPDATE sessions SET ended_ns = ? WHERE session_id = ?`, now.UnixNano(), id.String()); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// ActiveSession returns the session PersistTouches writes to.
func (s *Store) ActiveSession() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.Query(`SELECT session_id, label, source, config_json, started_ns, ended_ns FROM sessions ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			rawID   string
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&rawID, &sess.Label, &sess.Source, &sess.Config, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if sess.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", rawID, err)
		}
		sess.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			sess.EndedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
