// Package journal records activity sessions and their state changes in a
// SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Config controls where the journal lives and how long it keeps data.
type Config struct {
	Path          string
	RetentionDays int
	MaxSessions   int
}

// Session is one run of an activity.
type Session struct {
	ID        string
	Activity  string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is open
	Events    int
}

// Event is one recorded state change.
type Event struct {
	ID        int64
	SessionID string
	Type      string
	Detail    string
	CreatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *log.Logger
	clock  func() time.Time
}

// Open opens or creates the journal and applies retention.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, logger: log.Default().WithPrefix("journal"), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.Prune(ctx); err != nil {
		s.logger.Warn("Journal prune on start failed", "error", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    activity TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    ended_at INTEGER
);
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    detail TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_session_created ON events(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession creates a session for activity and returns its id.
func (s *Store) StartSession(ctx context.Context, activity string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, activity, started_at) VALUES(?, ?, ?)`,
		id, activity, s.clock().UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`,
		s.clock().UnixNano(), id)
	return err
}

// Append records an event in a session.
func (s *Store) Append(ctx context.Context, sessionID, eventType, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(session_id, event_type, detail, created_at) VALUES(?, ?, ?, ?)`,
		sessionID, eventType, detail, s.clock().UnixNano())
	return err
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT s.session_id, s.activity, s.started_at, s.ended_at, COUNT(e.id)
FROM sessions s LEFT JOIN events e ON e.session_id = s.session_id
GROUP BY s.session_id
ORDER BY s.started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Activity, &started, &ended, &sess.Events); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(0, started)
		if ended.Valid {
			sess.EndedAt = time.Unix(0, ended.Int64)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListEvents returns up to limit events of a session in time order.
func (s *Store) ListEvents(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, event_type, COALESCE(detail, ''), created_at
FROM events WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes sessions older than RetentionDays and keeps at most
// MaxSessions.
func (s *Store) Prune(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UnixNano()
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Tracker turns a stream of activity states into sessions: a session opens
// on the first non-idle state and closes when the activity returns to idle.
type Tracker struct {
	store    *Store
	activity string

	mu      sync.Mutex
	current string
}

// Track returns a tracker for activity.
func (s *Store) Track(activity string) *Tracker {
	return &Tracker{store: s, activity: activity}
}

// Record notes that the activity entered state. Failures are logged.
func (t *Tracker) Record(ctx context.Context, state, detail string, idle bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == "" {
		if idle {
			return
		}
		id, err := t.store.StartSession(ctx, t.activity)
		if err != nil {
			t.store.logger.Warn("Failed to start journal session", "activity", t.activity, "error", err)
			return
		}
		t.current = id
	}

	if err := t.store.Append(ctx, t.current, state, detail); err != nil {
		t.store.logger.Warn("Failed to append journal event", "activity", t.activity, "error", err)
	}
	if idle {
		if err := t.store.EndSession(ctx, t.current); err != nil {
			t.store.logger.Warn("Failed to end journal session", "activity", t.activity, "error", err)
		}
		t.current = ""
	}
}

// SessionID returns the open session, or "".
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
