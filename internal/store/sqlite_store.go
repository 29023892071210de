package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed data store.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
-- Worlds: raw world documents, normalized on import
CREATE TABLE IF NOT EXISTS worlds (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    document BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Sessions: one play session per row, state is a GameState snapshot
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    world_id TEXT NOT NULL,
    name TEXT,
    state BLOB NOT NULL,
    turn_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_world ON sessions(world_id);

-- Messages: session history
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Worlds
// =============================================================================

// PutWorld inserts or replaces a world document.
func (s *SQLiteStore) PutWorld(w *World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO worlds (id, name, version, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, w.ID, w.Name, w.Version, w.Document, w.CreatedAt, w.UpdatedAt)
	return err
}

// GetWorld retrieves a world by ID. Returns nil when not found.
func (s *SQLiteStore) GetWorld(id string) (*World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := &World{}
	err := s.db.QueryRow(`
		SELECT id, name, version, document, created_at, updated_at
		FROM worlds WHERE id = ?
	`, id).Scan(&w.ID, &w.Name, &w.Version, &w.Document, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ListWorlds returns all worlds ordered by name.
func (s *SQLiteStore) ListWorlds() ([]*World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, name, version, document, created_at, updated_at
		FROM worlds ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var worlds []*World
	for rows.Next() {
		w := &World{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Version, &w.Document, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}

// DeleteWorld removes a world and all its sessions and messages.
func (s *SQLiteStore) DeleteWorld(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`
		DELETE FROM messages WHERE session_id IN (SELECT id FROM sessions WHERE world_id = ?)
	`, id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE world_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM worlds WHERE id = ?`, id)
	return err
}

// =============================================================================
// Sessions
// =============================================================================

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, world_id, name, state, turn_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.WorldID, sess.Name, sess.State, sess.TurnCount, sess.CreatedAt, sess.UpdatedAt)
	return err
}

// GetSession retrieves a session by ID. Returns nil when not found.
func (s *SQLiteStore) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := &Session{}
	err := s.db.QueryRow(`
		SELECT id, world_id, name, state, turn_count, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.WorldID, &sess.Name, &sess.State, &sess.TurnCount,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveSessionState persists a new state snapshot and turn counter.
func (s *SQLiteStore) SaveSessionState(id string, state []byte, turnCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE sessions SET state = ?, turn_count = ?, updated_at = unixepoch() * 1000
		WHERE id = ?
	`, state, turnCount, id)
	return err
}

// ListSessions returns sessions, optionally filtered by world.
func (s *SQLiteStore) ListSessions(worldID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, world_id, name, state, turn_count, created_at, updated_at
		FROM sessions`
	var args []any
	if worldID != "" {
		query += ` WHERE world_id = ?`
		args = append(args, worldID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.WorldID, &sess.Name, &sess.State,
			&sess.TurnCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its messages.
func (s *SQLiteStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// =============================================================================
// Messages
// =============================================================================

// AddMessage appends a message to a session's history.
func (s *SQLiteStore) AddMessage(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt)
	return err
}

// GetMessages returns all messages for a session, oldest first.
func (s *SQLiteStore) GetMessages(sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryMessages(`
		SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at, id
	`, sessionID)
}

// RecentMessages returns the last limit messages, oldest first.
func (s *SQLiteStore) RecentMessages(sessionID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, err := s.queryMessages(`
		SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteMessages removes all messages for a session.
func (s *SQLiteStore) DeleteMessages(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) queryMessages(query string, args ...any) ([]*Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
