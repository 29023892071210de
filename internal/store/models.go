// Package store provides SQLite-backed persistence for world documents,
// play sessions, and their message history. The engine packages never touch
// it directly; the session layer does.
package store

// World is a persisted World Definition document. Document holds the raw
// JSON, normalized to the current schema version on import; it is migrated
// again on every load, which is a no-op for current documents.
type World struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Document  []byte `json:"document"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Session is one play session over a world. State holds the serialized
// GameState snapshot.
type Session struct {
	ID        string `json:"id"`
	WorldID   string `json:"worldId"`
	Name      string `json:"name,omitempty"`
	State     []byte `json:"state"`
	TurnCount int    `json:"turnCount"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Message is a single message in a session's history.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"` // "user", "assistant", "system"
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// Storer is the persistence interface consumed by the session layer.
type Storer interface {
	PutWorld(w *World) error
	GetWorld(id string) (*World, error)
	ListWorlds() ([]*World, error)
	DeleteWorld(id string) error

	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	SaveSessionState(id string, state []byte, turnCount int) error
	ListSessions(worldID string) ([]*Session, error)
	DeleteSession(id string) error

	AddMessage(m *Message) error
	GetMessages(sessionID string) ([]*Message, error)
	RecentMessages(sessionID string, limit int) ([]*Message, error)
	DeleteMessages(sessionID string) error

	Close() error
}
