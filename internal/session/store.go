// Package session persists conversations in a small relational schema
// over a single SQLite file.
package session

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Message is one persisted turn. Never mutated after insertion.
type Message struct {
	ID        int64  `json:"-"`
	SessionID string `json:"-"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"-"`
}

// Store is the durable SessionStore backed by glebarez/go-sqlite, a pure
// Go, CGo-free SQLite driver, opened with the WAL/busy-timeout discipline
// long-running single-process services need.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("session: opening %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: setting synchronous mode: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// newSessionID draws a 128-bit id from a cryptographic source, rendered
// as 32 lowercase hex characters.
func newSessionID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

// CreateSession inserts a new session row and returns its id.
func (s *Store) CreateSession(channelID string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, channel_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, channelID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("session: creating session: %w", err)
	}
	return id, nil
}

// EnsureSession returns sessionID unchanged if it already exists. An
// empty sessionID creates a new session with a generated id; a non-empty
// id that does not exist yet is inserted as a new session under that id.
// Used by handlers that accept an optional client-supplied session_id.
func (s *Store) EnsureSession(sessionID, channelID string) (string, error) {
	if sessionID == "" {
		return s.CreateSession(channelID)
	}
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		now := time.Now().Unix()
		_, err := s.db.Exec(
			`INSERT INTO sessions (id, channel_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sessionID, channelID, now, now,
		)
		if err != nil {
			return "", fmt.Errorf("session: materializing client-supplied id: %w", err)
		}
		return sessionID, nil
	}
	if err != nil {
		return "", fmt.Errorf("session: checking existence: %w", err)
	}
	return sessionID, nil
}

// AppendMessage inserts a message under sessionID and bumps the parent
// session's updated_at.
func (s *Store) AppendMessage(sessionID, role, content string) error {
	now := time.Now().Unix()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("session: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, now,
	)
	if err != nil {
		return fmt.Errorf("session: inserting message: %w", err)
	}
	_, err = tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("session: bumping updated_at: %w", err)
	}
	return tx.Commit()
}

// FetchHistory returns up to limit messages for sessionID, newest-first,
// tiebroken by id.
func (s *Store) FetchHistory(sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, created_at FROM messages
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("session: fetching history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scanning message: %w", err)
		}
		m.SessionID = sessionID
		out = append(out, m)
	}
	return out, rows.Err()
}

// HistoryJSON renders a session's history as a JSON array of
// {role, content} objects, encoded with encoding/json (never string
// concatenation), so content is properly escaped.
func (s *Store) HistoryJSON(sessionID string, limit int) ([]byte, error) {
	msgs, err := s.FetchHistory(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

// CountSessions returns the total number of sessions.
func (s *Store) CountSessions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// CountMessages returns the total number of messages across all sessions.
func (s *Store) CountMessages() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// CountSessionMessages returns the number of messages within one session.
func (s *Store) CountSessionMessages(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
