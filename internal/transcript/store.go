// Package transcript persists turn history to a local SQLite database
// for post-mortem debugging and session resume.
package transcript

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/please-run/please/internal/message"
)

// Store wraps a SQLite connection holding one append-only transcript
// table.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the transcript database at dbPath.
func Open(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping transcript db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize transcript schema: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Append inserts one message at the end of the transcript.
func (s *Store) Append(m message.Message) error {
	_, err := s.conn.Exec(
		`INSERT INTO turns (role, content) VALUES (?, ?)`,
		m.Role.String(), m.Content,
	)
	return err
}

// Recent returns the last n messages in chronological order.
func (s *Store) Recent(n int) ([]message.Message, error) {
	rows, err := s.conn.Query(
		`SELECT role, content FROM turns ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reversed []message.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		reversed = append(reversed, message.Message{Role: message.ParseRole(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]message.Message, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}
