// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history is the local transcript store: finished turns are
// saved to a SQLite database so past conversations survive restarts.
// It is a client-side convenience only; the backend never reads it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/doclens-tui/internal/model"
)

// =============================================================================
// STORE
// =============================================================================

var ErrNotFound = errors.New("conversation not found")

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	session_id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	title      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES conversations(session_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	is_error   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// Store persists conversation transcripts.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the history database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite handles one writer at a time; serialize at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITES
// =============================================================================

// SaveTurn appends a completed user/assistant exchange to the
// conversation, creating the conversation row on first use. The user
// message's content doubles as the conversation title on creation.
func (s *Store) SaveTurn(ctx context.Context, sessionID string, user, assistant *model.Message) error {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (session_id, started_at, updated_at, title)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now, user.Preview(80))
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?`,
		sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("failed to compute message sequence: %w", err)
	}

	for i, msg := range []*model.Message{user, assistant} {
		sources, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, seq, role, content, sources, is_error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, sessionID, seq+i, msg.Role.String(), msg.GetDisplayContent(),
			string(sources), boolToInt(msg.IsError), msg.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history transaction: %w", err)
	}
	s.logger.Debug("turn saved", zap.String("session_id", sessionID), zap.Int("seq", seq))
	return nil
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Conversation is a stored transcript summary.
type Conversation struct {
	SessionID string
	Title     string
	StartedAt time.Time
	UpdatedAt time.Time
	Messages  int
}

// List returns stored conversations, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.session_id, c.title, c.started_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.session_id = c.session_id
		GROUP BY c.session_id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.SessionID, &c.Title, &c.StartedAt, &c.UpdatedAt, &c.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Load returns a conversation's messages in order.
func (s *Store) Load(ctx context.Context, sessionID string) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, sources, is_error, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var (
			msg     model.Message
			role    string
			sources string
			isErr   int
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &sources, &isErr, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.IsError = isErr != 0
		if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
			s.logger.Warn("corrupt sources column, dropping",
				zap.String("message_id", msg.ID), zap.Error(err))
			msg.Sources = nil
		}
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
