package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	"github.com/run-bigpig/clemm/pkg/interfaces"
)

const transcriptSchema = `
CREATE TABLE IF NOT EXISTS transcript (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT,
	created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transcript_conversation ON transcript(conversation_id, id);
`

// SQLiteStore keeps transcripts in a local SQLite database so they survive restarts
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the transcript database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	if _, err := db.Exec(transcriptSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transcript schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddMessage inserts a message into the conversation transcript
func (s *SQLiteStore) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	var metadata sql.NullString
	if len(message.Metadata) > 0 {
		encoded, err := json.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcript (conversation_id, role, content, metadata) VALUES (?, ?, ?, ?)`,
		id, message.Role, message.Content, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert transcript message: %w", err)
	}

	return nil
}

// GetMessages returns the conversation transcript in insertion order
func (s *SQLiteStore) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, metadata FROM transcript WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var messages []interfaces.Message
	for rows.Next() {
		var (
			msg      interfaces.Message
			metadata sql.NullString
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return applyOptions(messages, interfaces.ApplyGetMessagesOptions(options...)), nil
}

// Clear deletes the conversation transcript
func (s *SQLiteStore) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}

// Conversations lists conversation IDs, most recently active first
func (s *SQLiteStore) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id FROM transcript GROUP BY conversation_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
