package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/companion-labs/voicerelay/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to an in-memory dsn is a distinct database.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session. A duplicate session id is rejected
// with ErrDuplicateSession.
func (s *SQLiteStore) CreateSession(ctx context.Context, sessionID, userName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_name, created_at, metadata) VALUES (?, ?, ?, ?)`,
		sessionID, userName, time.Now(), "{}")
	if isConstraintErr(err) {
		return ErrDuplicateSession
	}
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_name, created_at, metadata FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserName, &session.CreatedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, err
	}
	if metadata.Valid {
		session.Metadata = json.RawMessage(metadata.String)
	}
	return &session, nil
}

// UpdateSessionMetadata replaces the metadata blob of a session.
func (s *SQLiteStore) UpdateSessionMetadata(ctx context.Context, sessionID string, metadata json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET metadata = ? WHERE session_id = ?`,
		string(metadata), sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownSession
	}
	return nil
}

// AppendMessage persists one new message with the current timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		"msg_"+uuid.New().String()[:8], sessionID, role, content, time.Now())
	return err
}

// RecentMessages retrieves the most recent messages for a session, newest
// first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, role, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// BuildPrompt composes a prompt from the HistoryWindow most recent messages
// in chronological order, terminated by the new user line. It does not
// persist anything; the caller appends the turn's messages separately.
func (s *SQLiteStore) BuildPrompt(ctx context.Context, sessionID, userText string) (string, error) {
	messages, err := s.RecentMessages(ctx, sessionID, HistoryWindow)
	if err != nil {
		return "", err
	}
	return renderPrompt(messages, userText), nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
