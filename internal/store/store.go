// Package store defines the conversation store interface and its SQLite
// implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/companion-labs/voicerelay/internal/domain"
)

// HistoryWindow is the number of most recent messages included when building
// a prompt.
const HistoryWindow = 8

var (
	// ErrDuplicateSession is returned by CreateSession when the session id
	// already exists. Duplicate creation is rejected, not treated as a no-op.
	ErrDuplicateSession = errors.New("store: session already exists")

	// ErrUnknownSession is returned when an operation references a session id
	// that was never created.
	ErrUnknownSession = errors.New("store: unknown session")
)

// Store defines the interface for conversation persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, sessionID, userName string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateSessionMetadata(ctx context.Context, sessionID string, metadata json.RawMessage) error

	// Message operations
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// BuildPrompt renders the most recent HistoryWindow messages in
	// chronological order followed by the new user line.
	BuildPrompt(ctx context.Context, sessionID, userText string) (string, error)

	// Lifecycle
	Close() error
}
