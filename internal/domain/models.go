// Package domain defines the core domain models for the relay.
package domain

import (
	"encoding/json"
	"time"
)

// Message roles. Internal roles other than user/assistant are excluded from
// prompt history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session represents a conversation session.
type Session struct {
	SessionID string          `json:"session_id"`
	UserName  string          `json:"user_name"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Message represents a single message in a session. Messages are append-only:
// never mutated or deleted once written.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
