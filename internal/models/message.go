package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole tags who produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MaxMessageContentLength is the maximum length for message content
const MaxMessageContentLength = 50000

// Message is one turn in a conversation. Messages are append-only and
// retrieved in ascending creation order; that ordering is the contract
// the chat orchestration relies on to replay history faithfully.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r MessageRole) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}
