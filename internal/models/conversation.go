package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one chat session. updated_at is bumped whenever a
// message is appended, which drives the newest-first conversation list.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
