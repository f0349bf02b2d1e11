package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxTaskTitleLength is the maximum length for a task title
	MaxTaskTitleLength = 200
	// MaxTaskDescriptionLength is the maximum length for a task description
	MaxTaskDescriptionLength = 1000
)

// Task represents a todo item. Tasks are strictly scoped to their owner:
// no task is visible to, or mutable by, any other user.
type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
