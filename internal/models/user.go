package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Every task, reminder and
// conversation in the system belongs to exactly one user.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
