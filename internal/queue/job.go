package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeConversationTitle is a job for generating a conversation title
	JobTypeConversationTitle JobType = "conversation_title"
)

// Job represents a job in the queue
type Job struct {
	ID             uuid.UUID      `json:"id"`
	Type           JobType        `json:"type"`
	UserID         uuid.UUID      `json:"user_id"`
	ConversationID *uuid.UUID     `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID, conversationID *uuid.UUID) *Job {
	return &Job{
		ID:             uuid.New(),
		Type:           jobType,
		UserID:         userID,
		ConversationID: conversationID,
		Metadata:       make(map[string]any),
		CreatedAt:      time.Now(),
		RetryCount:     0,
		MaxRetries:     3,
	}
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
