package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// TaskRepositoryInterface defines the interface for task repository operations
// This interface enables better testability by allowing fake implementations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
}

// ReminderRepositoryInterface defines the interface for reminder repository operations
type ReminderRepositoryInterface interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, userID uuid.UUID, reminderID int64) (*models.Reminder, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ReminderWithTask, error)
	GetDue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.ReminderWithTask, error)
	Update(ctx context.Context, reminder *models.Reminder) error
	Delete(ctx context.Context, userID uuid.UUID, reminderID int64) error
}

// ConversationRepositoryInterface defines the interface for conversation repository operations
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, userID, convID uuid.UUID) (*models.Conversation, error)
	Exists(ctx context.Context, convID uuid.UUID) (bool, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)
	UpdateTitle(ctx context.Context, userID, convID uuid.UUID, title string) error
	Delete(ctx context.Context, userID, convID uuid.UUID) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, convID uuid.UUID) ([]*models.Message, error)
}

// UserRepositoryInterface defines the interface for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface         = (*TaskRepository)(nil)
	_ ReminderRepositoryInterface     = (*ReminderRepository)(nil)
	_ ConversationRepositoryInterface = (*ConversationRepository)(nil)
	_ UserRepositoryInterface         = (*UserRepository)(nil)
)
