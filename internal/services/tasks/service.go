// Package tasks implements the task and reminder operations shared by
// the HTTP handlers and the agent tool adapters. All failures surface
// as *OpError with one of five stable codes; validation always runs
// before any storage access.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
)

// Service provides user-scoped task operations backed by the task
// repository. Every method takes the acting user's ID and never
// returns another user's data.
type Service struct {
	tasks     database.TaskRepositoryInterface
	reminders database.ReminderRepositoryInterface
	logger    *zap.Logger
}

// NewService creates a task service
func NewService(tasks database.TaskRepositoryInterface, reminders database.ReminderRepositoryInterface, logger *zap.Logger) *Service {
	return &Service{
		tasks:     tasks,
		reminders: reminders,
		logger:    logger,
	}
}

// validateTitle normalizes and checks a task title. Returns the
// trimmed title or a validation error.
func validateTitle(title string) (string, *OpError) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", ErrValidation("Task title cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > models.MaxTaskTitleLength {
		return "", ErrValidation(fmt.Sprintf("Task title cannot exceed %d characters", models.MaxTaskTitleLength))
	}
	return trimmed, nil
}

// normalizeDescription trims a description and maps blank input to
// nil, so an explicit empty string clears the stored value.
func normalizeDescription(description *string) (*string, *OpError) {
	if description == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > models.MaxTaskDescriptionLength {
		return nil, ErrValidation(fmt.Sprintf("Task description cannot exceed %d characters", models.MaxTaskDescriptionLength))
	}
	return &trimmed, nil
}

// CreateTask validates and persists a new incomplete task for userID.
func (s *Service) CreateTask(ctx context.Context, userID uuid.UUID, title string, description *string) (*models.Task, error) {
	trimmedTitle, opErr := validateTitle(title)
	if opErr != nil {
		return nil, opErr
	}
	desc, opErr := normalizeDescription(description)
	if opErr != nil {
		return nil, opErr
	}

	task := &models.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       trimmedTitle,
		Description: desc,
		IsCompleted: false,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Error("task_create_failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, AsOpError(err)
	}

	return task, nil
}

// ListTasks returns every task owned by userID, newest first.
func (s *Service) ListTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	tasks, err := s.tasks.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("task_list_failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, AsOpError(err)
	}
	return tasks, nil
}

// GetTask returns a single task owned by userID.
func (s *Service) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, AsOpError(err)
	}
	return task, nil
}

// ToggleComplete flips the completion state of a task and returns the
// updated record.
func (s *Service) ToggleComplete(ctx context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, AsOpError(err)
	}

	task.IsCompleted = !task.IsCompleted
	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.Error("task_toggle_failed",
			zap.String("user_id", userID.String()),
			zap.String("task_id", taskID.String()),
			zap.Error(err))
		return nil, AsOpError(err)
	}

	return task, nil
}

// UpdateTask applies a partial update to a task. At least one of
// title or description must be provided. A description that trims to
// empty clears the stored value; omitting it leaves it unchanged.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, title, description *string) (*models.Task, error) {
	if title == nil && description == nil {
		return nil, ErrValidation("At least one field must be provided for update")
	}

	task, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, AsOpError(err)
	}

	if title != nil {
		trimmed, opErr := validateTitle(*title)
		if opErr != nil {
			return nil, opErr
		}
		task.Title = trimmed
	}
	if description != nil {
		desc, opErr := normalizeDescription(description)
		if opErr != nil {
			return nil, opErr
		}
		task.Description = desc
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.Error("task_update_failed",
			zap.String("user_id", userID.String()),
			zap.String("task_id", taskID.String()),
			zap.Error(err))
		return nil, AsOpError(err)
	}

	return task, nil
}

// DeleteTask removes a task owned by userID. Associated reminders are
// removed by the database cascade.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	if err := s.tasks.Delete(ctx, userID, taskID); err != nil {
		return AsOpError(err)
	}
	return nil
}
