package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/models"
)

// ScheduleReminderParams carries the inputs for scheduling a
// reminder. RepeatIntervalMinutes and RepeatCount must be provided
// together or not at all.
type ScheduleReminderParams struct {
	TaskID                uuid.UUID
	RemindAt              time.Time
	RepeatIntervalMinutes *int
	RepeatCount           *int
}

func validateRepeat(interval, count *int) *OpError {
	if (interval == nil) != (count == nil) {
		return ErrValidation("Repeat interval and repeat count must be provided together")
	}
	if interval == nil {
		return nil
	}
	if *interval < 1 || *interval > models.MaxRepeatIntervalMinutes {
		return ErrValidation(fmt.Sprintf("Repeat interval must be between 1 and %d minutes", models.MaxRepeatIntervalMinutes))
	}
	if *count < 1 || *count > models.MaxRepeatCount {
		return ErrValidation(fmt.Sprintf("Repeat count must be between 1 and %d", models.MaxRepeatCount))
	}
	return nil
}

// ScheduleReminder validates and persists a reminder for a task the
// user owns. The ownership check runs before the insert so a reminder
// can never attach to a foreign task.
func (s *Service) ScheduleReminder(ctx context.Context, userID uuid.UUID, params ScheduleReminderParams) (*models.Reminder, error) {
	if opErr := validateRepeat(params.RepeatIntervalMinutes, params.RepeatCount); opErr != nil {
		return nil, opErr
	}

	if _, err := s.tasks.GetByID(ctx, userID, params.TaskID); err != nil {
		return nil, AsOpError(err)
	}

	reminder := &models.Reminder{
		UserID:                userID,
		TaskID:                params.TaskID,
		RemindAt:              params.RemindAt.UTC(),
		RepeatIntervalMinutes: params.RepeatIntervalMinutes,
		RepeatCount:           params.RepeatCount,
		TriggeredCount:        0,
		IsActive:              true,
	}

	if err := s.reminders.Create(ctx, reminder); err != nil {
		s.logger.Error("reminder_create_failed",
			zap.String("user_id", userID.String()),
			zap.String("task_id", params.TaskID.String()),
			zap.Error(err))
		return nil, AsOpError(err)
	}

	return reminder, nil
}

// ListReminders returns every reminder owned by userID together with
// the task it belongs to.
func (s *Service) ListReminders(ctx context.Context, userID uuid.UUID) ([]*models.ReminderWithTask, error) {
	reminders, err := s.reminders.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("reminder_list_failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, AsOpError(err)
	}
	return reminders, nil
}

// DueReminders returns the user's active reminders whose remind_at
// has passed as of now.
func (s *Service) DueReminders(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.ReminderWithTask, error) {
	reminders, err := s.reminders.GetDue(ctx, userID, now.UTC())
	if err != nil {
		s.logger.Error("reminder_due_failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, AsOpError(err)
	}
	return reminders, nil
}

// ProcessReminder records one delivery of a due reminder. A
// one-shot reminder deactivates; a repeating reminder advances
// remind_at by its interval until the repeat count is exhausted.
func (s *Service) ProcessReminder(ctx context.Context, userID uuid.UUID, reminderID int64) (*models.Reminder, error) {
	reminder, err := s.reminders.GetByID(ctx, userID, reminderID)
	if err != nil {
		return nil, AsOpError(err)
	}
	if !reminder.IsActive {
		return nil, ErrValidation("Reminder is not active")
	}

	reminder.TriggeredCount++
	if reminder.RepeatIntervalMinutes != nil && reminder.RepeatCount != nil && reminder.TriggeredCount < *reminder.RepeatCount {
		reminder.RemindAt = reminder.RemindAt.Add(time.Duration(*reminder.RepeatIntervalMinutes) * time.Minute)
	} else {
		reminder.IsActive = false
	}

	if err := s.reminders.Update(ctx, reminder); err != nil {
		s.logger.Error("reminder_process_failed",
			zap.String("user_id", userID.String()),
			zap.Int64("reminder_id", reminderID),
			zap.Error(err))
		return nil, AsOpError(err)
	}

	return reminder, nil
}

// UpdateReminder replaces a reminder's schedule. Both the reminder and
// the target task must belong to the user; trigger state is preserved.
func (s *Service) UpdateReminder(ctx context.Context, userID uuid.UUID, reminderID int64, params ScheduleReminderParams) (*models.Reminder, error) {
	if opErr := validateRepeat(params.RepeatIntervalMinutes, params.RepeatCount); opErr != nil {
		return nil, opErr
	}

	reminder, err := s.reminders.GetByID(ctx, userID, reminderID)
	if err != nil {
		return nil, AsOpError(err)
	}

	if _, err := s.tasks.GetByID(ctx, userID, params.TaskID); err != nil {
		return nil, AsOpError(err)
	}

	reminder.TaskID = params.TaskID
	reminder.RemindAt = params.RemindAt.UTC()
	reminder.RepeatIntervalMinutes = params.RepeatIntervalMinutes
	reminder.RepeatCount = params.RepeatCount

	if err := s.reminders.Update(ctx, reminder); err != nil {
		s.logger.Error("reminder_update_failed",
			zap.String("user_id", userID.String()),
			zap.Int64("reminder_id", reminderID),
			zap.Error(err))
		return nil, AsOpError(err)
	}

	return reminder, nil
}

// DeleteReminder removes a reminder owned by userID.
func (s *Service) DeleteReminder(ctx context.Context, userID uuid.UUID, reminderID int64) error {
	if err := s.reminders.Delete(ctx, userID, reminderID); err != nil {
		return AsOpError(err)
	}
	return nil
}
