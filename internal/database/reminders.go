package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// ReminderRepository handles reminder database operations
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create creates a new reminder
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	query := `
		INSERT INTO reminders (user_id, task_id, remind_at, repeat_interval_minutes, repeat_count, triggered_count, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		reminder.UserID,
		reminder.TaskID,
		reminder.RemindAt,
		reminder.RepeatIntervalMinutes,
		reminder.RepeatCount,
		reminder.TriggeredCount,
		reminder.IsActive,
		time.Now().UTC(),
	).Scan(&reminder.ID, &reminder.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// GetByID retrieves a reminder by ID, scoped to the owning user
func (r *ReminderRepository) GetByID(ctx context.Context, userID uuid.UUID, reminderID int64) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	query := `
		SELECT id, user_id, task_id, remind_at, repeat_interval_minutes, repeat_count, triggered_count, is_active, created_at
		FROM reminders
		WHERE id = $1 AND user_id = $2
	`

	err := r.db.QueryRowContext(ctx, query, reminderID, userID).Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.TaskID,
		&reminder.RemindAt,
		&reminder.RepeatIntervalMinutes,
		&reminder.RepeatCount,
		&reminder.TriggeredCount,
		&reminder.IsActive,
		&reminder.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reminder not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	return reminder, nil
}

// GetByUserID retrieves all reminders for a user joined with task details
func (r *ReminderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ReminderWithTask, error) {
	query := `
		SELECT r.id, r.user_id, r.task_id, r.remind_at, r.repeat_interval_minutes, r.repeat_count,
		       r.triggered_count, r.is_active, r.created_at, t.title, t.description
		FROM reminders r
		JOIN tasks t ON r.task_id = t.id
		WHERE r.user_id = $1
		ORDER BY r.remind_at
	`

	return r.queryWithTask(ctx, query, userID)
}

// GetDue retrieves active reminders whose trigger time has passed, joined
// with task details for notification rendering
func (r *ReminderRepository) GetDue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*models.ReminderWithTask, error) {
	query := `
		SELECT r.id, r.user_id, r.task_id, r.remind_at, r.repeat_interval_minutes, r.repeat_count,
		       r.triggered_count, r.is_active, r.created_at, t.title, t.description
		FROM reminders r
		JOIN tasks t ON r.task_id = t.id
		WHERE r.user_id = $1 AND r.is_active = TRUE AND r.remind_at <= $2
		ORDER BY r.remind_at
	`

	return r.queryWithTask(ctx, query, userID, now)
}

func (r *ReminderRepository) queryWithTask(ctx context.Context, query string, args ...any) ([]*models.ReminderWithTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.ReminderWithTask
	for rows.Next() {
		reminder := &models.ReminderWithTask{}
		err := rows.Scan(
			&reminder.ID,
			&reminder.UserID,
			&reminder.TaskID,
			&reminder.RemindAt,
			&reminder.RepeatIntervalMinutes,
			&reminder.RepeatCount,
			&reminder.TriggeredCount,
			&reminder.IsActive,
			&reminder.CreatedAt,
			&reminder.TaskTitle,
			&reminder.TaskDescription,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// Update persists scheduling fields and state for a reminder
func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	query := `
		UPDATE reminders
		SET task_id = $3, remind_at = $4, repeat_interval_minutes = $5, repeat_count = $6,
		    triggered_count = $7, is_active = $8
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		reminder.ID,
		reminder.UserID,
		reminder.TaskID,
		reminder.RemindAt,
		reminder.RepeatIntervalMinutes,
		reminder.RepeatCount,
		reminder.TriggeredCount,
		reminder.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("reminder not found: %w", sql.ErrNoRows)
	}

	return nil
}

// Delete removes a reminder, scoped to the owning user
func (r *ReminderRepository) Delete(ctx context.Context, userID uuid.UUID, reminderID int64) error {
	query := `DELETE FROM reminders WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, reminderID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("reminder not found: %w", sql.ErrNoRows)
	}

	return nil
}
