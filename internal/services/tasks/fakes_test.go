package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/taskpilot/internal/models"
)

// fakeTaskRepo is an in-memory TaskRepositoryInterface for tests.
// Set failWith to force every call to return that error.
type fakeTaskRepo struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*models.Task
	failWith error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (f *fakeTaskRepo) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	stored := *task
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	f.tasks[task.ID] = &stored
	return nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, userID, taskID uuid.UUID) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*models.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			copied := *task
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	existing, ok := f.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	stored := *task
	stored.UpdatedAt = time.Now().UTC()
	f.tasks[task.ID] = &stored
	return nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, userID, taskID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	delete(f.tasks, taskID)
	return nil
}

// fakeReminderRepo is an in-memory ReminderRepositoryInterface.
type fakeReminderRepo struct {
	mu        sync.Mutex
	nextID    int64
	reminders map[int64]*models.Reminder
	failWith  error
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{reminders: make(map[int64]*models.Reminder)}
}

func (f *fakeReminderRepo) Create(_ context.Context, reminder *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	reminder.ID = f.nextID
	reminder.CreatedAt = time.Now().UTC()
	stored := *reminder
	f.reminders[reminder.ID] = &stored
	return nil
}

func (f *fakeReminderRepo) GetByID(_ context.Context, userID uuid.UUID, reminderID int64) (*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	reminder, ok := f.reminders[reminderID]
	if !ok || reminder.UserID != userID {
		return nil, fmt.Errorf("reminder not found: %w", sql.ErrNoRows)
	}
	copied := *reminder
	return &copied, nil
}

func (f *fakeReminderRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*models.ReminderWithTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*models.ReminderWithTask
	for _, reminder := range f.reminders {
		if reminder.UserID == userID {
			out = append(out, &models.ReminderWithTask{Reminder: *reminder})
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) GetDue(_ context.Context, userID uuid.UUID, now time.Time) ([]*models.ReminderWithTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*models.ReminderWithTask
	for _, reminder := range f.reminders {
		if reminder.UserID == userID && reminder.IsActive && !reminder.RemindAt.After(now) {
			out = append(out, &models.ReminderWithTask{Reminder: *reminder})
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) Update(_ context.Context, reminder *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	existing, ok := f.reminders[reminder.ID]
	if !ok || existing.UserID != reminder.UserID {
		return fmt.Errorf("reminder not found: %w", sql.ErrNoRows)
	}
	stored := *reminder
	f.reminders[reminder.ID] = &stored
	return nil
}

func (f *fakeReminderRepo) Delete(_ context.Context, userID uuid.UUID, reminderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	reminder, ok := f.reminders[reminderID]
	if !ok || reminder.UserID != userID {
		return fmt.Errorf("reminder not found: %w", sql.ErrNoRows)
	}
	delete(f.reminders, reminderID)
	return nil
}
