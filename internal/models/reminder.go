package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxRepeatIntervalMinutes caps the repeat interval at 24 hours
	MaxRepeatIntervalMinutes = 1440
	// MaxRepeatCount caps how many times a reminder may repeat
	MaxRepeatCount = 100
)

// Reminder is a scheduled notification tied to exactly one task.
// Reminders are evaluated on demand during API requests; nothing pushes
// them in the background. The repeat fields are either both set or both
// nil.
type Reminder struct {
	ID                    int64     `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	TaskID                uuid.UUID `json:"task_id"`
	RemindAt              time.Time `json:"remind_at"`
	RepeatIntervalMinutes *int      `json:"repeat_interval_minutes"`
	RepeatCount           *int      `json:"repeat_count"`
	TriggeredCount        int       `json:"triggered_count"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
}

// ReminderWithTask is a reminder joined with its task's display fields,
// used for due-reminder notification views.
type ReminderWithTask struct {
	Reminder
	TaskTitle       string  `json:"task_title"`
	TaskDescription *string `json:"task_description"`
}
