package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/tasks"
)

// errorPhrasings is the single place where internal error codes become
// conversational text. Unrecognized codes fall back to the raw message.
var errorPhrasings = map[tasks.ErrorCode]string{
	tasks.CodeTaskNotFound:  "I couldn't find that task. It may have been deleted or you may not have access to it.",
	tasks.CodeValidation:    "", // filled in with the specific message
	tasks.CodeAuthorization: "You don't have access to that task.",
	tasks.CodeDatabase:      "Something went wrong on our end. Please try again.",
	tasks.CodeUnknown:       "Something unexpected happened. Please try again.",
}

func translateError(opErr *tasks.OpError) string {
	phrase, ok := errorPhrasings[opErr.Code]
	if !ok {
		return "Error: " + opErr.Message
	}
	if opErr.Code == tasks.CodeValidation {
		phrase = "There was a problem with that request: " + opErr.Message
	}
	return "Error: " + phrase
}

// failure builds the outcome for a failed tool call. The structured
// result carries the code for the trace; the message carries only the
// translated phrasing.
func failure(err error) ToolOutcome {
	var opErr *tasks.OpError
	if !errors.As(err, &opErr) {
		opErr = tasks.ErrUnknown()
	}
	return ToolOutcome{
		Message: translateError(opErr),
		Result: map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    string(opErr.Code),
				"message": opErr.Message,
			},
		},
		Success: false,
	}
}

func taskResult(task *models.Task) map[string]any {
	result := map[string]any{
		"success":      true,
		"task_id":      task.ID.String(),
		"user_id":      task.UserID.String(),
		"title":        task.Title,
		"is_completed": task.IsCompleted,
		"created_at":   task.CreatedAt.Format(time.RFC3339),
		"updated_at":   task.UpdatedAt.Format(time.RFC3339),
	}
	if task.Description != nil {
		result["description"] = *task.Description
	} else {
		result["description"] = nil
	}
	return result
}

func stringParam(params map[string]any, key string) (string, bool) {
	value, ok := params[key].(string)
	return value, ok
}

func optionalString(params map[string]any, key string) *string {
	if value, ok := params[key].(string); ok {
		return &value
	}
	return nil
}

// optionalInt reads a numeric parameter. JSON numbers decode as
// float64, so both forms are accepted.
func optionalInt(params map[string]any, key string) *int {
	switch value := params[key].(type) {
	case float64:
		n := int(value)
		return &n
	case int:
		return &value
	}
	return nil
}

func parseTaskID(params map[string]any) (uuid.UUID, *tasks.OpError) {
	raw, ok := stringParam(params, "task_id")
	if !ok {
		return uuid.Nil, tasks.ErrValidation("task_id is required")
	}
	taskID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, tasks.ErrValidation("task_id must be a valid UUID")
	}
	return taskID, nil
}

// NewTaskRegistry builds the six-tool surface over the task service.
func NewTaskRegistry(svc *tasks.Service, logger *zap.Logger) *Registry {
	return NewRegistry(
		addTaskTool(svc, logger),
		listTasksTool(svc, logger),
		completeTaskTool(svc, logger),
		deleteTaskTool(svc, logger),
		updateTaskTool(svc, logger),
		scheduleReminderTool(svc, logger),
	)
}

func addTaskTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "add_task_tool",
		Description: "Create a new task for the user. Use this tool when the user wants to create a new task. Extract the task title from their request, and optionally a description if they provide one.",
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "The title of the task to create (required, 1-200 characters)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Optional description for the task (max 1000 characters)",
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			title, _ := stringParam(params, "title")
			description := optionalString(params, "description")

			logger.Info("agent_tool_invocation",
				zap.String("tool", "add_task_tool"),
				zap.String("user_id", userID.String()),
				zap.Int("title_length", len(title)))

			task, err := svc.CreateTask(ctx, userID, title, description)
			if err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "add_task_tool"), zap.Error(err))
				return failure(err)
			}

			logger.Info("agent_tool_success",
				zap.String("tool", "add_task_tool"),
				zap.String("task_id", task.ID.String()))
			return ToolOutcome{
				Message: fmt.Sprintf("Created task '%s' (ID: %s)", task.Title, task.ID),
				Result:  taskResult(task),
				Success: true,
			}
		},
	}
}

func listTasksTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "list_tasks_tool",
		Description: "List all tasks for the user. Use this tool when the user wants to see their tasks, such as when they ask \"Show my tasks\", \"What do I have to do?\", or \"List my todos\".",
		Parameters: openai.FunctionParameters{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			logger.Info("agent_tool_invocation",
				zap.String("tool", "list_tasks_tool"),
				zap.String("user_id", userID.String()))

			taskList, err := svc.ListTasks(ctx, userID)
			if err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "list_tasks_tool"), zap.Error(err))
				return failure(err)
			}

			logger.Info("agent_tool_success",
				zap.String("tool", "list_tasks_tool"),
				zap.Int("count", len(taskList)))

			taskMaps := make([]any, 0, len(taskList))
			for _, task := range taskList {
				taskMaps = append(taskMaps, taskResult(task))
			}
			result := map[string]any{
				"success": true,
				"tasks":   taskMaps,
				"count":   len(taskList),
			}

			if len(taskList) == 0 {
				return ToolOutcome{
					Message: "You have no tasks. Would you like to create one?",
					Result:  result,
					Success: true,
				}
			}

			plural := "s"
			if len(taskList) == 1 {
				plural = ""
			}
			lines := []string{fmt.Sprintf("You have %d task%s:", len(taskList), plural)}
			for i, task := range taskList {
				status := "[ ]"
				if task.IsCompleted {
					status = "[✓]"
				}
				lines = append(lines, fmt.Sprintf("%d. %s %s (ID: %s)", i+1, status, task.Title, task.ID))
			}
			return ToolOutcome{
				Message: strings.Join(lines, "\n"),
				Result:  result,
				Success: true,
			}
		},
	}
}

func completeTaskTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "complete_task_tool",
		Description: "Mark a task as complete (or toggle its completion status). Use this tool when the user wants to mark a task as done. You'll need the task_id, which you can get by first listing the user's tasks.",
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The UUID of the task to mark as complete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			taskID, opErr := parseTaskID(params)
			if opErr != nil {
				return failure(opErr)
			}

			logger.Info("agent_tool_invocation",
				zap.String("tool", "complete_task_tool"),
				zap.String("user_id", userID.String()),
				zap.String("task_id", taskID.String()))

			task, err := svc.ToggleComplete(ctx, userID, taskID)
			if err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "complete_task_tool"), zap.Error(err))
				return failure(err)
			}

			status := "complete"
			if !task.IsCompleted {
				status = "incomplete"
			}
			logger.Info("agent_tool_success",
				zap.String("tool", "complete_task_tool"),
				zap.String("task_id", taskID.String()),
				zap.Bool("is_completed", task.IsCompleted))
			return ToolOutcome{
				Message: fmt.Sprintf("Marked '%s' as %s.", task.Title, status),
				Result:  taskResult(task),
				Success: true,
			}
		},
	}
}

func deleteTaskTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "delete_task_tool",
		Description: "Permanently delete a task. Use this tool when the user wants to remove a task. This action cannot be undone. You'll need the task_id, which you can get by first listing the user's tasks.",
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The UUID of the task to delete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			taskID, opErr := parseTaskID(params)
			if opErr != nil {
				return failure(opErr)
			}

			logger.Info("agent_tool_invocation",
				zap.String("tool", "delete_task_tool"),
				zap.String("user_id", userID.String()),
				zap.String("task_id", taskID.String()))

			if err := svc.DeleteTask(ctx, userID, taskID); err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "delete_task_tool"), zap.Error(err))
				return failure(err)
			}

			logger.Info("agent_tool_success",
				zap.String("tool", "delete_task_tool"),
				zap.String("task_id", taskID.String()))
			return ToolOutcome{
				Message: fmt.Sprintf("Deleted task (ID: %s).", taskID),
				Result: map[string]any{
					"success": true,
					"task_id": taskID.String(),
				},
				Success: true,
			}
		},
	}
}

func updateTaskTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "update_task_tool",
		Description: "Update a task's title or description. Use this tool when the user wants to change a task's title or description. At least one of title or description must be provided. You'll need the task_id, which you can get by first listing the user's tasks.",
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The UUID of the task to update",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "New title for the task (optional)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "New description for the task (optional)",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			taskID, opErr := parseTaskID(params)
			if opErr != nil {
				return failure(opErr)
			}
			title := optionalString(params, "title")
			description := optionalString(params, "description")

			logger.Info("agent_tool_invocation",
				zap.String("tool", "update_task_tool"),
				zap.String("user_id", userID.String()),
				zap.String("task_id", taskID.String()),
				zap.Bool("has_title", title != nil),
				zap.Bool("has_description", description != nil))

			task, err := svc.UpdateTask(ctx, userID, taskID, title, description)
			if err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "update_task_tool"), zap.Error(err))
				return failure(err)
			}

			logger.Info("agent_tool_success",
				zap.String("tool", "update_task_tool"),
				zap.String("task_id", taskID.String()))

			var changes []string
			if title != nil {
				changes = append(changes, fmt.Sprintf("title to '%s'", task.Title))
			}
			if description != nil {
				changes = append(changes, "description")
			}
			changeText := "task"
			if len(changes) > 0 {
				changeText = strings.Join(changes, " and ")
			}
			return ToolOutcome{
				Message: fmt.Sprintf("Updated %s.", changeText),
				Result:  taskResult(task),
				Success: true,
			}
		},
	}
}

func scheduleReminderTool(svc *tasks.Service, logger *zap.Logger) ToolDef {
	return ToolDef{
		Name:        "schedule_reminder_tool",
		Description: "Schedule a reminder for a task. Use this tool when the user wants to be reminded about a task. The reminder time should be in ISO 8601 format (e.g., \"2026-01-09T09:00:00Z\"). Optionally, set up a repeating reminder with interval and count.",
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The UUID of the task to set a reminder for",
				},
				"remind_at": map[string]any{
					"type":        "string",
					"description": "When to trigger the reminder (ISO 8601 datetime string)",
				},
				"repeat_interval_minutes": map[string]any{
					"type":        "integer",
					"description": "Minutes between repeats (optional, max 1440)",
				},
				"repeat_count": map[string]any{
					"type":        "integer",
					"description": "Total times to repeat (optional, max 100)",
				},
			},
			"required": []string{"task_id", "remind_at"},
		},
		Handler: func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome {
			taskID, opErr := parseTaskID(params)
			if opErr != nil {
				return failure(opErr)
			}
			rawRemindAt, ok := stringParam(params, "remind_at")
			if !ok {
				return failure(tasks.ErrValidation("remind_at is required"))
			}
			remindAt, err := time.Parse(time.RFC3339, rawRemindAt)
			if err != nil {
				return failure(tasks.ErrValidation("remind_at must be an ISO 8601 datetime"))
			}
			interval := optionalInt(params, "repeat_interval_minutes")
			count := optionalInt(params, "repeat_count")

			logger.Info("agent_tool_invocation",
				zap.String("tool", "schedule_reminder_tool"),
				zap.String("user_id", userID.String()),
				zap.String("task_id", taskID.String()),
				zap.String("remind_at", rawRemindAt))

			reminder, err := svc.ScheduleReminder(ctx, userID, tasks.ScheduleReminderParams{
				TaskID:                taskID,
				RemindAt:              remindAt,
				RepeatIntervalMinutes: interval,
				RepeatCount:           count,
			})
			if err != nil {
				logger.Warn("agent_tool_error", zap.String("tool", "schedule_reminder_tool"), zap.Error(err))
				return failure(err)
			}

			logger.Info("agent_tool_success",
				zap.String("tool", "schedule_reminder_tool"),
				zap.Int64("reminder_id", reminder.ID))

			result := map[string]any{
				"success":     true,
				"reminder_id": reminder.ID,
				"task_id":     reminder.TaskID.String(),
				"remind_at":   reminder.RemindAt.Format(time.RFC3339),
				"is_active":   reminder.IsActive,
			}
			if reminder.RepeatIntervalMinutes != nil {
				result["repeat_interval_minutes"] = *reminder.RepeatIntervalMinutes
			}
			if reminder.RepeatCount != nil {
				result["repeat_count"] = *reminder.RepeatCount
			}

			msg := fmt.Sprintf("Reminder scheduled for %s", reminder.RemindAt.Format(time.RFC3339))
			if interval != nil && count != nil {
				msg += fmt.Sprintf(", repeating every %d minutes, %d times", *interval, *count)
			}
			return ToolOutcome{
				Message: msg + ".",
				Result:  result,
				Success: true,
			}
		},
	}
}
