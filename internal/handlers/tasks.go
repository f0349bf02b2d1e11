package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/tasks"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// TaskHandler handles task CRUD requests
type TaskHandler struct {
	svc *tasks.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(svc *tasks.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// RegisterRoutes registers task routes on the authenticated API router
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{user_id}/tasks", h.ListTasks).Methods("GET")
	r.HandleFunc("/{user_id}/tasks", h.CreateTask).Methods("POST")
	r.HandleFunc("/{user_id}/tasks/{task_id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{user_id}/tasks/{task_id}", h.UpdateTask).Methods("PUT")
	r.HandleFunc("/{user_id}/tasks/{task_id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{user_id}/tasks/{task_id}/complete", h.CompleteTask).Methods("PATCH")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// UpdateTaskRequest represents an update task request. Omitted fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TaskListResponse represents the response for listing tasks
type TaskListResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Count int            `json:"count"`
}

// respondOpError maps a service error onto an HTTP status.
func respondOpError(w http.ResponseWriter, err error) {
	opErr := tasks.AsOpError(err)
	switch opErr.Code {
	case tasks.CodeValidation:
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", opErr.Message)
	case tasks.CodeTaskNotFound:
		respondJSONError(w, http.StatusNotFound, "Not Found", opErr.Message)
	case tasks.CodeAuthorization:
		respondJSONError(w, http.StatusForbidden, "Forbidden", opErr.Message)
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", opErr.Message)
	}
}

// ListTasks lists all tasks owned by the authenticated user
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	taskList, err := h.svc.ListTasks(r.Context(), userID)
	if err != nil {
		respondOpError(w, err)
		return
	}
	if taskList == nil {
		taskList = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, TaskListResponse{Tasks: taskList, Count: len(taskList)})
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = validation.SanitizeText(req.Title)
	req.Description = sanitizeTextPtr(req.Description)

	task, err := h.svc.CreateTask(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask returns a single task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "task_id")
	if !ok {
		return
	}

	task, err := h.svc.GetTask(r.Context(), userID, taskID)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask updates a task's title and/or description
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "task_id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = sanitizeTextPtr(req.Title)
	req.Description = sanitizeTextPtr(req.Description)

	task, err := h.svc.UpdateTask(r.Context(), userID, taskID, req.Title, req.Description)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "task_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(r.Context(), userID, taskID); err != nil {
		respondOpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask toggles a task's completion state
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "task_id")
	if !ok {
		return
	}

	task, err := h.svc.ToggleComplete(r.Context(), userID, taskID)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}
