package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/tasks"
)

// ReminderHandler handles reminder requests
type ReminderHandler struct {
	svc *tasks.Service
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(svc *tasks.Service) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

// RegisterRoutes registers reminder routes on the authenticated API router
func (h *ReminderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{user_id}/reminders", h.CreateReminder).Methods("POST")
	r.HandleFunc("/{user_id}/reminders", h.ListReminders).Methods("GET")
	r.HandleFunc("/{user_id}/reminders/due", h.DueReminders).Methods("GET")
	r.HandleFunc("/{user_id}/reminders/{reminder_id}", h.UpdateReminder).Methods("PUT")
	r.HandleFunc("/{user_id}/reminders/{reminder_id}", h.DeleteReminder).Methods("DELETE")
	r.HandleFunc("/{user_id}/reminders/{reminder_id}/process", h.ProcessReminder).Methods("POST")
}

// ReminderRequest represents a create or update reminder request
type ReminderRequest struct {
	TaskID                uuid.UUID `json:"task_id"`
	RemindAt              time.Time `json:"remind_at"`
	RepeatIntervalMinutes *int      `json:"repeat_interval_minutes,omitempty"`
	RepeatCount           *int      `json:"repeat_count,omitempty"`
}

func (req *ReminderRequest) toParams() tasks.ScheduleReminderParams {
	return tasks.ScheduleReminderParams{
		TaskID:                req.TaskID,
		RemindAt:              req.RemindAt,
		RepeatIntervalMinutes: req.RepeatIntervalMinutes,
		RepeatCount:           req.RepeatCount,
	}
}

// pathReminderID parses the reminder_id path variable
func pathReminderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["reminder_id"], 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Invalid reminder_id in path")
		return 0, false
	}
	return id, true
}

// CreateReminder schedules a reminder for one of the user's tasks
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	var req ReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reminder, err := h.svc.ScheduleReminder(r.Context(), userID, req.toParams())
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, reminder)
}

// ListReminders lists all of the user's reminders with task details
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	reminders, err := h.svc.ListReminders(r.Context(), userID)
	if err != nil {
		respondOpError(w, err)
		return
	}
	if reminders == nil {
		reminders = []*models.ReminderWithTask{}
	}

	respondJSON(w, http.StatusOK, reminders)
}

// DueReminders lists active reminders whose remind_at has passed
func (h *ReminderHandler) DueReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	reminders, err := h.svc.DueReminders(r.Context(), userID, time.Now())
	if err != nil {
		respondOpError(w, err)
		return
	}
	if reminders == nil {
		reminders = []*models.ReminderWithTask{}
	}

	respondJSON(w, http.StatusOK, reminders)
}

// UpdateReminder replaces a reminder's schedule
func (h *ReminderHandler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	reminderID, ok := pathReminderID(w, r)
	if !ok {
		return
	}

	var req ReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reminder, err := h.svc.UpdateReminder(r.Context(), userID, reminderID, req.toParams())
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}

// DeleteReminder removes a reminder
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	reminderID, ok := pathReminderID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteReminder(r.Context(), userID, reminderID); err != nil {
		respondOpError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProcessReminder records one delivery of a due reminder, advancing or
// deactivating it according to its repeat schedule
func (h *ReminderHandler) ProcessReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	reminderID, ok := pathReminderID(w, r)
	if !ok {
		return
	}

	reminder, err := h.svc.ProcessReminder(r.Context(), userID, reminderID)
	if err != nil {
		respondOpError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}
