package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/chat"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// ConversationHandler handles conversation management requests
type ConversationHandler struct {
	svc *chat.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(svc *chat.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// RegisterRoutes registers conversation routes on the authenticated API router
func (h *ConversationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{user_id}/conversations", h.ListConversations).Methods("GET")
	r.HandleFunc("/{user_id}/conversations", h.CreateConversation).Methods("POST")
	r.HandleFunc("/{user_id}/conversations/{conversation_id}", h.GetConversation).Methods("GET")
	r.HandleFunc("/{user_id}/conversations/{conversation_id}", h.DeleteConversation).Methods("DELETE")
	r.HandleFunc("/{user_id}/conversations/{conversation_id}/messages", h.AddMessage).Methods("POST")
}

// CreateConversationRequest represents a create conversation request
type CreateConversationRequest struct {
	Title *string `json:"title,omitempty"`
}

// AddMessageRequest represents a request to append a message without
// running the agent
type AddMessageRequest struct {
	Role    models.MessageRole `json:"role" validate:"required,message_role"`
	Content string             `json:"content"`
}

// ConversationListResponse represents the response for listing conversations
type ConversationListResponse struct {
	Conversations []*models.Conversation `json:"conversations"`
	Count         int                    `json:"count"`
}

// ConversationDetailResponse is a conversation with its full message history
type ConversationDetailResponse struct {
	*models.Conversation
	Messages []*models.Message `json:"messages"`
}

// respondConversationError maps chat service errors onto HTTP statuses.
// Missing and foreign conversations are deliberately distinct here,
// unlike tasks.
func respondConversationError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
	case errors.Is(err, chat.ErrConversationForbidden):
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Conversation belongs to another user")
	case errors.Is(err, chat.ErrInvalidMessage):
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", err.Error())
	default:
		return false
	}
	return true
}

// ListConversations lists the user's conversations, most recently active first
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	convs, err := h.svc.ListConversations(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list conversations")
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}

	respondJSON(w, http.StatusOK, ConversationListResponse{Conversations: convs, Count: len(convs)})
}

// CreateConversation creates an empty conversation
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = sanitizeTextPtr(req.Title)

	conv, err := h.svc.CreateConversation(r.Context(), userID, req.Title)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create conversation")
		return
	}

	respondJSON(w, http.StatusCreated, conv)
}

// GetConversation returns a conversation with its message history
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	convID, ok := pathUUID(w, r, "conversation_id")
	if !ok {
		return
	}

	conv, messages, err := h.svc.GetConversation(r.Context(), userID, convID)
	if err != nil {
		if !respondConversationError(w, err) {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load conversation")
		}
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	respondJSON(w, http.StatusOK, ConversationDetailResponse{Conversation: conv, Messages: messages})
}

// DeleteConversation removes a conversation and its messages
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	convID, ok := pathUUID(w, r, "conversation_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteConversation(r.Context(), userID, convID); err != nil {
		if !respondConversationError(w, err) {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete conversation")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMessage appends a message to a conversation without invoking the agent
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}
	convID, ok := pathUUID(w, r, "conversation_id")
	if !ok {
		return
	}

	var req AddMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Role must be 'user', 'assistant', or 'system'")
		return
	}
	req.Content = validation.SanitizeText(req.Content)

	msg, err := h.svc.AddMessage(r.Context(), userID, convID, req.Role, req.Content)
	if err != nil {
		if !respondConversationError(w, err) {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to add message")
		}
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}
