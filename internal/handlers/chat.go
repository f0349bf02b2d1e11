package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/agent"
	logpkg "github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/services/chat"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// ChatProcessor runs one conversational turn. Satisfied by the chat
// service; an interface here keeps the handler testable.
type ChatProcessor interface {
	ProcessMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*chat.Response, error)
}

// ChatHandler handles the conversational endpoint
type ChatHandler struct {
	svc    ChatProcessor
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc ChatProcessor, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the chat route on the authenticated API router
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{user_id}/chat", h.Chat).Methods("POST")
}

// ChatRequest represents a chat turn request. conversation_id is
// omitted to start a new conversation.
type ChatRequest struct {
	Message        string     `json:"message"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// Chat runs one turn of the conversation through the agent
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUserPath(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = validation.SanitizeText(req.Message)

	resp, err := h.svc.ProcessMessage(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		h.respondChatError(w, userID, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondChatError maps chat turn failures onto HTTP statuses. Agent
// and upstream failures never leak details to the client; the specific
// error is only logged.
func (h *ChatHandler) respondChatError(w http.ResponseWriter, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
	case errors.Is(err, chat.ErrConversationForbidden):
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Conversation belongs to another user")
	case errors.Is(err, chat.ErrInvalidMessage):
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", err.Error())
	case errors.Is(err, agent.ErrMaxTurnsExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The agent could not complete the request in time")
	case agent.IsUpstreamError(err):
		h.logger.Error("chat_upstream_failed",
			zap.String("user_id", logpkg.SanitizeUserID(userID.String())),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The language model service is unavailable")
	default:
		h.logger.Error("chat_turn_failed",
			zap.String("user_id", logpkg.SanitizeUserID(userID.String())),
			zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process message")
	}
}
