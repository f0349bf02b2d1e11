// Package chat implements stateless conversation orchestration. All
// conversation state lives in the database and is reconstructed on
// every request, so any server instance can handle any message.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
)

var (
	// ErrConversationNotFound means no conversation exists with the
	// given ID.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationForbidden means the conversation exists but
	// belongs to another user. Unlike tasks, conversations distinguish
	// these two outcomes.
	ErrConversationForbidden = errors.New("access denied to conversation")
	// ErrInvalidMessage means the message content failed validation.
	ErrInvalidMessage = errors.New("invalid message content")
)

// AgentRunner runs the tool-calling loop over a conversation history.
type AgentRunner interface {
	Run(ctx context.Context, userID uuid.UUID, history []*models.Message) (*agent.RunResult, error)
}

// TitlePublisher enqueues background title generation for a new
// conversation. Publishing is best effort.
type TitlePublisher interface {
	EnqueueTitleJob(ctx context.Context, userID, conversationID uuid.UUID) error
}

// Response is the assembled result of one chat turn.
type Response struct {
	ConversationID   uuid.UUID        `json:"conversation_id"`
	AssistantMessage string           `json:"assistant_message"`
	ToolCalls        []agent.ToolCall `json:"tool_calls"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Service orchestrates conversation resolution, message persistence,
// and agent execution.
type Service struct {
	convs  database.ConversationRepositoryInterface
	runner AgentRunner
	titles TitlePublisher
	logger *zap.Logger
}

// NewService creates a chat service. titles may be nil when no
// background title generation is configured.
func NewService(convs database.ConversationRepositoryInterface, runner AgentRunner, titles TitlePublisher, logger *zap.Logger) *Service {
	return &Service{
		convs:  convs,
		runner: runner,
		titles: titles,
		logger: logger,
	}
}

func validateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(content) > models.MaxMessageContentLength {
		return fmt.Errorf("%w: message cannot exceed %d characters", ErrInvalidMessage, models.MaxMessageContentLength)
	}
	return nil
}

// resolveConversation verifies ownership of an existing conversation.
// A missing conversation and a foreign conversation produce distinct
// errors so the API can answer 404 versus 403.
func (s *Service) resolveConversation(ctx context.Context, userID, convID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, userID, convID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	exists, probeErr := s.convs.Exists(ctx, convID)
	if probeErr != nil {
		return nil, probeErr
	}
	if exists {
		return nil, ErrConversationForbidden
	}
	return nil, ErrConversationNotFound
}

// ProcessMessage runs one chat turn: resolve or create the
// conversation, load history, persist the inbound message, run the
// agent, persist the reply, and assemble the response. The user
// message is committed before agent execution so it survives agent
// failures.
func (s *Service) ProcessMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*Response, error) {
	if err := validateMessage(content); err != nil {
		return nil, err
	}

	isNew := conversationID == nil
	var conv *models.Conversation
	var err error
	if conversationID != nil {
		conv, err = s.resolveConversation(ctx, userID, *conversationID)
		if err != nil {
			return nil, err
		}
	} else {
		conv = &models.Conversation{
			ID:     uuid.New(),
			UserID: userID,
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	}

	s.logger.Info("chat_turn_start",
		zap.String("user_id", userID.String()),
		zap.String("conversation_id", conv.ID.String()),
		zap.Bool("is_new_conversation", isNew),
		zap.Int("message_length", len(content)))

	history, err := s.convs.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMessage := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        content,
	}
	if err := s.convs.AppendMessage(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	result, err := s.runner.Run(ctx, userID, append(history, userMessage))
	if err != nil {
		return nil, err
	}

	toolCalls := agent.ExtractToolCalls(result)
	s.logger.Info("chat_turn_agent_complete",
		zap.String("user_id", userID.String()),
		zap.String("conversation_id", conv.ID.String()),
		zap.Int("response_length", len(result.FinalOutput)),
		zap.Int("tool_call_count", len(toolCalls)))

	assistantMessage := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        result.FinalOutput,
	}
	if err := s.convs.AppendMessage(ctx, assistantMessage); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	if isNew && s.titles != nil {
		if err := s.titles.EnqueueTitleJob(ctx, userID, conv.ID); err != nil {
			s.logger.Warn("title_job_enqueue_failed",
				zap.String("conversation_id", conv.ID.String()),
				zap.Error(err))
		}
	}

	return &Response{
		ConversationID:   conv.ID,
		AssistantMessage: result.FinalOutput,
		ToolCalls:        toolCalls,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// CreateConversation creates an empty conversation, optionally with a
// caller-provided title.
func (s *Service) CreateConversation(ctx context.Context, userID uuid.UUID, title *string) (*models.Conversation, error) {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			title = nil
		} else {
			title = &trimmed
		}
	}
	conv := &models.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently
// active first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	return s.convs.GetByUserID(ctx, userID)
}

// GetConversation returns one conversation with its full message
// history.
func (s *Service) GetConversation(ctx context.Context, userID, convID uuid.UUID) (*models.Conversation, []*models.Message, error) {
	conv, err := s.resolveConversation(ctx, userID, convID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.convs.ListMessages(ctx, convID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return conv, messages, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, convID uuid.UUID) error {
	if _, err := s.resolveConversation(ctx, userID, convID); err != nil {
		return err
	}
	return s.convs.Delete(ctx, userID, convID)
}

// AddMessage appends a message to a conversation without running the
// agent. Used for importing or annotating history.
func (s *Service) AddMessage(ctx context.Context, userID, convID uuid.UUID, role models.MessageRole, content string) (*models.Message, error) {
	if err := validateMessage(content); err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrInvalidMessage, role)
	}
	if _, err := s.resolveConversation(ctx, userID, convID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
	}
	if err := s.convs.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	return msg, nil
}
