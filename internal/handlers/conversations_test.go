package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/request"
	"github.com/taskpilot/taskpilot/internal/services/chat"
)

type memConvRepo struct {
	convs    map[uuid.UUID]*models.Conversation
	messages map[uuid.UUID][]*models.Message
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{
		convs:    make(map[uuid.UUID]*models.Conversation),
		messages: make(map[uuid.UUID][]*models.Message),
	}
}

func (m *memConvRepo) Create(_ context.Context, conv *models.Conversation) error {
	stored := *conv
	m.convs[conv.ID] = &stored
	return nil
}

func (m *memConvRepo) GetByID(_ context.Context, userID, convID uuid.UUID) (*models.Conversation, error) {
	conv, ok := m.convs[convID]
	if !ok || conv.UserID != userID {
		return nil, fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	copied := *conv
	return &copied, nil
}

func (m *memConvRepo) Exists(_ context.Context, convID uuid.UUID) (bool, error) {
	_, ok := m.convs[convID]
	return ok, nil
}

func (m *memConvRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, conv := range m.convs {
		if conv.UserID == userID {
			copied := *conv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memConvRepo) UpdateTitle(_ context.Context, userID, convID uuid.UUID, title string) error {
	conv, ok := m.convs[convID]
	if !ok || conv.UserID != userID {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	conv.Title = &title
	return nil
}

func (m *memConvRepo) Delete(_ context.Context, userID, convID uuid.UUID) error {
	conv, ok := m.convs[convID]
	if !ok || conv.UserID != userID {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	delete(m.convs, convID)
	delete(m.messages, convID)
	return nil
}

func (m *memConvRepo) AppendMessage(_ context.Context, msg *models.Message) error {
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *memConvRepo) ListMessages(_ context.Context, convID uuid.UUID) ([]*models.Message, error) {
	return m.messages[convID], nil
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ uuid.UUID, _ []*models.Message) (*agent.RunResult, error) {
	return &agent.RunResult{FinalOutput: "done"}, nil
}

func newConversationRouter() (*mux.Router, *memConvRepo) {
	repo := newMemConvRepo()
	svc := chat.NewService(repo, stubRunner{}, nil, zap.NewNop())
	r := mux.NewRouter()
	NewConversationHandler(svc).RegisterRoutes(r)
	return r, repo
}

func TestConversationEndpointsDistinguishMissingFromForeign(t *testing.T) {
	t.Parallel()

	router, repo := newConversationRouter()
	owner := uuid.New()
	intruder := uuid.New()

	conv := &models.Conversation{ID: uuid.New(), UserID: owner}
	repo.convs[conv.ID] = conv

	// Foreign conversation through the intruder's own path prefix
	rec := doRequest(t, router, &request.Identity{UserID: intruder}, http.MethodGet,
		fmt.Sprintf("/%s/conversations/%s", intruder, conv.ID), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign conversation: expected 403, got %d", rec.Code)
	}

	// A conversation that does not exist at all
	rec = doRequest(t, router, &request.Identity{UserID: intruder}, http.MethodGet,
		fmt.Sprintf("/%s/conversations/%s", intruder, uuid.New()), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: expected 404, got %d", rec.Code)
	}
}

func TestConversationCreateAndList(t *testing.T) {
	t.Parallel()

	router, _ := newConversationRouter()
	userID := uuid.New()
	identity := &request.Identity{UserID: userID}

	rec := doRequest(t, router, identity, http.MethodPost,
		fmt.Sprintf("/%s/conversations", userID), map[string]any{"title": "Planning"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var conv models.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if conv.Title == nil || *conv.Title != "Planning" {
		t.Error("expected title to be stored")
	}

	rec = doRequest(t, router, identity, http.MethodGet,
		fmt.Sprintf("/%s/conversations", userID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list ConversationListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("expected 1 conversation, got %d", list.Count)
	}
}

func TestConversationMessagesEndpoint(t *testing.T) {
	t.Parallel()

	router, repo := newConversationRouter()
	userID := uuid.New()
	identity := &request.Identity{UserID: userID}

	conv := &models.Conversation{ID: uuid.New(), UserID: userID}
	repo.convs[conv.ID] = conv

	rec := doRequest(t, router, identity, http.MethodPost,
		fmt.Sprintf("/%s/conversations/%s/messages", userID, conv.ID),
		map[string]any{"role": "user", "content": "imported note"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add message: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, identity, http.MethodPost,
		fmt.Sprintf("/%s/conversations/%s/messages", userID, conv.ID),
		map[string]any{"role": "narrator", "content": "imported note"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad role: expected 422, got %d", rec.Code)
	}

	rec = doRequest(t, router, identity, http.MethodGet,
		fmt.Sprintf("/%s/conversations/%s", userID, conv.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var detail ConversationDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(detail.Messages))
	}
}

func TestConversationDelete(t *testing.T) {
	t.Parallel()

	router, repo := newConversationRouter()
	userID := uuid.New()
	identity := &request.Identity{UserID: userID}

	conv := &models.Conversation{ID: uuid.New(), UserID: userID}
	repo.convs[conv.ID] = conv

	rec := doRequest(t, router, identity, http.MethodDelete,
		fmt.Sprintf("/%s/conversations/%s", userID, conv.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, router, identity, http.MethodDelete,
		fmt.Sprintf("/%s/conversations/%s", userID, conv.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete again: expected 404, got %d", rec.Code)
	}
}
