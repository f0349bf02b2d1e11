package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/models"
)

// fakeConvRepo is an in-memory ConversationRepositoryInterface.
type fakeConvRepo struct {
	convs    map[uuid.UUID]*models.Conversation
	messages map[uuid.UUID][]*models.Message
	failWith error
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:    make(map[uuid.UUID]*models.Conversation),
		messages: make(map[uuid.UUID][]*models.Message),
	}
}

func (f *fakeConvRepo) Create(_ context.Context, conv *models.Conversation) error {
	if f.failWith != nil {
		return f.failWith
	}
	conv.CreatedAt = time.Now().UTC()
	conv.UpdatedAt = conv.CreatedAt
	stored := *conv
	f.convs[conv.ID] = &stored
	return nil
}

func (f *fakeConvRepo) GetByID(_ context.Context, userID, convID uuid.UUID) (*models.Conversation, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	conv, ok := f.convs[convID]
	if !ok || conv.UserID != userID {
		return nil, fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeConvRepo) Exists(_ context.Context, convID uuid.UUID) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	_, ok := f.convs[convID]
	return ok, nil
}

func (f *fakeConvRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*models.Conversation
	for _, conv := range f.convs {
		if conv.UserID == userID {
			copied := *conv
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConvRepo) UpdateTitle(_ context.Context, userID, convID uuid.UUID, title string) error {
	conv, ok := f.convs[convID]
	if !ok || conv.UserID != userID {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	conv.Title = &title
	return nil
}

func (f *fakeConvRepo) Delete(_ context.Context, userID, convID uuid.UUID) error {
	conv, ok := f.convs[convID]
	if !ok || conv.UserID != userID {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}
	delete(f.convs, convID)
	delete(f.messages, convID)
	return nil
}

func (f *fakeConvRepo) AppendMessage(_ context.Context, msg *models.Message) error {
	if f.failWith != nil {
		return f.failWith
	}
	msg.CreatedAt = time.Now().UTC()
	stored := *msg
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], &stored)
	if conv, ok := f.convs[msg.ConversationID]; ok {
		conv.UpdatedAt = stored.CreatedAt
	}
	return nil
}

func (f *fakeConvRepo) ListMessages(_ context.Context, convID uuid.UUID) ([]*models.Message, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]*models.Message, 0, len(f.messages[convID]))
	for _, msg := range f.messages[convID] {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}

// fakeRunner records the history it was given and returns a canned
// result or error.
type fakeRunner struct {
	result      *agent.RunResult
	err         error
	lastHistory []*models.Message
	lastUserID  uuid.UUID
}

func (f *fakeRunner) Run(_ context.Context, userID uuid.UUID, history []*models.Message) (*agent.RunResult, error) {
	f.lastUserID = userID
	f.lastHistory = history
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeTitles records title job enqueues.
type fakeTitles struct {
	enqueued []uuid.UUID
	err      error
}

func (f *fakeTitles) EnqueueTitleJob(_ context.Context, _, conversationID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, conversationID)
	return nil
}

func okResult(reply string) *agent.RunResult {
	return &agent.RunResult{
		FinalOutput: reply,
		Calls:       []agent.TraceCall{{ID: "call_1", Name: "add_task_tool", Arguments: `{"title":"Buy milk"}`}},
		Outputs: map[string]agent.TraceOutput{
			"call_1": {Result: map[string]any{"success": true}, Success: true},
		},
	}
}

func TestProcessMessageNewConversation(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	runner := &fakeRunner{result: okResult("Created task 'Buy milk' (ID: abc)")}
	titles := &fakeTitles{}
	svc := NewService(repo, runner, titles, zap.NewNop())
	userID := uuid.New()

	resp, err := svc.ProcessMessage(context.Background(), userID, nil, "Add a task called 'Buy milk'")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if resp.ConversationID == uuid.Nil {
		t.Error("response should carry the new conversation id")
	}
	if resp.AssistantMessage != "Created task 'Buy milk' (ID: abc)" {
		t.Errorf("assistant message = %q", resp.AssistantMessage)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ToolName != "add_task_tool" || !resp.ToolCalls[0].Success {
		t.Errorf("unexpected tool call trace: %+v", resp.ToolCalls)
	}

	// Both messages persisted in order.
	msgs := repo.messages[resp.ConversationID]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("messages persisted in wrong order: %v, %v", msgs[0].Role, msgs[1].Role)
	}

	// New conversations get a background title job.
	if len(titles.enqueued) != 1 || titles.enqueued[0] != resp.ConversationID {
		t.Errorf("expected title job for new conversation, got %v", titles.enqueued)
	}
}

func TestProcessMessageContinuesConversation(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	runner := &fakeRunner{result: okResult("Done.")}
	titles := &fakeTitles{}
	svc := NewService(repo, runner, titles, zap.NewNop())
	userID := uuid.New()

	first, err := svc.ProcessMessage(context.Background(), userID, nil, "Add a task called 'Buy milk'")
	if err != nil {
		t.Fatalf("first ProcessMessage: %v", err)
	}

	second, err := svc.ProcessMessage(context.Background(), userID, &first.ConversationID, "Mark it as complete")
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Error("follow-up turn should reuse the conversation")
	}

	// The runner saw the prior exchange plus the new message.
	if len(runner.lastHistory) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(runner.lastHistory))
	}
	if runner.lastHistory[2].Content != "Mark it as complete" {
		t.Errorf("new message should be last in history, got %q", runner.lastHistory[2].Content)
	}
	if runner.lastUserID != userID {
		t.Error("runner should receive the authenticated user identity")
	}

	// Only the first turn enqueues a title job.
	if len(titles.enqueued) != 1 {
		t.Errorf("expected 1 title job, got %d", len(titles.enqueued))
	}
}

func TestProcessMessageUserMessageSurvivesAgentFailure(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	runner := &fakeRunner{err: &agent.UpstreamError{Err: errors.New("oracle down")}}
	svc := NewService(repo, runner, nil, zap.NewNop())
	userID := uuid.New()

	conv := &models.Conversation{ID: uuid.New(), UserID: userID}
	if err := repo.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.ProcessMessage(context.Background(), userID, &conv.ID, "hello")
	if !agent.IsUpstreamError(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	// The inbound message was committed before the agent ran.
	msgs := repo.messages[conv.ID]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected persisted message: %+v", msgs[0])
	}
}

func TestProcessMessageConversationNotFoundVsForbidden(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	svc := NewService(repo, &fakeRunner{result: okResult("hi")}, nil, zap.NewNop())
	owner := uuid.New()
	intruder := uuid.New()

	conv := &models.Conversation{ID: uuid.New(), UserID: owner}
	if err := repo.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Foreign conversation is forbidden, not hidden.
	_, err := svc.ProcessMessage(context.Background(), intruder, &conv.ID, "hello")
	if !errors.Is(err, ErrConversationForbidden) {
		t.Errorf("expected ErrConversationForbidden, got %v", err)
	}

	// A missing conversation is not found.
	missing := uuid.New()
	_, err = svc.ProcessMessage(context.Background(), intruder, &missing, "hello")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestProcessMessageValidation(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	svc := NewService(repo, &fakeRunner{result: okResult("hi")}, nil, zap.NewNop())

	_, err := svc.ProcessMessage(context.Background(), uuid.New(), nil, "   ")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("blank message: expected ErrInvalidMessage, got %v", err)
	}

	_, err = svc.ProcessMessage(context.Background(), uuid.New(), nil, strings.Repeat("a", models.MaxMessageContentLength+1))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("oversized message: expected ErrInvalidMessage, got %v", err)
	}

	// No conversation should have been created for invalid input.
	if len(repo.convs) != 0 {
		t.Errorf("conversation created despite validation failure")
	}
}

func TestProcessMessageLengthLimitCountsCharacters(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	svc := NewService(repo, &fakeRunner{result: okResult("hi")}, nil, zap.NewNop())

	// Max-length CJK content is three bytes per character and must
	// still be accepted.
	_, err := svc.ProcessMessage(context.Background(), uuid.New(), nil, strings.Repeat("日", models.MaxMessageContentLength))
	if err != nil {
		t.Fatalf("max-length multibyte message rejected: %v", err)
	}

	_, err = svc.ProcessMessage(context.Background(), uuid.New(), nil, strings.Repeat("日", models.MaxMessageContentLength+1))
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("oversized multibyte message: expected ErrInvalidMessage, got %v", err)
	}
}

func TestProcessMessageTitleJobFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	titles := &fakeTitles{err: errors.New("broker unavailable")}
	svc := NewService(repo, &fakeRunner{result: okResult("hi")}, titles, zap.NewNop())

	resp, err := svc.ProcessMessage(context.Background(), uuid.New(), nil, "hello")
	if err != nil {
		t.Fatalf("title enqueue failure must not fail the turn: %v", err)
	}
	if resp.AssistantMessage != "hi" {
		t.Errorf("assistant message = %q", resp.AssistantMessage)
	}
}

func TestGetConversationDistinguishesOutcomes(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	svc := NewService(repo, &fakeRunner{}, nil, zap.NewNop())
	owner := uuid.New()

	conv := &models.Conversation{ID: uuid.New(), UserID: owner}
	if err := repo.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.AppendMessage(context.Background(), &models.Message{
		ID: uuid.New(), ConversationID: conv.ID, Role: models.RoleUser, Content: "hi",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, msgs, err := svc.GetConversation(context.Background(), owner, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.ID != conv.ID || len(msgs) != 1 {
		t.Errorf("unexpected conversation payload: %v, %d messages", got.ID, len(msgs))
	}

	_, _, err = svc.GetConversation(context.Background(), uuid.New(), conv.ID)
	if !errors.Is(err, ErrConversationForbidden) {
		t.Errorf("expected ErrConversationForbidden, got %v", err)
	}
	missing := uuid.New()
	_, _, err = svc.GetConversation(context.Background(), owner, missing)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestAddMessageValidatesRole(t *testing.T) {
	t.Parallel()
	repo := newFakeConvRepo()
	svc := NewService(repo, &fakeRunner{}, nil, zap.NewNop())
	userID := uuid.New()

	conv := &models.Conversation{ID: uuid.New(), UserID: userID}
	if err := repo.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.AddMessage(context.Background(), userID, conv.ID, "oracle", "hi"); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("invalid role: expected ErrInvalidMessage, got %v", err)
	}

	msg, err := svc.AddMessage(context.Background(), userID, conv.ID, models.RoleUser, "hi")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.ConversationID != conv.ID {
		t.Errorf("message bound to wrong conversation: %v", msg.ConversationID)
	}
}
