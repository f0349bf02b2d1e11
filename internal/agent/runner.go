// Package agent implements the tool-calling loop that turns natural
// language into task operations. The loop is stateless per invocation:
// it receives the full conversation history and an authenticated user
// identity on every run, and hands back the final reply plus a trace
// of every tool invoked.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/models"
)

const (
	// DefaultModel is the default completion model
	DefaultModel = "gpt-4o"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultMaxTurns bounds the number of completion rounds per run
	DefaultMaxTurns = 10
	// DefaultTimeout is the per-request timeout for API calls
	DefaultTimeout = 60 * time.Second
)

// TraceCall records one tool call emitted by the model.
type TraceCall struct {
	ID        string
	Name      string
	Arguments string
}

// TraceOutput records the execution result for a tool call, keyed by
// the call's correlation ID.
type TraceOutput struct {
	Result  map[string]any
	Success bool
}

// RunResult carries the final reply and the raw invocation trace.
type RunResult struct {
	FinalOutput string
	Calls       []TraceCall
	Outputs     map[string]TraceOutput
}

// Agent runs the task management loop against a completion API.
// Configuration is immutable after construction.
type Agent struct {
	client   openai.Client
	model    string
	maxTurns int
	registry *Registry
	logger   *zap.Logger
}

// Config holds agent construction options. Zero values fall back to
// the package defaults.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxTurns int
}

// New creates an agent over the given tool registry.
func New(cfg Config, registry *Registry, logger *zap.Logger) *Agent {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &Agent{
		client:   client,
		model:    cfg.Model,
		maxTurns: cfg.MaxTurns,
		registry: registry,
		logger:   logger,
	}
}

// historyToMessages converts stored conversation messages into
// completion message params, prefixed by the system prompt.
func historyToMessages(history []*models.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(SystemPrompt))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// Run executes the loop with the full ordered history. The userID is
// threaded into every tool call; the model cannot act as anyone else.
// Returns ErrMaxTurnsExceeded when the turn budget runs out before a
// final text reply, and *UpstreamError on completion API failures.
func (a *Agent) Run(ctx context.Context, userID uuid.UUID, history []*models.Message) (*RunResult, error) {
	messages := historyToMessages(history)
	result := &RunResult{Outputs: make(map[string]TraceOutput)}

	a.logger.Info("agent_run_start",
		zap.String("user_id", userID.String()),
		zap.Int("history_count", len(history)))

	for turn := 0; turn < a.maxTurns; turn++ {
		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(a.model),
			Messages: messages,
			Tools:    a.registry.Tools(),
		})
		if err != nil {
			a.logger.Error("agent_completion_failed",
				zap.String("user_id", userID.String()),
				zap.Int("turn", turn),
				zap.Error(err))
			return result, &UpstreamError{Err: err}
		}
		if len(resp.Choices) == 0 {
			return result, &UpstreamError{Err: ErrNoChoices}
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result.FinalOutput = msg.Content
			a.logger.Info("agent_run_complete",
				zap.String("user_id", userID.String()),
				zap.Int("turns", turn+1),
				zap.Int("tool_call_count", len(result.Calls)),
				zap.Int("response_length", len(result.FinalOutput)))
			return result, nil
		}

		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			result.Calls = append(result.Calls, TraceCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})

			outcome := a.invoke(ctx, userID, call.Function.Name, call.Function.Arguments)
			result.Outputs[call.ID] = TraceOutput{
				Result:  outcome.Result,
				Success: outcome.Success,
			}
			messages = append(messages, openai.ToolMessage(outcome.Message, call.ID))
		}
	}

	a.logger.Warn("agent_max_turns_exceeded",
		zap.String("user_id", userID.String()),
		zap.Int("max_turns", a.maxTurns))
	return result, ErrMaxTurnsExceeded
}

// invoke executes one tool call. Unknown tools and malformed argument
// payloads become failed outcomes, never errors.
func (a *Agent) invoke(ctx context.Context, userID uuid.UUID, name, arguments string) ToolOutcome {
	def := a.registry.Lookup(name)
	if def == nil {
		a.logger.Warn("agent_unknown_tool",
			zap.String("user_id", userID.String()),
			zap.String("tool", name))
		return ToolOutcome{
			Message: fmt.Sprintf("Error: unknown tool %q", name),
			Result: map[string]any{
				"success": false,
				"error": map[string]any{
					"code":    "UNKNOWN_ERROR",
					"message": fmt.Sprintf("unknown tool %q", name),
				},
			},
			Success: false,
		}
	}

	params := ParseToolArguments(arguments)
	return def.Handler(ctx, userID, params)
}

// ParseToolArguments decodes a tool argument payload. Malformed
// payloads degrade to an empty parameter set.
func ParseToolArguments(arguments string) map[string]any {
	params := make(map[string]any)
	if arguments == "" {
		return params
	}
	if err := json.Unmarshal([]byte(arguments), &params); err != nil {
		return make(map[string]any)
	}
	return params
}

// IsUpstreamError reports whether err originated from the completion
// API rather than local processing.
func IsUpstreamError(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
