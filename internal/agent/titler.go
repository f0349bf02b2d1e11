package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/models"
)

const (
	// DefaultTitleModel is the model used for title generation. Titles
	// are short and low stakes, so a cheaper model is enough.
	DefaultTitleModel = "gpt-4o-mini"
	// MaxGeneratedTitleLength caps stored conversation titles, in
	// characters
	MaxGeneratedTitleLength = 100

	titleSystemPrompt = "You summarize conversations into short titles. " +
		"Respond with only the title, at most six words, no surrounding quotes."
)

// TitleGenerator produces conversation titles from message history.
type TitleGenerator struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewTitleGenerator creates a title generator. Model and base URL fall
// back to package defaults when unset.
func NewTitleGenerator(cfg Config, logger *zap.Logger) *TitleGenerator {
	model := cfg.Model
	if model == "" {
		model = DefaultTitleModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &TitleGenerator{
		client: client,
		model:  model,
		logger: logger,
	}
}

// GenerateTitle summarizes the conversation into a short title.
func (g *TitleGenerator) GenerateTitle(ctx context.Context, history []*models.Message) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("cannot title an empty conversation")
	}

	var prompt strings.Builder
	prompt.WriteString("Generate a title for the following conversation between a user and a task management assistant.\n\nConversation:\n")
	for _, msg := range history {
		prompt.WriteString(string(msg.Role))
		prompt.WriteString(": ")
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(titleSystemPrompt),
			openai.UserMessage(prompt.String()),
		},
		MaxTokens: openai.Int(30),
	}

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	title := CleanTitle(resp.Choices[0].Message.Content)
	if title == "" {
		return "", fmt.Errorf("model returned an empty title")
	}

	g.logger.Debug("conversation_title_generated",
		zap.String("model", g.model),
		zap.Int("history_length", len(history)),
	)

	return title, nil
}

// CleanTitle normalizes model output into a storable title: quotes and
// surrounding whitespace stripped, length capped.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'")
	title = strings.TrimSpace(title)
	if idx := strings.IndexByte(title, '\n'); idx != -1 {
		title = strings.TrimSpace(title[:idx])
	}
	if runes := []rune(title); len(runes) > MaxGeneratedTitleLength {
		title = strings.TrimSpace(string(runes[:MaxGeneratedTitleLength]))
	}
	return title
}
