package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAISummarizer calls the Chat Completions API once per document.
type OpenAISummarizer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAISummarizer builds a summarizer that never retries a failed call.
func NewOpenAISummarizer(cfg Config) *OpenAISummarizer {
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &OpenAISummarizer{
		client:    openai.NewClient(options...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(UserPrompt(text)),
		},
		MaxTokens: openai.Int(s.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion choices are missing: %w", ErrEmptySummary)
	}

	return cleanSummary(resp.Choices[0].Message.Content)
}
