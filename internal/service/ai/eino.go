package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// EinoSummarizer drives any eino chat model with the summary prompt.
type EinoSummarizer struct {
	chatModel model.BaseChatModel
	maxTokens int
}

func NewEinoSummarizer(chatModel model.BaseChatModel, maxTokens int64) *EinoSummarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &EinoSummarizer{chatModel: chatModel, maxTokens: int(maxTokens)}
}

func (s *EinoSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(UserPrompt(text)),
	}

	resp, err := s.chatModel.Generate(ctx, messages, model.WithMaxTokens(s.maxTokens))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if resp == nil {
		return "", ErrEmptySummary
	}

	return cleanSummary(resp.Content)
}

func newClaudeSummarizer(ctx context.Context, cfg Config) (*EinoSummarizer, error) {
	var baseURLPtr *string
	if cfg.BaseURL != "" {
		baseURLPtr = &cfg.BaseURL
	}
	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   baseURLPtr,
		MaxTokens: int(cfg.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("init claude model: %w", err)
	}
	return NewEinoSummarizer(chatModel, cfg.MaxTokens), nil
}

func newGeminiSummarizer(ctx context.Context, cfg Config) (*EinoSummarizer, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini model: %w", err)
	}
	return NewEinoSummarizer(chatModel, cfg.MaxTokens), nil
}
