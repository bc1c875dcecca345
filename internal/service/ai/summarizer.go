// Package ai asks a chat-completion model for a short document summary.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	SystemPrompt     = "Behave like a helpful academic assistant"
	userPromptPrefix = "Summarize this document in 4 concise sentences:\n\n"

	DefaultMaxTokens   = 150
	DefaultModel       = "gpt-3.5-turbo"
	DefaultClaudeModel = "claude-3-5-haiku-latest"
	DefaultGeminiModel = "gemini-2.0-flash"
)

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// ErrEmptySummary is returned when the model answers without any content.
var ErrEmptySummary = errors.New("model returned an empty summary")

// Summarizer produces a summary for extracted document text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Config selects and configures the provider behind a Summarizer.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int64
}

// UserPrompt embeds the full document text after the fixed instruction.
func UserPrompt(text string) string {
	return userPromptPrefix + text
}

// New builds the Summarizer for cfg.Provider. An empty provider means openai,
// and an empty model means the provider's default model.
func New(ctx context.Context, cfg Config) (Summarizer, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = DefaultModelFor(provider)
	}

	switch provider {
	case "", ProviderOpenAI:
		return NewOpenAISummarizer(cfg), nil
	case ProviderClaude:
		return newClaudeSummarizer(ctx, cfg)
	case ProviderGemini:
		return newGeminiSummarizer(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}

// DefaultModelFor returns the model used when none is configured.
func DefaultModelFor(provider string) string {
	switch provider {
	case ProviderClaude:
		return DefaultClaudeModel
	case ProviderGemini:
		return DefaultGeminiModel
	default:
		return DefaultModel
	}
}

func cleanSummary(content string) (string, error) {
	summary := strings.TrimSpace(content)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
