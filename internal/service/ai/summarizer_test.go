package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestOpenAISummarizerSendsPrompt(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  Four sentences about the doc.  \n")))
	}))
	defer server.Close()

	s := NewOpenAISummarizer(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
	summary, err := s.Summarize(context.Background(), "Body of the document.")
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if summary != "Four sentences about the doc." {
		t.Fatalf("unexpected summary: %q", summary)
	}

	if got.Model != DefaultModel {
		t.Fatalf("expected model %s, got %s", DefaultModel, got.Model)
	}
	if got.MaxTokens != DefaultMaxTokens {
		t.Fatalf("expected max_tokens %d, got %d", DefaultMaxTokens, got.MaxTokens)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != SystemPrompt {
		t.Fatalf("unexpected system message: %+v", got.Messages[0])
	}
	wantUser := "Summarize this document in 4 concise sentences:\n\nBody of the document."
	if got.Messages[1].Role != "user" || got.Messages[1].Content != wantUser {
		t.Fatalf("unexpected user message: %+v", got.Messages[1])
	}
}

func TestOpenAISummarizerDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	s := NewOpenAISummarizer(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
	if _, err := s.Summarize(context.Background(), "text"); err == nil {
		t.Fatalf("expected error from failing endpoint")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
}

func TestOpenAISummarizerEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("   ")))
	}))
	defer server.Close()

	s := NewOpenAISummarizer(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
	if _, err := s.Summarize(context.Background(), "text"); !errors.Is(err, ErrEmptySummary) {
		t.Fatalf("expected ErrEmptySummary, got %v", err)
	}
}

type fakeChatModel struct {
	reply     *schema.Message
	err       error
	input     []*schema.Message
	maxTokens *int
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.maxTokens = model.GetCommonOptions(&model.Options{}, opts...).MaxTokens
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestEinoSummarizer(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("\tA short summary.\n", nil)}
	s := NewEinoSummarizer(fake, 0)

	summary, err := s.Summarize(context.Background(), "doc text")
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if summary != "A short summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if fake.maxTokens == nil || *fake.maxTokens != DefaultMaxTokens {
		t.Fatalf("expected max tokens option %d, got %v", DefaultMaxTokens, fake.maxTokens)
	}
	if len(fake.input) != 2 || fake.input[0].Role != schema.System || fake.input[1].Role != schema.User {
		t.Fatalf("unexpected prompt messages: %+v", fake.input)
	}
	if fake.input[1].Content != UserPrompt("doc text") {
		t.Fatalf("unexpected user prompt: %q", fake.input[1].Content)
	}
}

func TestEinoSummarizerErrors(t *testing.T) {
	upstream := errors.New("rate limited")
	s := NewEinoSummarizer(&fakeChatModel{err: upstream}, 150)
	if _, err := s.Summarize(context.Background(), "x"); !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}

	s = NewEinoSummarizer(&fakeChatModel{reply: schema.AssistantMessage("", nil)}, 150)
	if _, err := s.Summarize(context.Background(), "x"); !errors.Is(err, ErrEmptySummary) {
		t.Fatalf("expected ErrEmptySummary, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "mistral"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	s, err := New(context.Background(), Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := s.(*OpenAISummarizer); !ok {
		t.Fatalf("expected openai summarizer by default, got %T", s)
	}
}

func TestDefaultModelPerProvider(t *testing.T) {
	cases := map[string]string{
		"":             DefaultModel,
		ProviderOpenAI: DefaultModel,
		ProviderClaude: DefaultClaudeModel,
		ProviderGemini: DefaultGeminiModel,
	}
	for provider, want := range cases {
		if got := DefaultModelFor(provider); got != want {
			t.Fatalf("DefaultModelFor(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestNewOpenAIWithoutModelUsesDefault(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Summary.")))
	}))
	defer srv.Close()

	s, err := New(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.Summarize(context.Background(), "text"); err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got.Model != DefaultModel {
		t.Fatalf("expected model %s, got %s", DefaultModel, got.Model)
	}
}
