package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Fixed user-facing messages for the degraded paths. GenerateAnswer never
// surfaces a raw provider error to the end user.
const (
	// NoContextMessage is returned when retrieval produced no documents;
	// the LLM is not called at all in that case.
	NoContextMessage = "I couldn't find any relevant information in the knowledge base to answer your question. Try rephrasing, or contact support directly."

	// busyMessage covers provider rate limiting (HTTP 429).
	busyMessage = "The assistant is experiencing high demand right now. Please try again in a moment."

	// authMessage covers provider authentication failures (HTTP 401).
	authMessage = "The assistant can't reach the language model due to an authentication issue. Please contact an administrator."

	// fallbackMessage covers every other provider failure, including empty
	// responses.
	fallbackMessage = "I'm sorry, I wasn't able to generate an answer right now. Please try again."
)

// defaultSystemPrompt instructs the model to stay grounded in the supplied
// context.
const defaultSystemPrompt = `You are a helpful assistant answering questions from a knowledge base.
Use ONLY the provided context to answer. If the context does not contain
enough information to answer confidently, say so explicitly. Be concise.
When helpful, mention which source a statement came from.`

// ChatClient is the chat-completion surface of the LLM provider.
// *openai.Client satisfies it; tests substitute a scripted fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config tunes prompt construction and the provider call.
type Config struct {
	// Model is the chat model name (e.g. "gpt-4o-mini").
	Model string

	// MaxTokens bounds the response length.
	MaxTokens int

	// Temperature controls response randomness.
	Temperature float32

	// SystemPrompt overrides the default grounding instructions when set.
	SystemPrompt string

	// ContextWindow is the character budget for the packed context.
	ContextWindow int

	// MaxContextDocs caps how many retrieved documents are considered.
	MaxContextDocs int
}

// Generator builds grounded prompts and invokes the LLM.
type Generator struct {
	// llm is the chat-completion client.
	llm ChatClient

	// cfg holds the resolved generation settings.
	cfg Config

	// log records degraded paths; errors never reach the caller.
	log *slog.Logger
}

// NewGenerator constructs a Generator, applying defaults for unset config.
func NewGenerator(llm ChatClient, cfg Config, log *slog.Logger) (*Generator, error) {
	if llm == nil {
		return nil, fmt.Errorf("answer: llm client must not be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("answer: model name is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 4000
	}
	if cfg.MaxContextDocs <= 0 {
		cfg.MaxContextDocs = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{llm: llm, cfg: cfg, log: log}, nil
}

// GenerateAnswer answers query grounded in docs. It always returns a
// user-facing string: no documents yields the fixed no-context message
// without touching the LLM, and every provider failure degrades into a
// fixed message instead of an error.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, docs []DocumentContext) string {
	if len(docs) == 0 {
		return NoContextMessage
	}
	if len(docs) > g.cfg.MaxContextDocs {
		docs = byScore(docs)[:g.cfg.MaxContextDocs]
	}

	contextText := BuildContext(docs, g.cfg.ContextWindow)
	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, query)

	resp, err := g.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return g.degrade(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		g.log.Warn("answer: provider returned empty response", slog.String("model", g.cfg.Model))
		return fallbackMessage
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// degrade maps a provider error onto its fixed user-facing message.
func (g *Generator) degrade(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			g.log.Warn("answer: provider rate limited", slog.String("error", err.Error()))
			return busyMessage
		case http.StatusUnauthorized:
			g.log.Error("answer: provider authentication failed", slog.String("error", err.Error()))
			return authMessage
		}
	}
	g.log.Error("answer: generation failed", slog.String("error", err.Error()))
	return fallbackMessage
}
