package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// Default embedding models and dimensions per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536

	// defaultSubBatchRate is the default number of embedding sub-batches
	// submitted per second when EMBEDDING_BATCH_RPS is unset.
	defaultSubBatchRate = 2.0
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. Callers pre-configuring the vector collection should use this
// rather than hardcoding a value. EMBEDDING_DIMENSIONS always wins when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Backend returns the resolved embedding backend name from the environment.
func Backend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
}

// Model returns the embedding model that NewFromEnv would use: EMBEDDING_MODEL
// when set, otherwise the resolved backend's default. Callers that need a
// tokenizer matching the embedding vocabulary resolve it through here rather
// than reading the environment themselves.
func Model() string {
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		return model
	}
	if Backend() == "ollama" {
		return defaultOllamaModel
	}
	return defaultOpenAIModel
}

// NewFromEnv constructs a rag.Embedder from environment variables.
//
// Resolution:
//
//	EMBEDDING_PROVIDER    openai (default) or ollama
//	EMBEDDING_MODEL       overrides the backend's default model
//	EMBEDDING_DIMENSIONS  overrides the default vector size
//	EMBEDDING_API_KEY     overrides OPENAI_API_KEY for the openai backend
//	EMBEDDING_ENDPOINT    overrides the API/host URL
//	EMBEDDING_BATCH_RPS   sub-batch submission rate (default 2/s)
//
// A warning is logged when EMBEDDING_MODEL looks like a chat model rather
// than a dedicated embedding model, a common misconfiguration that produces
// broken embeddings.
func NewFromEnv(log *slog.Logger) (rag.Embedder, error) {
	if log == nil {
		log = slog.Default()
	}

	backend := Backend()
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	rps := getEnvFloat("EMBEDDING_BATCH_RPS", defaultSubBatchRate)

	switch backend {
	case "openai":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
			Model:      model,
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}, rps)

	case "ollama":
		host := os.Getenv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllama(OllamaConfig{
			Host:       host,
			Model:      model,
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOllamaDimensions),
		}, rps)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: openai, ollama", backend)
	}
}

// knownChatModelPrefixes contains name fragments identifying chat/completion
// models, which are not suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
}

// looksLikeChatModel reports whether the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// getEnvOrDefault returns the named environment variable, or fallback if it
// is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
