package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kbase-ai/kbq-go/internal/answer"
	"github.com/kbase-ai/kbq-go/internal/docstore"
	"github.com/kbase-ai/kbq-go/internal/embedder"
	"github.com/kbase-ai/kbq-go/internal/querylog"
	"github.com/kbase-ai/kbq-go/internal/vecindex"
)

// buildIndex constructs the Qdrant index client from environment variables.
// The vector dimension follows the embedding configuration unless
// QDRANT_DIMENSION overrides it.
func buildIndex(log *slog.Logger) (*vecindex.Index, error) {
	dim := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embedder.Backend()))
	dim = getEnvInt("QDRANT_DIMENSION", dim)

	cfg := vecindex.Config{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "kbq-knowledge"),
		Dimension:  uint64(dim),
		Distance:   getEnvOrDefault("QDRANT_DISTANCE", "cosine"),
		MaxRetries: getEnvInt("KBQ_RETRY_ATTEMPTS", 3),
		RetryDelay: time.Duration(getEnvInt("KBQ_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
	}
	ix, err := vecindex.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return ix, nil
}

// buildGenerator constructs the answer generator over the configured chat model.
func buildGenerator(log *slog.Logger) (*answer.Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for answer generation")
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("LLM_ENDPOINT"); base != "" {
		clientCfg.BaseURL = base
	}

	return answer.NewGenerator(openai.NewClientWithConfig(clientCfg), answer.Config{
		Model:          getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		MaxTokens:      getEnvInt("LLM_MAX_TOKENS", 500),
		Temperature:    getEnvFloat32("LLM_TEMPERATURE", 0.2),
		SystemPrompt:   os.Getenv("LLM_SYSTEM_PROMPT"),
		ContextWindow:  getEnvInt("KBQ_CONTEXT_WINDOW", 4000),
		MaxContextDocs: getEnvInt("KBQ_MAX_DOCUMENTS", 5),
	}, log)
}

// openQueryLog opens the query log database at its configured path.
func openQueryLog() (*querylog.SQLiteStore, error) {
	path, err := dbPath("KBQ_QUERYLOG_DB", "querylog.db")
	if err != nil {
		return nil, err
	}
	return querylog.Open(path)
}

// openDocStore opens the document store database at its configured path.
func openDocStore() (*docstore.SQLiteStore, error) {
	path, err := dbPath("KBQ_DOCUMENTS_DB", "documents.db")
	if err != nil {
		return nil, err
	}
	return docstore.Open(path)
}

// dbPath resolves a SQLite database path: env override, else ~/.kbq/<name>.
// The parent directory is created if missing.
func dbPath(envKey, name string) (string, error) {
	if p := os.Getenv(envKey); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".kbq")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or invalid.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat32 returns the env var parsed as float32, or fallback when unset or invalid.
func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
