// Package config provides YAML-based configuration for kbq.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. KBQ_CONFIG environment variable
//  3. ~/.kbq/config.yaml
//  4. ./kbq.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// LLM configures the chat model used for answer generation.
	LLM LLMConfig `yaml:"llm"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Retrieval configures context assembly and search.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Chunking configures the document chunker.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retry configures the vector index retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Storage configures the local SQLite databases.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig holds answer-generation model settings.
type LLMConfig struct {
	// Model is the chat model name.
	Model string `yaml:"model"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// SystemPrompt overrides the built-in answering instructions.
	SystemPrompt string `yaml:"system_prompt"`
	// APIKey is the chat API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint overrides the chat API base URL (for compatible gateways).
	Endpoint string `yaml:"endpoint"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (openai, ollama).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// Dimension is the collection vector dimension.
	Dimension int `yaml:"dimension"`
	// Distance is the similarity metric: cosine, euclid, dot.
	Distance string `yaml:"distance"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RetrievalConfig holds search and context assembly settings.
type RetrievalConfig struct {
	// ContextWindow is the context budget in characters.
	ContextWindow int `yaml:"context_window"`
	// MaxDocuments caps the documents packed into one context.
	MaxDocuments int `yaml:"max_documents"`
	// ScoreThreshold excludes search results scoring below it.
	ScoreThreshold float32 `yaml:"score_threshold"`
	// Limit is the maximum number of search results per query.
	Limit int `yaml:"limit"`
}

// ChunkingConfig holds document chunker settings.
type ChunkingConfig struct {
	// Strategy selects the chunker: fixed_size, sentence_boundary, token_aware, semantic.
	Strategy string `yaml:"strategy"`
	// MaxChunkSize is the chunk budget in characters (tokens for token_aware).
	MaxChunkSize int `yaml:"max_chunk_size"`
	// Overlap is the overlap between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// RetryConfig holds the vector index retry policy settings.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBaseMs is the first retry delay in milliseconds; later delays double.
	BackoffBaseMs int `yaml:"backoff_base_ms"`
}

// StorageConfig holds local SQLite database paths.
type StorageConfig struct {
	// DocumentsDB is the document store path. Defaults to ~/.kbq/documents.db.
	DocumentsDB string `yaml:"documents_db"`
	// QueryLogDB is the query log path. Defaults to ~/.kbq/querylog.db.
	QueryLogDB string `yaml:"querylog_db"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"LLM_MODEL", func(c *Config) string { return c.LLM.Model }},
	{"LLM_MAX_TOKENS", func(c *Config) string { return intStr(c.LLM.MaxTokens) }},
	{"LLM_TEMPERATURE", func(c *Config) string { return float32Str(c.LLM.Temperature) }},
	{"LLM_SYSTEM_PROMPT", func(c *Config) string { return c.LLM.SystemPrompt }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.LLM.APIKey }},
	{"LLM_ENDPOINT", func(c *Config) string { return c.LLM.Endpoint }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_DIMENSION", func(c *Config) string { return intStr(c.Qdrant.Dimension) }},
	{"QDRANT_DISTANCE", func(c *Config) string { return c.Qdrant.Distance }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"KBQ_CONTEXT_WINDOW", func(c *Config) string { return intStr(c.Retrieval.ContextWindow) }},
	{"KBQ_MAX_DOCUMENTS", func(c *Config) string { return intStr(c.Retrieval.MaxDocuments) }},
	{"KBQ_SCORE_THRESHOLD", func(c *Config) string { return float32Str(c.Retrieval.ScoreThreshold) }},
	{"KBQ_SEARCH_LIMIT", func(c *Config) string { return intStr(c.Retrieval.Limit) }},
	{"KBQ_CHUNK_STRATEGY", func(c *Config) string { return c.Chunking.Strategy }},
	{"KBQ_CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.MaxChunkSize) }},
	{"KBQ_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"KBQ_RETRY_ATTEMPTS", func(c *Config) string { return intStr(c.Retry.MaxAttempts) }},
	{"KBQ_RETRY_BACKOFF_MS", func(c *Config) string { return intStr(c.Retry.BackoffBaseMs) }},
	{"KBQ_DOCUMENTS_DB", func(c *Config) string { return c.Storage.DocumentsDB }},
	{"KBQ_QUERYLOG_DB", func(c *Config) string { return c.Storage.QueryLogDB }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("KBQ_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".kbq", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("kbq.yaml"); err == nil {
		return "kbq.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
