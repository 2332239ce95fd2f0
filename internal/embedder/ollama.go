package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ollamaBackend embeds text via the Ollama /api/embed endpoint over plain
// HTTP. No API key is required — Ollama runs locally.
type ollamaBackend struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string

	// model is the embedding model name (e.g. "nomic-embed-text").
	model string

	// dims is the output vector length of the model.
	dims int

	// client is the shared HTTP client with a request timeout.
	client *http.Client
}

// OllamaConfig holds the settings for the Ollama embedding backend.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string

	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string

	// Dimensions is the output vector length of the model.
	Dimensions int

	// Timeout bounds each HTTP request. Defaults to 60s if zero.
	Timeout time.Duration
}

// NewOllama constructs a Service backed by a local Ollama instance.
// subBatchesPerSecond paces provider requests; non-positive disables pacing.
func NewOllama(cfg OllamaConfig, subBatchesPerSecond float64) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("embedder: ollama requires a host URL")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedder: ollama requires a model name")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedder: ollama requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	b := &ollamaBackend{
		host:   cfg.Host,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	return newService(b, subBatchesPerSecond), nil
}

func (b *ollamaBackend) dimension() int { return b.dims }

// ollamaEmbedRequest is the JSON body sent to /api/embed.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from /api/embed.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (b *ollamaBackend) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedder: ollama decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("embedder: ollama: %s", msg)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder: ollama returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	return result.Embeddings, nil
}
