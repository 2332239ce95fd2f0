package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBackend embeds text via the OpenAI embeddings API using the official
// client. It also covers Azure OpenAI: the client config selects the flavor.
type openaiBackend struct {
	// client is the shared OpenAI API client.
	client *openai.Client

	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string

	// dims is the output vector length.
	dims int
}

// OpenAIConfig holds the settings for the OpenAI embedding backend.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// BaseURL overrides the API base URL. Empty means api.openai.com.
	BaseURL string

	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string

	// Dimensions is the output vector length. Must be positive.
	Dimensions int
}

// NewOpenAI constructs a Service backed by the OpenAI embeddings API.
// subBatchesPerSecond paces provider requests; non-positive disables pacing.
func NewOpenAI(cfg OpenAIConfig, subBatchesPerSecond float64) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: openai requires an API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedder: openai requires a model name")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedder: openai requires positive dimensions, got %d", cfg.Dimensions)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	b := &openaiBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}
	return newService(b, subBatchesPerSecond), nil
}

func (b *openaiBackend) dimension() int { return b.dims }

// embed submits one batch to the embeddings endpoint. The API may return
// data out of order; results are re-sorted by index.
func (b *openaiBackend) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(b.model),
		Input:      texts,
		Dimensions: b.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: openai request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedder: openai index %d out of range [0, %d)", d.Index, len(texts))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
