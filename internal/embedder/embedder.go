// Package embedder implements rag.Embedder over external embedding APIs
// (OpenAI via the official client library, Ollama via plain HTTP). A shared
// Service wraps the provider backend with input validation, fixed-size
// sub-batching to respect provider request limits, and a token-bucket rate
// limiter on sub-batch submission.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// maxBatchSize is the largest number of texts submitted to the provider in a
// single request. Inputs larger than this are split into sequential
// sub-batches whose results are concatenated in submission order.
const maxBatchSize = 100

// backend is the narrow provider surface: one order-preserving batch call.
type backend interface {
	// embed returns one vector per input text, parallel to the input.
	embed(ctx context.Context, texts []string) ([][]float32, error)

	// dimension is the output vector length.
	dimension() int
}

// Service implements rag.Embedder on top of a provider backend. It is safe
// for concurrent use.
type Service struct {
	// backend performs the actual provider calls.
	backend backend

	// limiter paces sub-batch submissions. Never nil.
	limiter *rate.Limiter
}

var _ rag.Embedder = (*Service)(nil)

// New wraps a provider backend in a Service. subBatchesPerSecond bounds the
// provider request rate; non-positive means effectively unlimited.
func newService(b backend, subBatchesPerSecond float64) *Service {
	limit := rate.Inf
	if subBatchesPerSecond > 0 {
		limit = rate.Limit(subBatchesPerSecond)
	}
	return &Service{
		backend: b,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dimension returns the output vector length of the configured model.
func (s *Service) Dimension() int {
	return s.backend.dimension()
}

// Embed converts a single text into its embedding. Empty or all-whitespace
// input fails immediately with rag.ErrInvalidInput.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedder: text is empty: %w", rag.ErrInvalidInput)
	}

	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts texts into embeddings. Empty strings are filtered out
// before any provider call; the returned slice holds one vector per surviving
// text in their original relative order. Fails with rag.ErrInvalidInput when
// nothing survives the filter.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	filtered := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("embedder: no non-empty texts to embed: %w", rag.ErrInvalidInput)
	}

	out := make([][]float32, 0, len(filtered))
	for start := 0; start < len(filtered); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(filtered) {
			end = len(filtered)
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
		}

		vecs, err := s.backend.embed(ctx, filtered[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}

	return out, nil
}
