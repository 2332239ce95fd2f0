package embedder

import (
	"fmt"
	"math"

	"github.com/kbase-ai/kbq-go/internal/rag"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|), in [-1, 1]. Vectors of
// differing length fail with rag.ErrDimensionMismatch. A zero-norm vector on
// either side yields 0, avoiding division by zero.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedder: cosine similarity of %d-dim and %d-dim vectors: %w",
			len(a), len(b), rag.ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
