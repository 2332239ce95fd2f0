// Package rag defines the shared types and collaborator interfaces for the
// retrieval-augmented context assembly pipeline: documents, vector points,
// search results, and the contracts for embedding, vector search, document
// storage, and query logging. Concrete implementations (Qdrant, SQLite,
// OpenAI, etc.) satisfy these interfaces so the orchestration layer never
// depends on a specific backend.
package rag

import (
	"context"
)

// Document is a unit of knowledge owned by the document store. The pipeline
// reads content and metadata and writes embeddings to the vector index; it
// never mutates the store through this type.
type Document struct {
	// ID is the unique identifier assigned by the document store.
	ID string

	// Content is the raw text of the document.
	Content string

	// Title is the human-readable title, used for source attribution in
	// assembled context. May be empty.
	Title string

	// Metadata holds arbitrary key-value pairs carried into the vector payload.
	Metadata map[string]string
}

// VectorPoint is a single (id, vector, payload) entry in the vector index.
type VectorPoint struct {
	// ID is the point identifier, typically "<documentID>_chunk_<index>".
	ID string

	// Vector is the embedding. Its length must equal the collection's
	// configured dimension; the index client rejects mismatches before any
	// network call.
	Vector []float32

	// Payload holds the content, title, and metadata stored alongside the vector.
	Payload map[string]string
}

// SearchResult is one hit returned from a similarity search, ordered by
// descending score.
type SearchResult struct {
	// ID is the matched point's identifier.
	ID string

	// Score is the similarity score under the collection's distance metric.
	// Higher is always better for cosine.
	Score float32

	// Content is the stored text of the matched point.
	Content string

	// Title is the source title stored with the point. May be empty.
	Title string

	// Metadata holds the remaining payload fields.
	Metadata map[string]string
}

// Embedder converts text into fixed-dimension dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single text into its embedding. Fails with
	// ErrInvalidInput when text is empty or all-whitespace.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts a batch of texts, preserving input order. Empty
	// strings are filtered before the provider call; fails with
	// ErrInvalidInput if nothing remains after filtering.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the output vector length for this embedder.
	Dimension() int
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	// Limit is the maximum number of results to return.
	Limit int

	// Offset skips the first n results for pagination.
	Offset int

	// ScoreThreshold excludes results scoring below it. Zero means no floor.
	ScoreThreshold float32

	// Filter restricts results to points whose payload matches every
	// key-value pair. Nil means no filtering.
	Filter map[string]string
}

// VectorIndex is the client contract for the external vector store. All
// operations retry transient failures per the configured policy and surface
// ErrIndexUnavailable on exhaustion. Implementations must be safe for
// concurrent use.
type VectorIndex interface {
	// EnsureCollection creates the collection if absent. Idempotent.
	EnsureCollection(ctx context.Context) error

	// Search returns up to opts.Limit nearest points for the query vector,
	// sorted by score descending.
	Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error)

	// Upsert inserts or replaces a single point.
	Upsert(ctx context.Context, point VectorPoint) error

	// UpsertBatch inserts or replaces points in bounded sub-batches. Every
	// point must carry a vector of the collection dimension; the whole batch
	// is rejected with ErrInvalidInput before any network call otherwise.
	UpsertBatch(ctx context.Context, points []VectorPoint) error

	// Delete removes a single point by id.
	Delete(ctx context.Context, id string) error

	// DeleteBatch removes points by id in bounded sub-batches.
	DeleteBatch(ctx context.Context, ids []string) error

	// Count returns the number of points matching the payload filter
	// (all points when filter is nil).
	Count(ctx context.Context, filter map[string]string) (uint64, error)

	// Get retrieves a single point as a SearchResult, or nil if absent.
	Get(ctx context.Context, id string) (*SearchResult, error)

	// ReindexAll drops and recreates the collection empty. Destructive:
	// callers must re-upsert from the document store, which remains the
	// source of truth.
	ReindexAll(ctx context.Context) error

	// HealthCheck reports whether the backing store is reachable, regardless
	// of whether the collection exists yet.
	HealthCheck(ctx context.Context) bool

	// Close releases the underlying connection.
	Close() error
}

// DocumentStore is the external system of record for documents.
// Missing ids surface ErrNotFound.
type DocumentStore interface {
	// Create persists a new document and returns it with its assigned ID.
	Create(ctx context.Context, doc Document) (Document, error)

	// Get returns the document with the given id.
	Get(ctx context.Context, id string) (Document, error)

	// List returns all documents.
	List(ctx context.Context) ([]Document, error)

	// Update applies non-empty fields of patch to the stored document.
	Update(ctx context.Context, id string, patch Document) (Document, error)

	// Delete removes the document.
	Delete(ctx context.Context, id string) error

	// Search returns documents whose title or content matches the free text.
	Search(ctx context.Context, text string) ([]Document, error)
}
