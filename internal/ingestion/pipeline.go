// Package ingestion implements the document ingestion pipeline. It reads
// documents from the document store, normalizes and chunks their content,
// embeds each chunk, and upserts the results into the vector index. The
// pipeline is invoked by the `kbq ingest` and `kbq reindex` CLI commands.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kbase-ai/kbq-go/internal/chunker"
	"github.com/kbase-ai/kbq-go/internal/rag"
	"github.com/kbase-ai/kbq-go/internal/textproc"
)

// Stats summarizes one ingestion run.
type Stats struct {
	// Documents is the number of documents processed into the index.
	Documents int

	// Chunks is the total number of chunks embedded and upserted.
	Chunks int

	// Skipped is the number of documents rejected as too short to index.
	Skipped int
}

// Pipeline orchestrates the preprocess → chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// index persists the embedded chunks.
	index rag.VectorIndex

	// chunks splits normalized document text per the configured strategy.
	chunks chunker.Chunker

	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies. The
// chunking options default to sentence-boundary chunks of 1000 characters
// with 100 characters of overlap when left zero.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, opts chunker.Options, codec chunker.TokenCodec, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Strategy == "" {
		opts.Strategy = chunker.StrategySentenceBoundary
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = 1000
	}
	if opts.OverlapSize == 0 {
		opts.OverlapSize = 100
	}

	ch, err := chunker.New(opts, codec, log)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	return &Pipeline{
		embedder: embedder,
		index:    index,
		chunks:   ch,
		log:      log,
	}, nil
}

// IngestAll processes every document and returns aggregate statistics.
// Documents are processed sequentially and the first error stops the run.
// Progress is reported via the optional callback.
func (p *Pipeline) IngestAll(ctx context.Context, docs []rag.Document, progress func(msg string)) (Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var stats Stats
	for _, doc := range docs {
		n, err := p.IngestDocument(ctx, doc)
		if err != nil {
			return stats, err
		}
		if n == 0 {
			stats.Skipped++
			progress(fmt.Sprintf("skipped %s (too short to index)", doc.ID))
			continue
		}
		stats.Documents++
		stats.Chunks += n
		progress(fmt.Sprintf("ingested %s: %d chunks", doc.ID, n))
	}
	return stats, nil
}

// IngestDocument chunks, embeds, and upserts a single document and returns
// the number of chunks written. Documents whose content normalizes to fewer
// than the usable minimum are skipped with a zero count and no error.
func (p *Pipeline) IngestDocument(ctx context.Context, doc rag.Document) (int, error) {
	if doc.ID == "" {
		return 0, fmt.Errorf("ingestion: document has no id: %w", rag.ErrInvalidInput)
	}

	clean := textproc.PreprocessForEmbedding(doc.Content)
	if !textproc.Usable(clean) {
		p.log.Warn("document content too short to index", "document_id", doc.ID)
		return 0, nil
	}

	source := doc.Metadata["source"]
	if source == "" {
		source = doc.Title
	}
	chunks, err := p.chunks.Chunk(doc.ID, source, clean)
	if err != nil {
		return 0, fmt.Errorf("ingestion: chunk %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embed %s: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("ingestion: embed %s: got %d vectors for %d chunks", doc.ID, len(vectors), len(chunks))
	}

	points := make([]rag.VectorPoint, len(chunks))
	for i, c := range chunks {
		points[i] = rag.VectorPoint{
			ID:      c.ID,
			Vector:  vectors[i],
			Payload: chunkPayload(doc, c),
		}
	}
	if err := p.index.UpsertBatch(ctx, points); err != nil {
		return 0, fmt.Errorf("ingestion: upsert %s: %w", doc.ID, err)
	}

	p.log.Info("document ingested",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"strategy", string(chunks[0].Strategy),
	)
	return len(chunks), nil
}

// chunkPayload builds the vector payload for one chunk: the chunk text and
// placement plus the owning document's title and metadata.
func chunkPayload(doc rag.Document, c chunker.Chunk) map[string]string {
	payload := make(map[string]string, len(doc.Metadata)+5)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload["content"] = c.Content
	payload["title"] = doc.Title
	payload["document_id"] = doc.ID
	payload["chunk_index"] = strconv.Itoa(c.ChunkIndex)
	payload["total_chunks"] = strconv.Itoa(c.TotalChunks)
	return payload
}
