package chunker

import (
	"log/slog"
)

// semanticChunker is a placeholder for embedding-similarity boundary
// detection. It delegates to sentence-boundary splitting and logs the
// fallback on every call; emitted chunks keep the semantic strategy tag so
// callers can tell the fallback apart from a direct sentence_boundary request.
type semanticChunker struct {
	inner *sentenceChunker
	log   *slog.Logger
}

func (c *semanticChunker) Chunk(docID, source, text string) ([]Chunk, error) {
	c.log.Info("chunker: semantic chunking not implemented, falling back to sentence_boundary",
		slog.String("document_id", docID),
	)
	return c.inner.Chunk(docID, source, text)
}
