// Package chunker splits long documents into bounded segments ready for
// embedding. The splitting strategy is selectable: fixed-size character
// windows, sentence-boundary packing, token-aware packing, or semantic
// (which currently falls back to sentence-boundary). Each strategy is its
// own implementation of the Chunker interface so callers and tests can tell
// exactly which behavior they asked for and which they got.
package chunker

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kbase-ai/kbq-go/internal/tokens"
)

// Strategy selects the splitting algorithm.
type Strategy string

const (
	// StrategyFixedSize slides a fixed-width character window over the text.
	StrategyFixedSize Strategy = "fixed_size"

	// StrategySentenceBoundary packs whole sentences into character-bounded chunks.
	StrategySentenceBoundary Strategy = "sentence_boundary"

	// StrategyTokenAware packs whole sentences into token-bounded chunks with
	// decoded token overlap between consecutive chunks.
	StrategyTokenAware Strategy = "token_aware"

	// StrategySemantic is accepted for compatibility and currently delegates
	// to sentence-boundary splitting. Emitted chunks keep the semantic tag so
	// callers can distinguish the fallback from a direct request.
	StrategySemantic Strategy = "semantic"
)

// Chunk is one bounded segment of a document, the unit actually embedded
// and indexed.
type Chunk struct {
	// ID is "<documentID>_chunk_<index>".
	ID string

	// Content is the chunk text.
	Content string

	// SourceFile identifies the originating document or file.
	SourceFile string

	// ChunkIndex is the zero-based emission order of this chunk.
	ChunkIndex int

	// TotalChunks is the final chunk count for the document, back-filled
	// once all chunks are known.
	TotalChunks int

	// StartPosition and EndPosition are character offsets into the original
	// text, when the strategy tracks them (zero otherwise).
	StartPosition int
	EndPosition   int

	// TokenCount is the token count of Content (exact when a tokenizer is
	// configured, estimated otherwise).
	TokenCount int

	// Strategy records which strategy the caller requested.
	Strategy Strategy
}

// Options configure a Chunker. MaxChunkSize and OverlapSize are measured in
// characters for fixed_size and sentence_boundary, and in tokens for
// token_aware.
type Options struct {
	// Strategy selects the splitting algorithm.
	Strategy Strategy

	// MaxChunkSize is the upper bound per chunk. Must be positive.
	MaxChunkSize int

	// OverlapSize is the amount of trailing context carried into the next
	// chunk. Honored by fixed_size and token_aware; sentence_boundary
	// ignores it to keep sentences intact.
	OverlapSize int
}

// Chunker splits a document's text into chunks.
type Chunker interface {
	// Chunk splits text, deriving chunk ids from docID and stamping source
	// on every chunk. The returned slice has sequential ChunkIndex values
	// starting at 0 and a consistent TotalChunks on every element.
	Chunk(docID, source, text string) ([]Chunk, error)
}

// TokenCodec is the tokenizer surface the chunker needs. [*tokens.Codec]
// satisfies it; tests substitute a deterministic fake.
type TokenCodec interface {
	Count(s string) int
	Encode(s string) []int
	Decode(ids []int) string
}

// New constructs the Chunker for opts. codec supplies token counting; it is
// required for token_aware and optional (estimation fallback) elsewhere.
// log records the semantic fallback; pass nil to use the default logger.
func New(opts Options, codec TokenCodec, log *slog.Logger) (Chunker, error) {
	if opts.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("chunker: max chunk size must be positive, got %d", opts.MaxChunkSize)
	}
	if opts.OverlapSize < 0 {
		return nil, fmt.Errorf("chunker: overlap size must not be negative, got %d", opts.OverlapSize)
	}
	if log == nil {
		log = slog.Default()
	}

	switch opts.Strategy {
	case StrategyFixedSize:
		if opts.OverlapSize >= opts.MaxChunkSize {
			return nil, fmt.Errorf("chunker: overlap %d must be smaller than chunk size %d", opts.OverlapSize, opts.MaxChunkSize)
		}
		return &fixedSizeChunker{opts: opts, codec: codec}, nil

	case StrategySentenceBoundary:
		return &sentenceChunker{opts: opts, codec: codec}, nil

	case StrategyTokenAware:
		if codec == nil {
			return nil, fmt.Errorf("chunker: token_aware requires a tokenizer")
		}
		if opts.OverlapSize >= opts.MaxChunkSize {
			return nil, fmt.Errorf("chunker: overlap %d must be smaller than chunk size %d", opts.OverlapSize, opts.MaxChunkSize)
		}
		return &tokenAwareChunker{opts: opts, codec: codec}, nil

	case StrategySemantic:
		return &semanticChunker{
			inner: &sentenceChunker{opts: opts, codec: codec, tag: StrategySemantic},
			log:   log,
		}, nil

	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q", opts.Strategy)
	}
}

// sentenceEnd matches a sentence together with its terminating punctuation run.
var sentenceEnd = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// splitSentences returns the trimmed sentences of text together with their
// character offsets in the original string.
func splitSentences(text string) ([]string, [][2]int) {
	locs := sentenceEnd.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(locs))
	spans := make([][2]int, 0, len(locs))
	for _, loc := range locs {
		s := strings.TrimSpace(text[loc[0]:loc[1]])
		if s == "" {
			continue
		}
		sentences = append(sentences, s)
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	return sentences, spans
}

// annotate back-fills the per-chunk bookkeeping once all chunks of a document
// are known: sequential ids, indices, and the final total count.
func annotate(chunks []Chunk, docID, source string, strategy Strategy, codec TokenCodec) []Chunk {
	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s_chunk_%d", docID, i)
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
		chunks[i].SourceFile = source
		chunks[i].Strategy = strategy
		if chunks[i].TokenCount == 0 {
			chunks[i].TokenCount = countTokens(codec, chunks[i].Content)
		}
	}
	return chunks
}

// countTokens counts via the codec, or the character heuristic when no
// tokenizer is configured.
func countTokens(codec TokenCodec, s string) int {
	if codec == nil {
		return tokens.Estimate(s)
	}
	return codec.Count(s)
}
