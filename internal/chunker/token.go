package chunker

import (
	"strings"
)

// tokenAwareChunker packs whole sentences into chunks bounded by token count
// rather than characters, using the BPE vocabulary of the embedding model.
// When an overflow starts a new chunk, the trailing OverlapSize tokens of the
// previous chunk are decoded back to text and prepended, preserving context
// continuity across the boundary.
type tokenAwareChunker struct {
	opts  Options
	codec TokenCodec
}

func (c *tokenAwareChunker) Chunk(docID, source, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences, _ := splitSentences(text)

	var (
		chunks     []Chunk
		current    []string
		tokenCount int
	)

	flush := func() []int {
		if len(current) == 0 {
			return nil
		}
		content := strings.Join(current, " ")
		ids := c.codec.Encode(content)
		chunks = append(chunks, Chunk{
			Content:    content,
			TokenCount: len(ids),
		})
		current = nil
		tokenCount = 0
		return ids
	}

	for _, s := range sentences {
		n := c.codec.Count(s)
		if tokenCount > 0 && tokenCount+n > c.opts.MaxChunkSize {
			prev := flush()
			if c.opts.OverlapSize > 0 && len(prev) > 0 {
				tail := prev
				if len(tail) > c.opts.OverlapSize {
					tail = tail[len(tail)-c.opts.OverlapSize:]
				}
				carried := strings.TrimSpace(c.codec.Decode(tail))
				if carried != "" {
					current = append(current, carried)
					tokenCount = len(tail)
				}
			}
		}
		current = append(current, s)
		tokenCount += n
	}
	flush()

	return annotate(chunks, docID, source, StrategyTokenAware, c.codec), nil
}
