package chunker

import (
	"strings"
)

// sentenceChunker splits text on sentence-terminating punctuation and packs
// whole sentences greedily while the running character length stays within
// MaxChunkSize. A sentence that would overflow closes the current chunk and
// opens the next one. OverlapSize is not applied here: carrying partial
// sentences between chunks would break the boundary guarantee this strategy
// exists to provide.
type sentenceChunker struct {
	opts  Options
	codec TokenCodec

	// tag overrides the strategy recorded on emitted chunks; the semantic
	// fallback sets it so callers can see what they requested.
	tag Strategy
}

func (c *sentenceChunker) Chunk(docID, source, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences, spans := splitSentences(text)

	tag := c.tag
	if tag == "" {
		tag = StrategySentenceBoundary
	}

	var (
		chunks  []Chunk
		current []string
		start   = -1
		end     int
		length  int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content:       strings.Join(current, " "),
			StartPosition: start,
			EndPosition:   end,
		})
		current = nil
		start = -1
		length = 0
	}

	for i, s := range sentences {
		// +1 for the joining space when the chunk already has content.
		add := len(s)
		if length > 0 {
			add++
		}
		if length > 0 && length+add > c.opts.MaxChunkSize {
			flush()
			add = len(s)
		}

		if start < 0 {
			start = spans[i][0]
		}
		end = spans[i][1]
		current = append(current, s)
		length += add
	}
	flush()

	return annotate(chunks, docID, source, tag, c.codec), nil
}
