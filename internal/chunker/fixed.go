package chunker

import (
	"strings"
)

// fixedSizeChunker slides a window of MaxChunkSize characters with a step of
// MaxChunkSize-OverlapSize over the raw text. Windows that are empty after
// trimming are skipped without consuming a chunk index.
type fixedSizeChunker struct {
	opts  Options
	codec TokenCodec
}

func (c *fixedSizeChunker) Chunk(docID, source, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	size := c.opts.MaxChunkSize
	step := size - c.opts.OverlapSize

	var chunks []Chunk
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}

		content := text[start:end]
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Content:       content,
				StartPosition: start,
				EndPosition:   end,
			})
		}

		if end == len(text) {
			break
		}
	}

	return annotate(chunks, docID, source, StrategyFixedSize, c.codec), nil
}
