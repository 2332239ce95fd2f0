// Package answer assembles retrieved documents into a bounded context window
// and generates a grounded answer through an external LLM. Generation is
// deliberately non-failing: every provider error degrades into a fixed
// user-facing message so the query pipeline always completes with an answer.
package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kbase-ai/kbq-go/internal/tokens"
)

const (
	// truncationBuffer is the headroom left when truncating an overflowing
	// document into the remaining window space.
	truncationBuffer = 50

	// minUsableSpace is the smallest remaining window (in characters) worth
	// filling with a truncated document. Below this, packing stops.
	minUsableSpace = 100

	// charsPerToken converts the character thresholds above into token
	// terms for the token-budgeted variant.
	charsPerToken = 4
)

// DocumentContext is one retrieved document as seen by the assembler.
type DocumentContext struct {
	// ID is the source chunk or document id.
	ID string

	// Title labels the source block in the assembled context.
	Title string

	// Content is the document text.
	Content string

	// Score is the retrieval relevance; higher packs earlier.
	Score float32
}

// TokenCodec is the tokenizer surface needed for token budgeting. A nil
// value degrades to the chars/4 heuristic.
type TokenCodec interface {
	Count(s string) int
}

// block renders one document as it appears inside the context window.
func block(doc DocumentContext) string {
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	return fmt.Sprintf("[Source: %s]\n%s\n\n", title, doc.Content)
}

// byScore returns docs sorted descending by score. The sort is stable so
// equal scores keep their retrieval order.
func byScore(docs []DocumentContext) []DocumentContext {
	sorted := make([]DocumentContext, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return sorted
}

// BuildContext packs documents highest-score-first into a window of at most
// windowSize characters. A document that would overflow is included as a
// truncated prefix only when the remaining space is still usable; packing
// then stops, so a lower-scored document is never squeezed in after a
// higher-scored one was cut. For non-empty docs and a positive windowSize the
// result is always non-empty: a window too small for a usable truncated entry
// still yields a prefix of the highest-scored block.
func BuildContext(docs []DocumentContext, windowSize int) string {
	if len(docs) == 0 || windowSize <= 0 {
		return ""
	}

	var b strings.Builder
	for _, doc := range byScore(docs) {
		blk := block(doc)
		if b.Len()+len(blk) <= windowSize {
			b.WriteString(blk)
			continue
		}

		remaining := windowSize - b.Len()
		if remaining > minUsableSpace {
			header := blk[:len(blk)-len(doc.Content)-2]
			keep := remaining - len(header) - truncationBuffer
			if keep > 0 && keep < len(doc.Content) {
				b.WriteString(header)
				b.WriteString(doc.Content[:keep])
				b.WriteString("\n\n")
			}
		}
		if b.Len() == 0 {
			// Window too small for even a truncated entry: emit a bare
			// prefix of the top block so non-empty input never assembles
			// to an empty context.
			b.WriteString(blk[:windowSize])
		}
		break
	}

	return strings.TrimRight(b.String(), "\n")
}

// OptimizeContextForTokenLimit packs documents highest-score-first into a
// window of at most maxTokens tokens, using the same greedy algorithm as
// BuildContext. Token counts come from codec, or the character heuristic
// when codec is nil.
func OptimizeContextForTokenLimit(docs []DocumentContext, maxTokens int, codec TokenCodec) string {
	if len(docs) == 0 || maxTokens <= 0 {
		return ""
	}

	count := func(s string) int {
		if codec == nil {
			return tokens.Estimate(s)
		}
		return codec.Count(s)
	}

	var b strings.Builder
	used := 0
	for _, doc := range byScore(docs) {
		blk := block(doc)
		n := count(blk)
		if used+n <= maxTokens {
			b.WriteString(blk)
			used += n
			continue
		}

		remaining := maxTokens - used
		if remaining > minUsableSpace/charsPerToken {
			header := blk[:len(blk)-len(doc.Content)-2]
			keep := (remaining * charsPerToken) - len(header) - truncationBuffer
			if keep > 0 && keep < len(doc.Content) {
				b.WriteString(header)
				b.WriteString(doc.Content[:keep])
				b.WriteString("\n\n")
			}
		}
		break
	}

	return strings.TrimRight(b.String(), "\n")
}
