// Package tokens provides token counting for chunking and context budgeting.
// When a real tokenizer is available it uses the BPE vocabulary matching the
// configured model (via tiktoken); otherwise it falls back to a conservative
// character heuristic: 1 token ≈ 4 characters (English prose). The heuristic
// deliberately under-estimates to leave headroom for model-specific overhead.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the character-to-token ratio used by the heuristic.
// 4 chars/token is standard for English text; 3 would be more aggressive but
// risks overflowing context windows.
const charsPerToken = 4

// Estimate returns a rough token count for s using the character heuristic.
// Non-empty strings always count as at least one token.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Codec wraps a model-specific BPE tokenizer. A nil *Codec is valid and
// degrades every method to the character heuristic, so callers never need to
// branch on tokenizer availability.
type Codec struct {
	// enc is the underlying tiktoken encoder.
	enc *tiktoken.Tiktoken
}

// ForModel returns a Codec using the BPE vocabulary of the given model name
// (e.g. "text-embedding-3-small", "gpt-4o-mini").
func ForModel(model string) (*Codec, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokens: no encoding for model %q: %w", model, err)
	}
	return &Codec{enc: enc}, nil
}

// Count returns the exact token count of s, or the heuristic estimate when
// the codec is nil.
func (c *Codec) Count(s string) int {
	if c == nil || c.enc == nil {
		return Estimate(s)
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Encode converts s into token ids. Returns nil when the codec is nil.
func (c *Codec) Encode(s string) []int {
	if c == nil || c.enc == nil {
		return nil
	}
	return c.enc.Encode(s, nil, nil)
}

// Decode converts token ids back into text. Returns "" when the codec is nil.
func (c *Codec) Decode(ids []int) string {
	if c == nil || c.enc == nil {
		return ""
	}
	return c.enc.Decode(ids)
}
