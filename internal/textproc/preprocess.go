// Package textproc normalizes raw extracted text before chunking and
// embedding. All functions are pure and idempotent: running a normalization
// twice yields the same output as running it once, so upstream callers may
// re-process defensively without corrupting stored content.
package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

// minUsableLength is the minimum number of characters a text must retain
// after normalization to be worth chunking or embedding.
const minUsableLength = 10

var (
	// horizontalSpace matches tabs, non-breaking spaces, and the Unicode
	// space separators that should collapse to a single ASCII space.
	horizontalSpace = regexp.MustCompile(`[\t\x{00A0}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)

	// spaceRun matches two or more consecutive ASCII spaces.
	spaceRun = regexp.MustCompile(` {2,}`)

	// newlineRun matches three or more consecutive line feeds.
	newlineRun = regexp.MustCompile(`\n{3,}`)

	// zeroWidth matches zero-width spaces, joiners, and the BOM.
	zeroWidth = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`)

	// punctuationRuns collapse repeated sentence punctuation for the stricter
	// embedding variant. RE2 has no backreferences, so one pattern per mark.
	punctuationRuns = []struct {
		re  *regexp.Regexp
		rep string
	}{
		{regexp.MustCompile(`\.{2,}`), "."},
		{regexp.MustCompile(`!{2,}`), "!"},
		{regexp.MustCompile(`\?{2,}`), "?"},
		{regexp.MustCompile(`,{2,}`), ","},
		{regexp.MustCompile(`;{2,}`), ";"},
		{regexp.MustCompile(`:{2,}`), ":"},
	}
)

// smartPunct maps typographic punctuation to its ASCII equivalent.
var smartPunct = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"‚", "'", // single low quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"„", `"`, // double low quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
)

// Preprocess normalizes raw extracted text: whitespace and line endings are
// standardized, control and zero-width characters are stripped, smart
// punctuation is mapped to ASCII, and each line is trimmed with empty lines
// dropped. The result is deterministic and idempotent.
func Preprocess(text string) string {
	if text == "" {
		return ""
	}

	// Line endings first so CR never survives into the space handling.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")

	text = zeroWidth.ReplaceAllString(text, "")
	text = smartPunct.Replace(text)
	text = stripControl(text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// PreprocessForEmbedding applies [Preprocess] and additionally collapses runs
// of repeated sentence punctuation ("!!!" becomes "!"), which otherwise
// wastes embedding tokens without adding signal.
func PreprocessForEmbedding(text string) string {
	text = Preprocess(text)
	for _, p := range punctuationRuns {
		text = p.re.ReplaceAllString(text, p.rep)
	}
	return text
}

// Usable reports whether text still carries enough content after
// normalization to be chunked and embedded.
func Usable(text string) bool {
	return len(Preprocess(text)) >= minUsableLength
}

// stripControl removes control characters other than the line feed.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
