package chunker

import (
	"fmt"
	"strings"
	"testing"
)

// wordCodec is a deterministic whitespace tokenizer for tests: every
// space-separated word is one token.
type wordCodec struct {
	words []string
	ids   map[string]int
}

func newWordCodec() *wordCodec {
	return &wordCodec{ids: make(map[string]int)}
}

func (c *wordCodec) Count(s string) int { return len(strings.Fields(s)) }

func (c *wordCodec) Encode(s string) []int {
	var out []int
	for _, w := range strings.Fields(s) {
		id, ok := c.ids[w]
		if !ok {
			id = len(c.words)
			c.ids[w] = id
			c.words = append(c.words, w)
		}
		out = append(out, id)
	}
	return out
}

func (c *wordCodec) Decode(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, c.words[id])
	}
	return strings.Join(parts, " ")
}

func mustChunker(t *testing.T, opts Options, codec TokenCodec) Chunker {
	t.Helper()
	c, err := New(opts, codec, nil)
	if err != nil {
		t.Fatalf("New(%+v): %v", opts, err)
	}
	return c
}

func Test_New_RejectsBadOptions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		opts Options
	}{
		{"zero size", Options{Strategy: StrategyFixedSize, MaxChunkSize: 0}},
		{"negative overlap", Options{Strategy: StrategyFixedSize, MaxChunkSize: 10, OverlapSize: -1}},
		{"overlap equals size", Options{Strategy: StrategyFixedSize, MaxChunkSize: 10, OverlapSize: 10}},
		{"overlap exceeds size", Options{Strategy: StrategyFixedSize, MaxChunkSize: 10, OverlapSize: 20}},
		{"unknown strategy", Options{Strategy: "galactic", MaxChunkSize: 10}},
		{"token aware without tokenizer", Options{Strategy: StrategyTokenAware, MaxChunkSize: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts, nil, nil); err == nil {
				t.Errorf("New(%+v): want error, got nil", tc.opts)
			}
		})
	}
}

func Test_FixedSize_CoversTextOnce(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("abcdefghij", 10) // 100 chars
	c := mustChunker(t, Options{Strategy: StrategyFixedSize, MaxChunkSize: 30, OverlapSize: 0}, nil)

	chunks, err := c.Chunk("doc1", "doc1.txt", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	// With no overlap, concatenating chunk contents reproduces the input.
	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content)
	}
	if rebuilt.String() != text {
		t.Errorf("chunks do not cover text exactly once")
	}
}

func Test_FixedSize_OverlapStep(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 50)
	c := mustChunker(t, Options{Strategy: StrategyFixedSize, MaxChunkSize: 20, OverlapSize: 5}, nil)

	chunks, err := c.Chunk("doc1", "doc1.txt", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	// Step is 15, so windows start at 0, 15, 30, 45.
	wantStarts := []int{0, 15, 30, 45}
	if len(chunks) != len(wantStarts) {
		t.Fatalf("want %d chunks, got %d", len(wantStarts), len(chunks))
	}
	for i, ch := range chunks {
		if ch.StartPosition != wantStarts[i] {
			t.Errorf("chunk %d start = %d, want %d", i, ch.StartPosition, wantStarts[i])
		}
		if ch.EndPosition-ch.StartPosition > 20 {
			t.Errorf("chunk %d exceeds max size: %d chars", i, ch.EndPosition-ch.StartPosition)
		}
	}
}

func Test_FixedSize_SkipsBlankWindows(t *testing.T) {
	t.Parallel()
	text := "abcde" + strings.Repeat(" ", 10) + "fghij"
	c := mustChunker(t, Options{Strategy: StrategyFixedSize, MaxChunkSize: 5, OverlapSize: 0}, nil)

	chunks, err := c.Chunk("doc1", "doc1.txt", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, ch := range chunks {
		if strings.TrimSpace(ch.Content) == "" {
			t.Errorf("blank window emitted at index %d", ch.ChunkIndex)
		}
	}
	// Indices must stay sequential even though a blank window was skipped.
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk index %d at position %d", ch.ChunkIndex, i)
		}
	}
}

func Test_Metadata_IDsAndTotals(t *testing.T) {
	t.Parallel()
	text := "One sentence here. Another sentence there. A third one follows. And a fourth to close."
	c := mustChunker(t, Options{Strategy: StrategySentenceBoundary, MaxChunkSize: 45}, nil)

	chunks, err := c.Chunk("kb42", "faq.md", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if want := fmt.Sprintf("kb42_chunk_%d", i); ch.ID != want {
			t.Errorf("chunk %d id = %q, want %q", i, ch.ID, want)
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, ch.ChunkIndex)
		}
		if ch.TotalChunks != len(chunks) {
			t.Errorf("chunk %d total = %d, want %d", i, ch.TotalChunks, len(chunks))
		}
		if ch.SourceFile != "faq.md" {
			t.Errorf("chunk %d source = %q", i, ch.SourceFile)
		}
		if ch.TokenCount == 0 {
			t.Errorf("chunk %d has zero token count", i)
		}
	}
}

func Test_SentenceBoundary_PacksWholeSentences(t *testing.T) {
	t.Parallel()
	text := "Short one. Also short. This sentence is noticeably longer than the others! Tail?"
	c := mustChunker(t, Options{Strategy: StrategySentenceBoundary, MaxChunkSize: 25}, nil)

	chunks, err := c.Chunk("d", "d", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	// Every chunk must end on sentence punctuation; no sentence is split.
	for _, ch := range chunks {
		last := ch.Content[len(ch.Content)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %q does not end at a sentence boundary", ch.Content)
		}
	}
	// A single over-long sentence still gets its own chunk rather than
	// being dropped.
	joined := strings.Join([]string{chunks[0].Content, chunks[1].Content, chunks[2].Content}, " ")
	if !strings.Contains(joined, "noticeably longer") {
		t.Errorf("overflowing sentence missing from output: %q", joined)
	}
}

func Test_SentenceBoundary_SingleChunkWhenItFits(t *testing.T) {
	t.Parallel()
	text := "Tiny. Text."
	c := mustChunker(t, Options{Strategy: StrategySentenceBoundary, MaxChunkSize: 100}, nil)

	chunks, err := c.Chunk("d", "d", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Tiny. Text." {
		t.Errorf("content = %q", chunks[0].Content)
	}
	if chunks[0].TotalChunks != 1 {
		t.Errorf("total = %d, want 1", chunks[0].TotalChunks)
	}
}

func Test_TokenAware_BoundedAndOverlapped(t *testing.T) {
	t.Parallel()
	codec := newWordCodec()
	text := "alpha beta gamma delta. epsilon zeta eta theta. iota kappa lambda mu."
	c := mustChunker(t, Options{Strategy: StrategyTokenAware, MaxChunkSize: 8, OverlapSize: 2}, codec)

	chunks, err := c.Chunk("d", "d", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}

	// Second chunk begins with the decoded two-token tail of the first.
	first := strings.Fields(chunks[0].Content)
	tail := strings.Join(first[len(first)-2:], " ")
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Errorf("chunk 1 %q does not start with overlap %q", chunks[1].Content, tail)
	}
	for _, ch := range chunks {
		if ch.Strategy != StrategyTokenAware {
			t.Errorf("strategy = %q", ch.Strategy)
		}
	}
}

func Test_Semantic_FallsBackButKeepsTag(t *testing.T) {
	t.Parallel()
	text := "First sentence here. Second sentence there. Third sentence everywhere."

	semantic := mustChunker(t, Options{Strategy: StrategySemantic, MaxChunkSize: 45}, nil)
	direct := mustChunker(t, Options{Strategy: StrategySentenceBoundary, MaxChunkSize: 45}, nil)

	semChunks, err := semantic.Chunk("d", "d", text)
	if err != nil {
		t.Fatalf("semantic chunk: %v", err)
	}
	dirChunks, err := direct.Chunk("d", "d", text)
	if err != nil {
		t.Fatalf("direct chunk: %v", err)
	}

	if len(semChunks) != len(dirChunks) {
		t.Fatalf("fallback produced %d chunks, direct produced %d", len(semChunks), len(dirChunks))
	}
	for i := range semChunks {
		if semChunks[i].Content != dirChunks[i].Content {
			t.Errorf("chunk %d content differs between fallback and direct", i)
		}
		if semChunks[i].Strategy != StrategySemantic {
			t.Errorf("fallback chunk %d strategy = %q, want %q", i, semChunks[i].Strategy, StrategySemantic)
		}
		if dirChunks[i].Strategy != StrategySentenceBoundary {
			t.Errorf("direct chunk %d strategy = %q", i, dirChunks[i].Strategy)
		}
	}
}

func Test_Chunk_EmptyInput(t *testing.T) {
	t.Parallel()
	for _, strategy := range []Strategy{StrategyFixedSize, StrategySentenceBoundary, StrategySemantic} {
		c := mustChunker(t, Options{Strategy: strategy, MaxChunkSize: 50}, nil)
		chunks, err := c.Chunk("d", "d", "   \n  ")
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if len(chunks) != 0 {
			t.Errorf("%s: want no chunks for blank input, got %d", strategy, len(chunks))
		}
	}
}
