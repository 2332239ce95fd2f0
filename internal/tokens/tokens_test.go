package tokens

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_Codec_NilFallsBackToHeuristic(t *testing.T) {
	t.Parallel()
	var c *Codec

	if got := c.Count("abcdefgh"); got != 2 {
		t.Errorf("nil codec Count = %d, want heuristic 2", got)
	}
	if got := c.Encode("anything"); got != nil {
		t.Errorf("nil codec Encode = %v, want nil", got)
	}
	if got := c.Decode([]int{1, 2, 3}); got != "" {
		t.Errorf("nil codec Decode = %q, want empty", got)
	}
}
