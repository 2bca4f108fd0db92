package budget

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
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

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_Truncate_UnderBudget(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 40)
	got, cut := Truncate(in, 10)
	if cut || got != in {
		t.Errorf("Truncate under budget changed input: cut=%v len=%d", cut, len(got))
	}
}

func Test_Truncate_OverBudget(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 100)
	got, cut := Truncate(in, 10)
	if !cut {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(got, TruncationMarker) {
		t.Errorf("missing marker: %q", got)
	}
	if body := strings.TrimSuffix(got, TruncationMarker); len(body) != 40 {
		t.Errorf("kept %d chars, want 40", len(body))
	}
}

func Test_Truncate_KeepsRunesWhole(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("é", 50) // 2 bytes each
	got, cut := Truncate(in, 5)
	if !cut {
		t.Fatal("expected truncation")
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated output is not valid UTF-8: %q", got)
	}
}

func Test_Truncate_Disabled(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 1000)
	if got, cut := Truncate(in, 0); cut || got != in {
		t.Error("Truncate with maxTokens=0 must be a no-op")
	}
}
