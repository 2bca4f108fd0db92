// Package budget provides token estimation and input clamping for prompts sent
// to the chat model. Because prepai supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code).
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxAnswerTokens is the default budget for a candidate answer
	// embedded in a feedback prompt. Fits 8k-context models with room for the
	// question, the instructions and the reply.
	DefaultMaxAnswerTokens = 4000

	// TruncationMarker is appended to text cut by [Truncate].
	TruncationMarker = "\n[... answer truncated ...]"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Truncate cuts s so that its estimate fits within maxTokens, appending
// [TruncationMarker]. The cut never splits a UTF-8 sequence. It reports
// whether s was shortened. A non-positive maxTokens disables the limit.
func Truncate(s string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || Estimate(s) <= maxTokens {
		return s, false
	}
	limit := maxTokens * charsPerToken
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + TruncationMarker, true
}
