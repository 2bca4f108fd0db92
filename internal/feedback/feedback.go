// Package feedback asks a chat model to review a candidate's answer to an
// interview question. The scorer never fails: when the model is unreachable,
// slow, or silent the caller receives [FallbackMessage] instead.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/prepai-go/internal/budget"
	"github.com/54b3r/prepai-go/internal/logging"
)

// FallbackMessage is returned in place of model output when feedback cannot
// be produced.
const FallbackMessage = "Unable to process feedback at this time."

// DefaultTimeout bounds a single feedback call.
const DefaultTimeout = 60 * time.Second

// ChatModel is the subset of an eino chat model the scorer needs.
// Any [model.BaseChatModel] satisfies it.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Feedback is the result of scoring one answer.
type Feedback struct {
	// Text is the model's review, or FallbackMessage.
	Text string `json:"feedback"`

	// Degraded is true when Text is the fallback message.
	Degraded bool `json:"-"`

	// Truncated is true when the answer was cut to fit the token budget.
	Truncated bool `json:"-"`
}

// Config configures a Scorer.
type Config struct {
	// Model generates the review. Required.
	Model ChatModel

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxAnswerTokens caps the answer embedded in the prompt. Zero means
	// budget.DefaultMaxAnswerTokens; a negative value disables the cap.
	MaxAnswerTokens int
}

// Scorer produces feedback for answers.
type Scorer struct {
	model     ChatModel
	timeout   time.Duration
	maxTokens int
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("feedback: chat model is required")
	}
	s := &Scorer{model: cfg.Model, timeout: cfg.Timeout, maxTokens: cfg.MaxAnswerTokens}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.maxTokens == 0 {
		s.maxTokens = budget.DefaultMaxAnswerTokens
	}
	return s, nil
}

// Score asks the model to review answer against question. It always returns
// a usable Feedback; failures are logged and replaced with the fallback.
func (s *Scorer) Score(ctx context.Context, question, answer string) Feedback {
	log := logging.FromContext(ctx)

	answer, truncated := budget.Truncate(answer, s.maxTokens)
	if truncated {
		log.Warn("feedback: answer exceeded token budget, truncated",
			"max_tokens", s.maxTokens,
		)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.model.Generate(callCtx, BuildMessages(question, answer))
	if err != nil {
		log.Warn("feedback: model call failed, using fallback",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Feedback{Text: FallbackMessage, Degraded: true, Truncated: truncated}
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		log.Warn("feedback: model returned empty reply, using fallback")
		return Feedback{Text: FallbackMessage, Degraded: true, Truncated: truncated}
	}

	log.Debug("feedback: scored answer", "duration_ms", time.Since(start).Milliseconds())
	return Feedback{Text: reply.Content, Truncated: truncated}
}

// BuildMessages renders the review prompt. The question and answer are
// embedded verbatim.
func BuildMessages(question, answer string) []*schema.Message {
	return []*schema.Message{
		schema.UserMessage(fmt.Sprintf(promptTemplate, question, answer)),
	}
}

const promptTemplate = `Question: %s
User's Answer: %s

Analyze the user's answer with the following criteria:
- Correctness: Is the answer logically correct and does it solve the problem?
- Efficiency: Is the code efficient in terms of time and space complexity?
- Code Quality: Comment on code readability, style, and structure.
- Suggestions: Provide constructive feedback for improvement.

Please provide detailed feedback based on these points.`
