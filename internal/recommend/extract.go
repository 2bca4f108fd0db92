package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is the subset of an eino chat model used for skill extraction.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// SkillExtractor reduces a job description to the skill terms it mentions,
// giving the embedding a tighter signal than the full posting.
type SkillExtractor struct {
	model ChatModel
}

// NewSkillExtractor returns an extractor backed by m.
func NewSkillExtractor(m ChatModel) *SkillExtractor {
	return &SkillExtractor{model: m}
}

// Extract returns the model's list of skill terms for description.
func (s *SkillExtractor) Extract(ctx context.Context, description string) (string, error) {
	reply, err := s.model.Generate(ctx, []*schema.Message{
		schema.UserMessage("Extract skill-related terms from the following job description: " + description),
	})
	if err != nil {
		return "", fmt.Errorf("recommend: skill extraction: %w", err)
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", fmt.Errorf("recommend: skill extraction: empty reply")
	}
	return strings.TrimSpace(reply.Content), nil
}
