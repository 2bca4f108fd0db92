// Package embedder converts text into dense vector embeddings. Backends
// (Ollama over plain HTTP, OpenAI and Azure OpenAI through go-openai) satisfy
// [Embedder]; [Validated] wraps any of them and enforces the configured
// dimensionality at the boundary of the recommendation core.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/vector"
)

// Embedder converts a batch of texts into embeddings. The returned slice is
// parallel to the input slice. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Validated wraps an Embedder and turns raw float slices into [vector.Vector]
// values of a fixed dimension.
type Validated struct {
	inner Embedder
	dim   int
}

// NewValidated returns a Validated embedder. dim must be positive.
func NewValidated(inner Embedder, dim int) (*Validated, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: nil backend")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedder: dimensions must be positive, got %d", dim)
	}
	return &Validated{inner: inner, dim: dim}, nil
}

// Dimensions returns the enforced vector length.
func (v *Validated) Dimensions() int { return v.dim }

// EmbedText embeds a single text. Backend failures, empty responses and
// malformed vectors are all reported as [apperror.ErrEmbeddingUnavailable].
func (v *Validated) EmbedText(ctx context.Context, text string) (vector.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return vector.Vector{}, fmt.Errorf("embedder: empty text: %w", apperror.ErrInvalidInput)
	}
	out, err := v.EmbedBatch(ctx, []string{text})
	if err != nil {
		return vector.Vector{}, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts and validates every returned vector.
func (v *Validated) EmbedBatch(ctx context.Context, texts []string) ([]vector.Vector, error) {
	raw, err := v.inner.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", apperror.ErrEmbeddingUnavailable, err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedder: %w: expected %d embeddings, got %d",
			apperror.ErrEmbeddingUnavailable, len(texts), len(raw))
	}
	out := make([]vector.Vector, len(raw))
	for i, r := range raw {
		vec, err := vector.New(r, v.dim)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w: embedding %d: %w", apperror.ErrEmbeddingUnavailable, i, err)
		}
		out[i] = vec
	}
	return out, nil
}
