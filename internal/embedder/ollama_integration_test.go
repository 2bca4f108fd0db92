//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/54b3r/prepai-go/internal/vector"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end to end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	emb := NewOllamaEmbedder(&OllamaConfig{
		Host:  host,
		Model: model,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	job := "Backend engineer: Go, gRPC services, PostgreSQL tuning, Kubernetes operations."
	questions := []string{
		"How would you find a goroutine leak in a long-running gRPC service?",
		"Describe the life cycle of a React component.",
	}

	embeddings, err := emb.Embed(ctx, append([]string{job}, questions...))
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(embeddings))
	}

	dim := len(embeddings[0])
	vecs := make([]vector.Vector, len(embeddings))
	for i, raw := range embeddings {
		v, err := vector.New(raw, dim)
		if err != nil {
			t.Fatalf("embedding[%d]: %v", i, err)
		}
		vecs[i] = v
	}

	// The Go question must sit closer to a Go job than the frontend one.
	near := vector.Euclidean(vecs[0], vecs[1])
	far := vector.Euclidean(vecs[0], vecs[2])
	t.Logf("model=%s dim=%d near=%.4f far=%.4f", model, dim, near, far)
	if near >= far {
		t.Errorf("expected the Go question to be nearer the job description (near=%.4f far=%.4f)", near, far)
	}
}
