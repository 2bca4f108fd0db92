package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultOllamaBatch caps the inputs sent in one /api/embed call. Bulk
	// ingestion of a question bank is split into requests of this size.
	defaultOllamaBatch = 32
	// defaultOllamaTimeout bounds one /api/embed call.
	defaultOllamaTimeout = 60 * time.Second
	// maxOllamaErrorBody caps how much of an error response is read.
	maxOllamaErrorBody = 4 << 10
)

// OllamaEmbedder implements [Embedder] on the Ollama /api/embed endpoint.
// Inputs longer than the model's context are truncated server-side, so a
// long job description still embeds. Safe for concurrent use.
type OllamaEmbedder struct {
	host      string
	model     string
	batch     int
	keepAlive string
	client    *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// BatchSize caps inputs per request. Defaults to 32.
	BatchSize int
	// Timeout bounds each request. Defaults to 60s.
	Timeout time.Duration
	// KeepAlive is passed through to Ollama (e.g. "10m") to keep the model
	// loaded between recommendations. Empty uses the server default.
	KeepAlive string
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		host:      strings.TrimRight(cfg.Host, "/"),
		model:     cfg.Model,
		batch:     cfg.BatchSize,
		keepAlive: cfg.KeepAlive,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if e.batch <= 0 {
		e.batch = defaultOllamaBatch
	}
	if e.client.Timeout <= 0 {
		e.client.Timeout = defaultOllamaTimeout
	}
	return e
}

type ollamaEmbedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one embedding per text, in input order. Batches larger than
// the configured size are sent as several requests; any failure fails the
// whole call.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batch {
		end := min(start+e.batch, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{
		Model:     e.model,
		Input:     texts,
		Truncate:  true,
		KeepAlive: e.keepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ollama embedder: %s", ollamaErrorMessage(resp))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, v := range result.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama embedder: embedding %d is empty", i)
		}
	}
	return result.Embeddings, nil
}

// ollamaErrorMessage prefers Ollama's {"error": ...} body over the bare
// status, e.g. `model "nomic-embed-text" not found, try pulling it first`.
func ollamaErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxOllamaErrorBody))
	var e ollamaEmbedResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
