package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ollamaStub answers /api/embed with one [len(text), 1, 0] vector per input
// and records the request sizes it saw.
type ollamaStub struct {
	mu       sync.Mutex
	batches  []int
	requests []ollamaEmbedRequest
}

func (s *ollamaStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/embed" {
		http.NotFound(w, r)
		return
	}
	var req ollamaEmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.batches = append(s.batches, len(req.Input))
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	out := ollamaEmbedResponse{}
	for _, in := range req.Input {
		out.Embeddings = append(out.Embeddings, []float32{float32(len(in)), 1, 0})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()
	stub := &ollamaStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text", KeepAlive: "10m"})
	got, err := emb.Embed(context.Background(), []string{"go", "kubernetes"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1, 0}, {10, 1, 0}}, got)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	assert.Equal(t, "nomic-embed-text", req.Model)
	assert.True(t, req.Truncate, "long job descriptions must be truncated server-side")
	assert.Equal(t, "10m", req.KeepAlive)
}

func TestOllamaEmbedder_SplitsBatches(t *testing.T) {
	t.Parallel()
	stub := &ollamaStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = strings.Repeat("q", i+1)
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m", BatchSize: 3})
	got, err := emb.Embed(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, stub.batches)
	require.Len(t, got, 7)
	for i, v := range got {
		assert.Equal(t, float32(i+1), v[0], "embedding %d out of order", i)
	}
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model \"nomic-embed-text\" not found"}`, `HTTP 404: model "nomic-embed-text" not found`},
		{"plain error", http.StatusBadGateway, `upstream`, "HTTP 502"},
		{"count mismatch", http.StatusOK, `{"embeddings":[[1,2,3]]}`, "expected 2 embeddings, got 1"},
		{"empty vector", http.StatusOK, `{"embeddings":[[1],[]]}`, "embedding 1 is empty"},
		{"bad json", http.StatusOK, `{"embeddings":`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
			_, err := emb.Embed(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	t.Parallel()
	emb := NewOllamaEmbedder(&OllamaConfig{Host: "http://ollama:11434/", Model: "m"})
	assert.Equal(t, "http://ollama:11434", emb.host)
	assert.Equal(t, defaultOllamaBatch, emb.batch)
	assert.Equal(t, defaultOllamaTimeout, emb.client.Timeout)
}
