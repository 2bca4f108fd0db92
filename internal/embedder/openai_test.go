package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{2, 2}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 1}},
			},
		})
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
	})
	got, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not placed by index: %v", got)
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "x", Model: "m"})
	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestOpenAIEmbedder_NoTexts(t *testing.T) {
	t.Parallel()
	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: "http://127.0.0.1:1", APIKey: "x", Model: "m"})
	if _, err := emb.Embed(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
