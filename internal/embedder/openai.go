package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements [Embedder] against the OpenAI or Azure OpenAI
// embeddings API through the go-openai client. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the configured go-openai client.
	client *openai.Client
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: the resource endpoint, "https://<resource>.openai.azure.com".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name. For Azure it is also the deployment name.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	// Ignored when Azure is false.
	APIVersion string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	var clientConfig openai.ClientConfig
	if cfg.Azure {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	} else {
		clientConfig.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("openai embedder: no texts provided")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}
