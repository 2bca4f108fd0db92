package embedder

import (
	"fmt"

	"github.com/54b3r/prepai-go/internal/config"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Backend resolves the effective embedding backend: EMBEDDING_PROVIDER, then
// MODEL_PROVIDER, then ollama.
func Backend() string {
	return config.String("EMBEDDING_PROVIDER", config.String("MODEL_PROVIDER", "ollama"))
}

// DefaultDimensions returns the correct default embedding vector size for the
// given backend name. The corpus store schema and the validated embedder must
// agree on this value. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := config.Int("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs an [Embedder] using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER (default: ollama)
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions (ollama: 768, openai/azure: 1536)
func NewFromEnv() (Embedder, error) {
	backend := Backend()

	switch backend {
	case "ollama":
		host := config.String("EMBEDDING_ENDPOINT", config.String("OLLAMA_HOST", "http://localhost:11434"))
		return NewOllamaEmbedder(&OllamaConfig{
			Host:      host,
			Model:     config.String("EMBEDDING_MODEL", defaultOllamaModel),
			BatchSize: config.Int("EMBEDDING_BATCH_SIZE", defaultOllamaBatch),
			KeepAlive: config.String("OLLAMA_KEEP_ALIVE", ""),
		}), nil

	case "openai":
		apiKey := config.String("EMBEDDING_API_KEY", config.String("OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    config.String("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      config.String("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: config.Int("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}), nil

	case "azure":
		apiKey := config.String("EMBEDDING_API_KEY", config.String("AZURE_OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := config.String("EMBEDDING_ENDPOINT", config.String("AZURE_OPENAI_ENDPOINT", ""))
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      config.String("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: config.Int("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
			Azure:      true,
			APIVersion: config.String("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	case "ark", "gemini":
		return nil, fmt.Errorf("embedder: %s embedding is not supported; set EMBEDDING_PROVIDER to ollama, openai or azure", backend)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q; valid values: ollama, openai, azure", backend)
	}
}

// NewValidatedFromEnv builds the backend from the environment and wraps it in
// a [Validated] embedder sized by [DefaultDimensions].
func NewValidatedFromEnv() (*Validated, error) {
	inner, err := NewFromEnv()
	if err != nil {
		return nil, err
	}
	return NewValidated(inner, DefaultDimensions(Backend()))
}
