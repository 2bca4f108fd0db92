package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/prepai-go/internal/config"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted at startup.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedder configuration is usable before any
// component is constructed. It returns an error if the configuration is
// clearly broken (e.g. azure embedder with no API key), and logs a warning if
// EMBEDDING_MODEL looks like a chat model rather than an embedding model.
//
// Call it at startup so operators get a clear error rather than a cryptic
// failure during the first recommendation.
func Validate(log *slog.Logger) error {
	backend := Backend()

	// A chat backend inherited as the embedding backend is a common
	// misconfiguration worth surfacing.
	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}

	switch backend {
	case "ollama":
	case "openai":
		if config.String("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")) == "" {
			return fmt.Errorf("embedder: no OpenAI API key found; set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if config.String("EMBEDDING_API_KEY", os.Getenv("AZURE_OPENAI_API_KEY")) == "" {
			return fmt.Errorf("embedder: no Azure API key found; set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if config.String("EMBEDDING_ENDPOINT", os.Getenv("AZURE_OPENAI_ENDPOINT")) == "" {
			return fmt.Errorf("embedder: no Azure endpoint found; set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: backend %q cannot produce embeddings; set EMBEDDING_PROVIDER to ollama, openai or azure", backend)
	}

	if dims := config.Int("EMBEDDING_DIMENSIONS", 0); os.Getenv("EMBEDDING_DIMENSIONS") != "" && dims <= 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must be a positive integer, got %q", os.Getenv("EMBEDDING_DIMENSIONS"))
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
