// Package provider selects and constructs the chat model used for answer
// feedback and skill extraction.
// Supported backends: Ollama, OpenAI, Azure OpenAI, Volcengine Ark, Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds provider configuration resolved from environment variables or
// explicit caller-supplied values. Only the block matching Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate reports the first missing or invalid setting for the selected
// backend, naming the env var that supplies it.
func (c *Config) Validate() error {
	missing := func(env string) error {
		return fmt.Errorf("provider: %s backend requires %s", c.Backend, env)
	}
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return missing("OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return missing("ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return missing("ARK_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing("GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q; valid values: %s", c.Backend, strings.Join(backendNames(), ", "))
	}

	if c.Tuning.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.Tuning.MaxTokens)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 2], got %g", c.Tuning.Temperature)
	}
	return nil
}

// ModelName returns the model or deployment name for the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

func backendNames() []string {
	return []string{
		string(BackendOllama), string(BackendOpenAI), string(BackendAzure),
		string(BackendArk), string(BackendGemini),
	}
}
