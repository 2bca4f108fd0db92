package provider

import (
	"context"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/prepai-go/internal/config"
)

// ConfigFromEnv resolves a Config from environment variables.
//
// Environment variables:
//
//	MODEL_PROVIDER = ollama | openai | azure | ark | gemini (default: ollama)
//
//	Ollama: OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: mistral)
//	OpenAI: OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini)
//	Azure:  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	        AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ark:    ARK_API_KEY, ARK_MODEL, ARK_BASE_URL (optional)
//	Gemini: GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-flash)
//
//	Shared: MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(config.String("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  config.String("OLLAMA_HOST", "http://localhost:11434"),
			Model: config.String("OLLAMA_MODEL", "mistral"),
		},
		OpenAI: ProviderOpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  config.String("OPENAI_MODEL", "gpt-4o-mini"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: config.String("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Ark: ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  config.String("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Tuning: SharedTuning{
			MaxTokens:   config.Int("MODEL_MAX_TOKENS", 1024),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		},
	}
}

// NewFromEnv constructs a chat model from [ConfigFromEnv].
func NewFromEnv(ctx context.Context) (model.BaseChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return newGemini(ctx, cfg)
	}
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
