// Package config provides YAML-based configuration for prepai.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so a deployment can override any file value.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. PREPAI_CONFIG environment variable
//  3. ~/.prepai/config.yaml
//  4. ./prepai.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the chat model used for feedback and skill extraction.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Corpus selects and configures the question store.
	Corpus CorpusConfig `yaml:"corpus"`

	// Session configures per-session recency tracking.
	Session SessionConfig `yaml:"session"`

	// Recommend configures the recommendation engine.
	Recommend RecommendConfig `yaml:"recommend"`

	// Feedback configures the answer scorer.
	Feedback FeedbackConfig `yaml:"feedback"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Ark    ArkConfig    `yaml:"ark"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds a single embedding call, e.g. "15s".
	Timeout string `yaml:"timeout"`
}

// CorpusConfig selects the question store backend.
type CorpusConfig struct {
	// Backend is one of postgres, qdrant, memory.
	Backend string `yaml:"backend"`
	// Timeout bounds a single store query, e.g. "5s".
	Timeout  string         `yaml:"timeout"`
	Postgres PostgresConfig `yaml:"postgres"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

// PostgresConfig holds pgvector-backed store settings.
// DatabaseURL wins over the discrete PG_* fields when both are present.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslmode"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// SessionConfig holds recency tracker settings.
type SessionConfig struct {
	// Store is memory or sqlite.
	Store string `yaml:"store"`
	// DBPath is the SQLite database path when Store is sqlite.
	DBPath string `yaml:"db_path"`
	// TTL is both the cookie max-age and the idle expiry of recency state.
	TTL string `yaml:"ttl"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	// ExtractSkills asks the chat model to reduce a job description to
	// skill terms before embedding it.
	ExtractSkills bool `yaml:"extract_skills"`
}

// FeedbackConfig holds answer scorer settings.
type FeedbackConfig struct {
	Timeout         string `yaml:"timeout"`
	MaxAnswerTokens int    `yaml:"max_answer_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Bearer token guarding question ingestion. Prefer env var PREPAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// AllowedOrigins is a comma-separated CORS allow-list.
	AllowedOrigins string `yaml:"allowed_origins"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBED_TIMEOUT", func(c *Config) string { return durationStr(c.Embedding.Timeout) }},
	{"CORPUS_BACKEND", func(c *Config) string { return c.Corpus.Backend }},
	{"STORE_TIMEOUT", func(c *Config) string { return durationStr(c.Corpus.Timeout) }},
	{"DATABASE_URL", func(c *Config) string { return c.Corpus.Postgres.DatabaseURL }},
	{"PG_USER", func(c *Config) string { return c.Corpus.Postgres.User }},
	{"PG_PASSWORD", func(c *Config) string { return c.Corpus.Postgres.Password }},
	{"PG_HOST", func(c *Config) string { return c.Corpus.Postgres.Host }},
	{"PG_PORT", func(c *Config) string { return intStr(c.Corpus.Postgres.Port) }},
	{"PG_DATABASE", func(c *Config) string { return c.Corpus.Postgres.Database }},
	{"PG_SSLMODE", func(c *Config) string { return c.Corpus.Postgres.SSLMode }},
	{"QDRANT_HOST", func(c *Config) string { return c.Corpus.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Corpus.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Corpus.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Corpus.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Corpus.Qdrant.TLS) }},
	{"SESSION_STORE", func(c *Config) string { return c.Session.Store }},
	{"SESSION_DB", func(c *Config) string { return c.Session.DBPath }},
	{"SESSION_TTL", func(c *Config) string { return durationStr(c.Session.TTL) }},
	{"RECOMMEND_EXTRACT_SKILLS", func(c *Config) string { return boolStr(c.Recommend.ExtractSkills) }},
	{"FEEDBACK_TIMEOUT", func(c *Config) string { return durationStr(c.Feedback.Timeout) }},
	{"FEEDBACK_MAX_ANSWER_TOKENS", func(c *Config) string { return intStr(c.Feedback.MaxAnswerTokens) }},
	{"PREPAI_HOST", func(c *Config) string { return c.Server.Host }},
	{"PREPAI_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"PREPAI_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"PREPAI_ALLOWED_ORIGINS", func(c *Config) string { return c.Server.AllowedOrigins }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	for _, d := range []struct{ key, val string }{
		{"embedding.timeout", cfg.Embedding.Timeout},
		{"corpus.timeout", cfg.Corpus.Timeout},
		{"session.ttl", cfg.Session.TTL},
		{"feedback.timeout", cfg.Feedback.Timeout},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return "", fmt.Errorf("config: %s: invalid duration %q: %w", d.key, d.val, err)
		}
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("PREPAI_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".prepai", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("prepai.yaml"); err == nil {
		return "prepai.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// durationStr normalises a YAML duration so "1m" and "60s" both reach the
// environment as Go duration syntax. Unparseable values pass through and are
// rejected by Load before they are applied.
func durationStr(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return v
	}
	return d.String()
}
