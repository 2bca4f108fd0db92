package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/embedder"
	"github.com/54b3r/prepai-go/internal/provider"
	"github.com/54b3r/prepai-go/internal/recency"
	"github.com/54b3r/prepai-go/internal/recommend"
	"github.com/54b3r/prepai-go/internal/server"
	"github.com/54b3r/prepai-go/internal/tracing"
)

// buildEmbedder checks the embedding configuration and constructs the
// dimension-validating embedder shared by recommend and ingest.
func buildEmbedder(log *slog.Logger) (*embedder.Validated, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewValidatedFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", embedder.Backend()),
		slog.Int("dimensions", emb.Dimensions()),
	)
	return emb, nil
}

// buildCorpus opens the question store selected by CORPUS_BACKEND
// (postgres, qdrant or memory). The memory backend starts empty and is only
// useful for local experiments.
func buildCorpus(ctx context.Context, dim int, log *slog.Logger) (corpus.Store, error) {
	backend := config.String("CORPUS_BACKEND", "postgres")
	switch backend {
	case "postgres":
		store, err := corpus.OpenPostgres(ctx, corpus.PostgresConfig{
			DSN:        corpus.PostgresDSNFromEnv(),
			Dimensions: dim,
		})
		if err != nil {
			return nil, err
		}
		log.Info("corpus: postgres store ready", slog.Int("dimensions", dim))
		return store, nil

	case "qdrant":
		cfg := &corpus.QdrantConfig{
			Host:       config.String("QDRANT_HOST", "localhost"),
			Port:       config.Int("QDRANT_PORT", 6334),
			Collection: config.String("QDRANT_COLLECTION", "questions"),
			VectorSize: uint64(dim), //nolint:gosec // dimensions are validated positive
			APIKey:     config.String("QDRANT_API_KEY", ""),
			UseTLS:     config.Bool("QDRANT_TLS"),
		}
		store, err := corpus.NewQdrantStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		log.Info("corpus: qdrant store ready",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return store, nil

	case "memory":
		log.Warn("corpus: using in-memory store, questions are lost on exit")
		return corpus.NewMemoryStore(dim), nil

	default:
		return nil, fmt.Errorf("unknown CORPUS_BACKEND %q (want postgres, qdrant or memory)", backend)
	}
}

// buildTracker opens the session store selected by SESSION_STORE (memory or
// sqlite). SESSION_TTL sets the inactivity expiry for both.
func buildTracker(log *slog.Logger) (recency.Tracker, error) {
	ttl := config.Duration("SESSION_TTL", recency.DefaultTTL)
	backend := config.String("SESSION_STORE", "memory")
	switch backend {
	case "memory":
		return recency.NewMemoryTracker(ttl), nil

	case "sqlite":
		path := config.String("SESSION_DB", "")
		if path == "" {
			p, err := recency.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		t, err := recency.OpenSQLite(path, ttl, log)
		if err != nil {
			return nil, err
		}
		log.Info("sessions: sqlite store opened", slog.String("path", path), slog.Duration("ttl", ttl))
		return t, nil

	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q (want memory or sqlite)", backend)
	}
}

// buildChatModel constructs the chat model selected by MODEL_PROVIDER.
func buildChatModel(ctx context.Context, log *slog.Logger) (model.BaseChatModel, *provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	m, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)
	return m, cfg, nil
}

// setupTracing registers the Langfuse handler when configured. The returned
// function flushes pending traces and is always safe to call.
func setupTracing(log *slog.Logger) func() {
	handler, flush, ok := tracing.Setup()
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled")
	return flush
}

// components bundles the collaborators shared by serve and recommend.
type components struct {
	embedder *embedder.Validated
	corpus   corpus.Store
	tracker  recency.Tracker
	engine   *recommend.Engine
}

// Close releases the stores.
func (c *components) Close() error {
	return errors.Join(c.tracker.Close(), c.corpus.Close())
}

// buildComponents wires the embedder, corpus, tracker and engine. When
// RECOMMEND_EXTRACT_SKILLS is set and chat is non-nil, chat reduces each
// description to its skill terms before embedding.
func buildComponents(ctx context.Context, chat model.BaseChatModel, log *slog.Logger) (*components, error) {
	emb, err := buildEmbedder(log)
	if err != nil {
		return nil, err
	}
	store, err := buildCorpus(ctx, emb.Dimensions(), log)
	if err != nil {
		return nil, err
	}
	tracker, err := buildTracker(log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cfg := recommend.Config{
		Embedder:     emb,
		Corpus:       store,
		Recency:      tracker,
		EmbedTimeout: config.Duration("EMBED_TIMEOUT", recommend.DefaultEmbedTimeout),
		StoreTimeout: config.Duration("STORE_TIMEOUT", recommend.DefaultStoreTimeout),
		Logger:       log,
	}
	if config.Bool("RECOMMEND_EXTRACT_SKILLS") && chat != nil {
		cfg.Extractor = recommend.NewSkillExtractor(tracing.Wrap(chat, "skill-extraction"))
		log.Info("recommend: skill extraction enabled")
	}

	engine, err := recommend.New(cfg)
	if err != nil {
		_ = tracker.Close()
		_ = store.Close()
		return nil, err
	}
	return &components{embedder: emb, corpus: store, tracker: tracker, engine: engine}, nil
}

// buildPingers assembles the readiness probes for /api/ready: the corpus,
// the SQLite session store when used, and the Ollama daemon when either the
// chat model or the embedder runs on it.
func buildPingers(c *components, providerCfg *provider.Config) []server.Pinger {
	pingers := []server.Pinger{
		server.NewPinger("corpus", c.corpus.Ping),
	}
	if t, ok := c.tracker.(*recency.SQLiteTracker); ok {
		pingers = append(pingers, server.NewPinger("sessions", t.Ping))
	}

	usesOllama := embedder.Backend() == "ollama"
	host := config.String("OLLAMA_HOST", "http://localhost:11434")
	if providerCfg != nil && providerCfg.Backend == provider.BackendOllama {
		usesOllama = true
		host = providerCfg.Ollama.Host
	}
	if usesOllama {
		pingers = append(pingers, server.NewOllamaPinger(host))
	}
	return pingers
}
