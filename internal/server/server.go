// Package server implements the HTTP API for prepai: job description
// recommendations, answer feedback, question ingestion, health and metrics.
// The server is started by the `prepai serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/prepai-go/internal/logging"
)

// New constructs a Server from the provided collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Recommender == nil {
		return nil, fmt.Errorf("server: recommender must not be nil")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("server: scorer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		recommender: deps.Recommender,
		scorer:      deps.Scorer,
		ingester:    deps.Ingester,
		cfg:         cfg,
		log:         log,
		pingers:     cfg.Pingers,
		metrics:     newServerMetrics(cfg.MetricsRegistry),
	}

	s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rateLimitedTotal)

	if cfg.APIKey == "" && deps.Ingester != nil {
		log.Warn("server: PREPAI_API_KEY is not set, POST /questions is unauthenticated")
	}

	// throttled wraps the routes that reach the embedder or the chat model.
	throttled := func(name string, h http.Handler) http.Handler {
		return s.instrument(name, s.limiter.middleware(name, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /jobs/parse", throttled("parse_job", s.sessionMiddleware(http.HandlerFunc(s.handleParseJob))))
	mux.Handle("POST /interview/submit-answer", throttled("submit_answer", http.HandlerFunc(s.handleSubmitAnswer)))
	mux.Handle("GET /questions/recommend", throttled("similar", http.HandlerFunc(s.handleSimilar)))
	if deps.Ingester != nil {
		mux.Handle("POST /questions", s.instrument("create_question", s.requireAPIKey(http.HandlerFunc(s.handleCreateQuestion))))
	}
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log, corsMiddleware(cfg.AllowedOrigins, mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.limiter.Stop()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
