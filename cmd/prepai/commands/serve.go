package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/feedback"
	"github.com/54b3r/prepai-go/internal/ingestion"
	"github.com/54b3r/prepai-go/internal/logging"
	"github.com/54b3r/prepai-go/internal/recency"
	"github.com/54b3r/prepai-go/internal/server"
	"github.com/54b3r/prepai-go/internal/tracing"
)

// startupProbeTimeout bounds the dependency check run before listening.
const startupProbeTimeout = 10 * time.Second

// NewServeCmd constructs the `prepai serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PrepAI HTTP server",
		Long: `Start the PrepAI HTTP server.

Endpoints:
  POST /jobs/parse              recommend a question for a job description
  POST /interview/submit-answer review an answer to a question
  GET  /questions/recommend     top matches for ?q= (no session state)
  POST /questions               add a question (Bearer PREPAI_API_KEY)
  GET  /api/health, /api/ready  liveness and readiness
  GET  /metrics                 Prometheus metrics

Examples:
  prepai serve
  prepai serve --port 9090
  CORPUS_BACKEND=qdrant SESSION_STORE=sqlite prepai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := setupTracing(log)
			defer flush()

			chat, providerCfg, err := buildChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			c, err := buildComponents(ctx, chat, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if cerr := c.Close(); cerr != nil {
					log.Warn("serve: close failed", slog.Any("error", cerr))
				}
			}()

			scorer, err := feedback.NewScorer(feedback.Config{
				Model:           tracing.Wrap(chat, "feedback"),
				Timeout:         config.Duration("FEEDBACK_TIMEOUT", feedback.DefaultTimeout),
				MaxAnswerTokens: config.Int("FEEDBACK_MAX_ANSWER_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(c.embedder, c.corpus, nil)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := buildPingers(c, providerCfg)
			probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
			if perr := server.NewMultiPinger(pingers...).Ping(probeCtx); perr != nil {
				log.Warn("serve: dependency not ready at startup", slog.Any("error", perr))
			}
			cancel()

			if !cmd.Flags().Changed("host") {
				host = config.String("PREPAI_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = config.Int("PREPAI_PORT", port)
			}

			srv, err := server.New(server.Deps{
				Recommender: c.engine,
				Scorer:      scorer,
				Ingester:    pipeline,
			}, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        pingers,
				APIKey:         config.String("PREPAI_API_KEY", ""),
				AllowedOrigins: server.ParseOrigins(config.String("PREPAI_ALLOWED_ORIGINS", "")),
				SessionTTL:     config.Duration("SESSION_TTL", recency.DefaultTTL),
				SecureCookie:   config.Bool("PREPAI_SECURE_COOKIE"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: PREPAI_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: PREPAI_PORT)")

	return cmd
}
