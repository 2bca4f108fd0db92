package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/prepai-go/internal/ingestion"
	"github.com/54b3r/prepai-go/internal/logging"
)

// NewIngestCmd constructs the `prepai ingest` command, which embeds question
// banks and stores them in the corpus.
func NewIngestCmd() *cobra.Command {
	var files []string
	var urls []string
	var question string
	var topic string
	var difficulty string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed interview questions and add them to the corpus",
		Long: `Embed interview questions and store them in the question corpus.

A question bank is a YAML (or JSON) document with a questions list:

  questions:
    - text: Explain the difference between a process and a thread.
      topic: operating systems
      difficulty: easy

Environment variables:
  CORPUS_BACKEND       postgres (default), qdrant or memory
  DATABASE_URL / PG_*  PostgreSQL connection (postgres backend)
  QDRANT_*             Qdrant connection (qdrant backend)
  EMBEDDING_PROVIDER   ollama (default), openai or azure

Examples:
  prepai ingest --file questions.yaml
  prepai ingest --url https://example.com/bank.json --concurrency 8
  prepai ingest --question "What is a goroutine leak?" --topic go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if len(files) == 0 && len(urls) == 0 && question == "" {
				return fmt.Errorf("ingest: at least one of --file, --url or --question is required")
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			store, err := buildCorpus(ctx, emb.Dimensions(), log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{Concurrency: concurrency})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var inputs []ingestion.QuestionInput
			for _, f := range files {
				batch, err := ingestion.LoadFile(f)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("question bank loaded", slog.String("file", f), slog.Int("questions", len(batch)))
				inputs = append(inputs, batch...)
			}
			for _, u := range urls {
				batch, err := pipeline.Fetch(ctx, u)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("question bank fetched", slog.String("url", u), slog.Int("questions", len(batch)))
				inputs = append(inputs, batch...)
			}
			if question != "" {
				inputs = append(inputs, ingestion.QuestionInput{Text: question, Topic: topic, Difficulty: difficulty})
			}

			log.Info("starting ingestion", slog.Int("questions", len(inputs)))

			results := pipeline.Ingest(ctx, inputs, func(r ingestion.Result) {
				if r.Err != nil {
					log.Warn("question failed", slog.String("text", r.Input.Text), slog.Any("error", r.Err))
					return
				}
				log.Debug("question stored", slog.Int64("id", r.Question.ID))
			})

			ok, failed := ingestion.Summary(results)
			log.Info("ingestion complete", slog.Int("stored", ok), slog.Int("failed", failed))
			if err := ingestion.Err(results); err != nil {
				return fmt.Errorf("ingest: %d of %d questions failed: %w", failed, len(results), err)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Question bank file (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Question bank URL (repeatable)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "A single question to add")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic label for --question")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Difficulty label for --question")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Number of questions embedded in parallel")

	return cmd
}
