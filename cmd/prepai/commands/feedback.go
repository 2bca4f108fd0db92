package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/embedder"
	"github.com/54b3r/prepai-go/internal/feedback"
	"github.com/54b3r/prepai-go/internal/logging"
	"github.com/54b3r/prepai-go/internal/tracing"
)

// NewFeedbackCmd constructs the `prepai feedback` command, which reviews an
// answer from the terminal.
func NewFeedbackCmd() *cobra.Command {
	var questionID int64
	var question string
	var answerFile string

	cmd := &cobra.Command{
		Use:   "feedback [answer]",
		Short: "Review an answer to an interview question",
		Long: `Ask the chat model to review an answer for correctness, efficiency and
code quality, with suggestions for improvement.

The question is given as text with --question, or looked up in the corpus
with --id. The answer is read from the arguments, from --answer-file, or
from stdin.

Examples:
  prepai feedback --id 42 "Use a buffered channel and close it from the sender."
  prepai feedback --question "Reverse a linked list" --answer-file answer.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if (question == "") == (questionID == 0) {
				return fmt.Errorf("feedback: exactly one of --question or --id is required")
			}

			answer, err := readAnswer(cmd, args, answerFile)
			if err != nil {
				return fmt.Errorf("feedback: %w", err)
			}

			if questionID != 0 {
				store, err := buildCorpus(ctx, embedder.DefaultDimensions(embedder.Backend()), log)
				if err != nil {
					return fmt.Errorf("feedback: %w", err)
				}
				q, found, err := store.Get(ctx, questionID)
				_ = store.Close()
				if err != nil {
					return fmt.Errorf("feedback: %w", err)
				}
				if !found {
					return fmt.Errorf("feedback: question %d not found", questionID)
				}
				question = q.Text
			}

			flush := setupTracing(log)
			defer flush()

			chat, _, err := buildChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("feedback: %w", err)
			}
			scorer, err := feedback.NewScorer(feedback.Config{
				Model:           tracing.Wrap(chat, "feedback"),
				Timeout:         config.Duration("FEEDBACK_TIMEOUT", feedback.DefaultTimeout),
				MaxAnswerTokens: config.Int("FEEDBACK_MAX_ANSWER_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("feedback: %w", err)
			}

			fb := scorer.Score(ctx, question, answer)
			if fb.Truncated {
				log.Warn("feedback: answer was truncated to fit the model budget")
			}
			fmt.Fprintln(cmd.OutOrStdout(), fb.Text)
			if fb.Degraded {
				log.Warn("feedback: model unavailable", slog.String("result", "fallback"))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&questionID, "id", 0, "Corpus id of the question")
	cmd.Flags().StringVar(&question, "question", "", "Question text")
	cmd.Flags().StringVar(&answerFile, "answer-file", "", "Read the answer from this file")

	return cmd
}

// readAnswer resolves the answer from args, file or stdin, in that order.
func readAnswer(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(b), nil
}
