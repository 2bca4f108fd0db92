package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/cobra"

	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/logging"
)

// NewRecommendCmd constructs the `prepai recommend` command, which serves
// one question for a job description from the terminal.
func NewRecommendCmd() *cobra.Command {
	var session string
	var similar int

	cmd := &cobra.Command{
		Use:   "recommend [job description]",
		Short: "Recommend an interview question for a job description",
		Long: `Recommend the closest interview question for a job description.

The description is read from the arguments, or from stdin when none are
given. Questions served to --session are skipped until five newer ones have
been served; set SESSION_STORE=sqlite to keep that history between runs.

With --similar N the top N matches are listed instead and no session state
is read or written.

Examples:
  prepai recommend "Senior Go engineer, Kubernetes, gRPC, PostgreSQL"
  cat job.txt | prepai recommend --session alice
  prepai recommend --similar 5 "data engineer with Spark"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			description := strings.Join(args, " ")
			if description == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("recommend: failed to read stdin: %w", err)
				}
				description = string(b)
			}

			flush := setupTracing(log)
			defer flush()

			var chat model.BaseChatModel
			if config.Bool("RECOMMEND_EXTRACT_SKILLS") {
				m, _, err := buildChatModel(ctx, log)
				if err != nil {
					log.Warn("recommend: chat model unavailable, skill extraction disabled", slog.Any("error", err))
				} else {
					chat = m
				}
			}

			c, err := buildComponents(ctx, chat, log)
			if err != nil {
				return fmt.Errorf("recommend: %w", err)
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if similar > 0 {
				matches, err := c.engine.Similar(ctx, description, similar)
				if err != nil {
					return fmt.Errorf("recommend: %w", err)
				}
				if len(matches) == 0 {
					fmt.Fprintln(out, "No questions available.")
					return nil
				}
				for i, m := range matches {
					fmt.Fprintf(out, "%d. %s\n", i+1, formatMatch(m))
				}
				return nil
			}

			m, ok, err := c.engine.Recommend(ctx, session, description)
			if err != nil {
				return fmt.Errorf("recommend: %w", err)
			}
			if !ok {
				fmt.Fprintln(out, "No questions available for this job description.")
				return nil
			}
			fmt.Fprintln(out, formatMatch(m))
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", defaultCLISession(), "Session whose recent questions are skipped")
	cmd.Flags().IntVar(&similar, "similar", 0, "List the top N matches without session state")

	return cmd
}

// defaultCLISession scopes terminal sessions to the current user.
func defaultCLISession() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli-" + u
	}
	return "cli"
}

func formatMatch(m corpus.Match) string {
	q := m.Question
	var labels []string
	if q.Topic != "" {
		labels = append(labels, q.Topic)
	}
	if q.Difficulty != "" {
		labels = append(labels, q.Difficulty)
	}
	s := fmt.Sprintf("[#%d] %s", q.ID, q.Text)
	if len(labels) > 0 {
		s += " (" + strings.Join(labels, ", ") + ")"
	}
	return fmt.Sprintf("%s  distance=%.4f", s, m.Distance)
}
