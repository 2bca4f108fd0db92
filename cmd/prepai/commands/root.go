// Package commands defines all Cobra CLI commands for the prepai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/prepai-go/internal/audit"
	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prepai",
		Short: "PrepAI recommends interview questions for a job description",
		Long: `PrepAI matches a job description against a bank of interview questions
and serves the closest one, skipping the last five questions the session has
already seen. Candidate answers are reviewed by an LLM.

Model and embedding providers are selected via environment variables
(MODEL_PROVIDER, EMBEDDING_PROVIDER) or a YAML config file
(~/.prepai/config.yaml). See 'prepai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.prepai/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewRecommendCmd(),
		NewFeedbackCmd(),
		NewVersionCmd(),
	)

	return root
}
