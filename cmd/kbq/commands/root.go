// Package commands defines all Cobra CLI commands for the kbq binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/kbase-ai/kbq-go/internal/audit"
	"github.com/kbase-ai/kbq-go/internal/config"
	"github.com/kbase-ai/kbq-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbq",
		Short: "kbq — retrieval-augmented answers from your own knowledge base",
		Long: `kbq ingests your documents into a Qdrant vector index and answers
natural language questions grounded in the retrieved content.

Documents live in a local SQLite store; 'kbq ingest' chunks and embeds
them into the index, and 'kbq ask' retrieves the most relevant chunks
and generates an answer with source attribution. Every query is recorded
in a local query log ('kbq logs').

Configuration comes from env vars or a YAML config file
(~/.kbq/config.yaml). See 'kbq --help' for available commands.`,
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

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.kbq/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewReindexCmd(),
		NewStatusCmd(),
		NewLogsCmd(),
		NewVersionCmd(),
	)

	return root
}
