package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbase-ai/kbq-go/internal/chunker"
	"github.com/kbase-ai/kbq-go/internal/embedder"
	"github.com/kbase-ai/kbq-go/internal/ingestion"
	"github.com/kbase-ai/kbq-go/internal/logging"
	"github.com/kbase-ai/kbq-go/internal/tokens"
)

// NewReindexCmd constructs the `kbq reindex` command, which drops the vector
// collection and rebuilds it from the document store.
func NewReindexCmd() *cobra.Command {
	var (
		yes      bool
		snapshot bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Drop the vector collection and rebuild it from the document store",
		Long: `Destructively drop the Qdrant collection, recreate it empty, and
re-ingest every document in the local document store. Use after changing
the embedding model, vector dimension, or chunking strategy.

The command asks for confirmation unless --yes is given. Pass --snapshot to
take a server-side snapshot of the collection before it is dropped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if !yes {
				fmt.Print("This drops the vector collection and rebuilds it. Continue? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				line, _ := reader.ReadString('\n')
				answer := strings.ToLower(strings.TrimSpace(line))
				if answer != "y" && answer != "yes" {
					fmt.Println("aborted")
					return nil
				}
			}

			store, err := openDocStore()
			if err != nil {
				return fmt.Errorf("reindex: open document store: %w", err)
			}
			defer store.Close()

			docs, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("reindex: list documents: %w", err)
			}

			emb, err := embedder.NewFromEnv(logging.Component(log, "embedder"))
			if err != nil {
				return fmt.Errorf("reindex: initialise embedder: %w", err)
			}

			ix, err := buildIndex(logging.Component(log, "vecindex"))
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			defer ix.Close()

			if snapshot {
				name, err := ix.Snapshot(ctx)
				if err != nil {
					return fmt.Errorf("reindex: snapshot before drop: %w", err)
				}
				log.Info("snapshot created", "name", name)
			}

			if err := ix.ReindexAll(ctx); err != nil {
				return fmt.Errorf("reindex: recreate collection: %w", err)
			}
			log.Info("collection recreated empty", "documents_to_index", len(docs))

			if len(docs) == 0 {
				fmt.Println("collection recreated; document store is empty")
				return nil
			}

			opts := chunker.Options{
				Strategy:     chunker.Strategy(getEnvOrDefault("KBQ_CHUNK_STRATEGY", "sentence_boundary")),
				MaxChunkSize: getEnvInt("KBQ_CHUNK_SIZE", 1000),
				OverlapSize:  getEnvInt("KBQ_CHUNK_OVERLAP", 100),
			}
			var codec chunker.TokenCodec
			if opts.Strategy == chunker.StrategyTokenAware {
				// Tokenizer vocabulary must match the embedding model.
				c, err := tokens.ForModel(embedder.Model())
				if err != nil {
					return fmt.Errorf("reindex: load tokenizer: %w", err)
				}
				codec = c
			}

			pipe, err := ingestion.NewPipeline(emb, ix, opts, codec, logging.Component(log, "ingestion"))
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			stats, err := pipe.IngestAll(ctx, docs, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			fmt.Printf("reindexed %d documents (%d chunks, %d skipped)\n",
				stats.Documents, stats.Chunks, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Create a server-side snapshot before dropping the collection")

	return cmd
}
