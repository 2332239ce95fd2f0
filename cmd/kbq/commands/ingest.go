package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbase-ai/kbq-go/internal/chunker"
	"github.com/kbase-ai/kbq-go/internal/embedder"
	"github.com/kbase-ai/kbq-go/internal/ingestion"
	"github.com/kbase-ai/kbq-go/internal/logging"
	"github.com/kbase-ai/kbq-go/internal/rag"
	"github.com/kbase-ai/kbq-go/internal/tokens"
)

// NewIngestCmd constructs the `kbq ingest` command, which loads documents
// into the document store and indexes them into the vector store.
func NewIngestCmd() *cobra.Command {
	var (
		dir      string
		strategy string
		size     int
		overlap  int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the knowledge base",
		Long: `Load documents and index them: each document is normalized, chunked,
embedded, and upserted into the Qdrant collection. Files loaded with
--dir are also saved to the local document store so 'kbq reindex' can
rebuild the index later without re-reading the filesystem.

With no --dir, the documents already in the store are (re-)indexed.

Examples:
  kbq ingest --dir ./docs
  kbq ingest --dir ./docs --strategy token_aware --chunk-size 300
  kbq ingest                      # re-index the document store`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, err := openDocStore()
			if err != nil {
				return fmt.Errorf("ingest: open document store: %w", err)
			}
			defer store.Close()

			var docs []rag.Document
			if dir != "" {
				loaded, err := ingestion.LoadDirectory(dir)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				for _, doc := range loaded {
					// Upsert into the store: update existing ids, create new ones.
					_, err := store.Update(ctx, doc.ID, doc)
					if errors.Is(err, rag.ErrNotFound) {
						_, err = store.Create(ctx, doc)
					}
					if err != nil {
						return fmt.Errorf("ingest: store %s: %w", doc.ID, err)
					}
				}
				docs = loaded
				log.Info("documents loaded", "dir", dir, "count", len(docs))
			} else {
				docs, err = store.List(ctx)
				if err != nil {
					return fmt.Errorf("ingest: list documents: %w", err)
				}
				if len(docs) == 0 {
					return fmt.Errorf("ingest: document store is empty; use --dir to load files")
				}
			}

			emb, err := embedder.NewFromEnv(logging.Component(log, "embedder"))
			if err != nil {
				return fmt.Errorf("ingest: initialise embedder: %w", err)
			}

			ix, err := buildIndex(logging.Component(log, "vecindex"))
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer ix.Close()

			if err := ix.EnsureCollection(ctx); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			opts := chunker.Options{
				Strategy:     chunker.Strategy(strategy),
				MaxChunkSize: size,
				OverlapSize:  overlap,
			}
			var codec chunker.TokenCodec
			if opts.Strategy == chunker.StrategyTokenAware {
				// Chunks are sized for the embedding model, so the
				// tokenizer must match its vocabulary, not the LLM's.
				c, err := tokens.ForModel(embedder.Model())
				if err != nil {
					return fmt.Errorf("ingest: load tokenizer: %w", err)
				}
				codec = c
			}

			pipe, err := ingestion.NewPipeline(emb, ix, opts, codec, logging.Component(log, "ingestion"))
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			stats, err := pipe.IngestAll(ctx, docs, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("ingested %d documents (%d chunks, %d skipped)\n",
				stats.Documents, stats.Chunks, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of .md/.txt files to load and index")
	cmd.Flags().StringVar(&strategy, "strategy", getEnvOrDefault("KBQ_CHUNK_STRATEGY", "sentence_boundary"), "Chunking strategy (fixed_size, sentence_boundary, token_aware, semantic)")
	cmd.Flags().IntVar(&size, "chunk-size", getEnvInt("KBQ_CHUNK_SIZE", 1000), "Maximum chunk size in characters (tokens for token_aware)")
	cmd.Flags().IntVar(&overlap, "overlap", getEnvInt("KBQ_CHUNK_OVERLAP", 100), "Overlap between consecutive chunks")

	return cmd
}
