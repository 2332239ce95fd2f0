package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbase-ai/kbq-go/internal/embedder"
	"github.com/kbase-ai/kbq-go/internal/logging"
)

// NewStatusCmd constructs the `kbq status` command, which reports the health
// of the vector index and the sizes of the local stores.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base health and sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			fmt.Printf("embedding:  %s (%s, %d dimensions)\n",
				embedder.Backend(),
				getEnvOrDefault("EMBEDDING_MODEL", "default"),
				getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embedder.Backend())),
			)

			ix, err := buildIndex(logging.Component(log, "vecindex"))
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer ix.Close()

			host := getEnvOrDefault("QDRANT_HOST", "localhost")
			port := getEnvInt("QDRANT_PORT", 6334)
			collection := getEnvOrDefault("QDRANT_COLLECTION", "kbq-knowledge")

			if !ix.HealthCheck(ctx) {
				fmt.Printf("qdrant:     unreachable (%s:%d)\n", host, port)
				return fmt.Errorf("status: qdrant at %s:%d is not reachable", host, port)
			}
			fmt.Printf("qdrant:     ok (%s:%d)\n", host, port)

			points, err := ix.Count(ctx, nil)
			if err != nil {
				fmt.Printf("collection: %s (point count unavailable: %v)\n", collection, err)
			} else {
				fmt.Printf("collection: %s (%d points)\n", collection, points)
			}

			store, err := openDocStore()
			if err != nil {
				return fmt.Errorf("status: open document store: %w", err)
			}
			defer store.Close()

			docs, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("status: list documents: %w", err)
			}
			fmt.Printf("documents:  %d\n", len(docs))

			return nil
		},
	}
}
