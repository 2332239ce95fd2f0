package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kbase-ai/kbq-go/internal/embedder"
	"github.com/kbase-ai/kbq-go/internal/logging"
	"github.com/kbase-ai/kbq-go/internal/query"
	"github.com/kbase-ai/kbq-go/internal/querylog"
)

// NewAskCmd constructs the `kbq ask` command, which runs one question
// through the full retrieval pipeline and prints the answer.
func NewAskCmd() *cobra.Command {
	var (
		showSources bool
		limit       int
		threshold   float32
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the knowledge base",
		Long: `Ask a natural language question. The question is embedded, matched
against the vector index, and answered by the LLM using only the
retrieved content. The query and its outcome are recorded in the
query log.

Examples:
  kbq ask "what are your business hours?"
  kbq ask --sources "how do refunds work?"
  kbq ask --limit 3 --threshold 0.8 "shipping times to Europe"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := embedder.NewFromEnv(logging.Component(log, "embedder"))
			if err != nil {
				return fmt.Errorf("ask: initialise embedder: %w", err)
			}

			ix, err := buildIndex(logging.Component(log, "vecindex"))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer ix.Close()

			gen, err := buildGenerator(logging.Component(log, "answer"))
			if err != nil {
				return fmt.Errorf("ask: initialise generator: %w", err)
			}

			logs, err := openQueryLog()
			if err != nil {
				return fmt.Errorf("ask: open query log: %w", err)
			}
			defer logs.Close()

			svc, err := query.NewService(emb, ix, gen, logs, query.Options{
				Limit:          limit,
				ScoreThreshold: threshold,
			}, prometheus.DefaultRegisterer, logging.Component(log, "query"))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			res, err := svc.Ask(ctx, args[0], querylog.TypeText)
			if err != nil {
				// The degraded answer is still worth showing; the log record
				// carries the real failure.
				fmt.Println(res.Answer)
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(res.Answer)
			if showSources && len(res.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range res.Sources {
					title := src.Title
					if title == "" {
						title = src.ID
					}
					fmt.Printf("  %.2f  %s\n", src.Score, title)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the retrieved sources after the answer")
	cmd.Flags().IntVarP(&limit, "limit", "l", getEnvInt("KBQ_SEARCH_LIMIT", 0), "Maximum number of search results (default 5)")
	cmd.Flags().Float32VarP(&threshold, "threshold", "t", getEnvFloat32("KBQ_SCORE_THRESHOLD", 0), "Minimum similarity score (default 0.7)")

	return cmd
}
