package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewLogsCmd constructs the `kbq logs` command, which prints recent query
// log records.
func NewLogsCmd() *cobra.Command {
	var (
		limit int
		id    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent queries and their outcomes",
		Long: `Print recent records from the query log, newest first. Each record
shows when the query ran, how long it took, how many documents were
retrieved, and whether it succeeded.

Use --id to print one record in full, including the answer text.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			logs, err := openQueryLog()
			if err != nil {
				return fmt.Errorf("logs: open query log: %w", err)
			}
			defer logs.Close()

			if id != "" {
				rec, err := logs.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("logs: %w", err)
				}
				fmt.Printf("id:        %s\n", rec.ID)
				fmt.Printf("time:      %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("type:      %s\n", rec.Type)
				fmt.Printf("duration:  %s\n", rec.Duration)
				fmt.Printf("documents: %d\n", rec.Documents)
				fmt.Printf("query:     %s\n", rec.Query)
				if rec.Error != "" {
					fmt.Printf("error:     %s\n", rec.Error)
				} else {
					fmt.Printf("answer:    %s\n", rec.Answer)
				}
				return nil
			}

			recs, err := logs.List(ctx, limit)
			if err != nil {
				return fmt.Errorf("logs: %w", err)
			}
			if len(recs) == 0 {
				fmt.Println("no queries logged yet")
				return nil
			}
			for _, rec := range recs {
				outcome := "ok"
				if rec.Error != "" {
					outcome = "error"
				}
				fmt.Printf("%s  %s  %-5s  %6s  %2d docs  %s\n",
					rec.ID,
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					outcome,
					rec.Duration.Truncate(time.Millisecond),
					rec.Documents,
					truncate(rec.Query, 60),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of records to show")
	cmd.Flags().StringVar(&id, "id", "", "Show a single record in full")

	return cmd
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
