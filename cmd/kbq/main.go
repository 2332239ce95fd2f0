// Command kbq is the entry point for the knowledge base query pipeline.
// It ingests documents into a Qdrant-backed vector index and answers
// natural language questions grounded in the retrieved content.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kbase-ai/kbq-go/cmd/kbq/commands"
)

func main() {
	// Load .env if present (local dev convenience; real env always wins).
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
