package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kaikaijiang/Instant-RAG/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "instaragd",
		Short: "Instant-RAG daemon",
		Long:  "Instant-RAG daemon for running the project-scoped RAG API server",
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
