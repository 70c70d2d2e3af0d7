package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "archive-importer",
	Short: "Import conversational export archives without running the HTTP service",
	Long: `archive-importer loads a zipped export (conversations, users, projects)
into the configured document store and prints the import summary.

Examples:
  archive-importer inspect export.zip
  archive-importer import export.zip --account work
  archive-importer import export.zip --store memory --json`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(inspectCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL")
}
