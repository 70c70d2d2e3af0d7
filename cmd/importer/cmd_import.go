package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/archive"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/docstore/backend"
	"jan-server/services/archive-api/internal/infrastructure/logger"
)

var importCmd = &cobra.Command{
	Use:   "import [archive.zip]",
	Short: "Import an export archive",
	Long:  `Extract the archive, upsert every conversation, user and project, and record the run in the import history.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [archive.zip]",
	Short: "List the JSON payloads of an archive and how they would be loaded",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	importCmd.Flags().String("account", "", "Account label stamped on every record (default \"Unknown\")")
	importCmd.Flags().String("store", "", "Override STORE_BACKEND (mongo, postgres, memory)")
	importCmd.Flags().Bool("skip-invalid", false, "Skip records without a natural key instead of failing")
	importCmd.Flags().Bool("json", false, "Print the summary as JSON")
}

// loadConfig reads .env files and the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}

	if store, _ := cmd.Flags().GetString("store"); store != "" {
		os.Setenv("STORE_BACKEND", store)
	}
	if skip, _ := cmd.Flags().GetBool("skip-invalid"); skip {
		os.Setenv("IMPORT_SKIP_INVALID_RECORDS", "true")
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		os.Setenv("LOG_LEVEL", level)
	}
	return config.Load()
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer closeStore(context.Background())

	service := importer.NewService(cfg, store, archive.NewExtractor(cfg.MaxEntryBytes, log), nil, log)
	account, _ := cmd.Flags().GetString("account")
	summary, err := service.RunImport(ctx, args[0], account)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printSummary(cmd.OutOrStdout(), summary, asJSON)
}

func printSummary(w io.Writer, summary *importer.ImportSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "Import %s (%s) %s\n", summary.ImportID, summary.AccountName, summary.Status)
	fmt.Fprintf(w, "  files found:   %d\n", summary.FilesFound)
	for _, kind := range export.Kinds {
		counts := summary.CountsFor(kind)
		fmt.Fprintf(w, "  %-14s %d loaded, %d duplicates\n", string(kind)+"s:", counts.Loaded, counts.Duplicates)
	}
	for _, rerr := range summary.RecordErrors {
		fmt.Fprintf(w, "  skipped %s[%d]: %s\n", rerr.File, rerr.Index, rerr.Reason)
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	workspace, err := os.MkdirTemp("", "archive-inspect-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workspace)

	cfg := &config.Config{ServiceName: "archive-importer", LogLevel: "warn"}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	extractor := archive.NewExtractor(0, logger.NewWithWriter(cfg, os.Stderr))

	paths, err := extractor.Extract(cmd.Context(), args[0], workspace)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, path := range paths {
		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			rel = path
		}
		kind := archive.Classify(rel)
		if kind == export.KindUnknown {
			fmt.Fprintf(w, "%-14s %s\n", "(ignored)", rel)
			continue
		}
		fmt.Fprintf(w, "%-14s %s\n", kind.Collection(), rel)
	}
	return nil
}
