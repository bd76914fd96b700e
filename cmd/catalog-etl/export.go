package main

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/aluiziolira/books-catalog-etl/export"
	"github.com/aluiziolira/books-catalog-etl/store"
	"github.com/spf13/cobra"
)

var exportFlags struct {
	output string
	format string
}

var exportCmd = &cobra.Command{
	Use:   "export [--output <file>] [--format csv|json|dual]",
	Short: "Dumps the stored catalog to CSV and/or JSONL.",
	RunE:  runExport,
}

func init() {
	d := config.DefaultConfig()
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", d.ExportFile, "Output file path")
	exportCmd.Flags().StringVar(&exportFlags.format, "format", d.ExportFormat, "Output format: csv, json, or dual")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, func(cfg *config.Config) {
		if cmd.Flags().Changed("output") {
			cfg.ExportFile = exportFlags.output
		}
		if cmd.Flags().Changed("format") {
			cfg.ExportFormat = exportFlags.format
		}
	})
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	w, err := export.NewWriter(cfg.ExportFormat, cfg.ExportFile)
	if err != nil {
		return err
	}
	written, err := export.Export(ctx, st, w)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close export: %w", closeErr)
	}
	if err != nil {
		return err
	}

	slog.Info("export complete",
		slog.Int("items", written),
		slog.String("format", cfg.ExportFormat),
		slog.String("output", cfg.ExportFile),
	)
	return nil
}
