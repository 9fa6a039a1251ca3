package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every record as CSV, XLSX or YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store", false); err != nil {
			return err
		}

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		path := exportOutput
		if path == "" {
			path = "locations." + string(format)
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		records := env.Ledger.Snapshot()
		if format == export.FormatCSV && path == "-" {
			return export.WriteCSV(cmd.OutOrStdout(), records)
		}
		if err := export.WriteFile(path, format, records); err != nil {
			return err
		}

		zap.L().Info("export written", zap.String("path", path), zap.Int("records", len(records)))
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(records), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv, xlsx or yaml")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default locations.<format>; - writes CSV to stdout)")
	rootCmd.AddCommand(exportCmd)
}
