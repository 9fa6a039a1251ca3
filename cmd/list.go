package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/portverify/internal/model"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store", false); err != nil {
			return err
		}

		var status model.Status
		if listStatus != "" {
			status = model.Status(listStatus)
			if !status.Valid() {
				return eris.Errorf("unknown status %q", listStatus)
			}
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		var records []model.Record
		if status != "" {
			records = env.Ledger.Filter(status)
		} else {
			records = env.Ledger.Snapshot()
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No records found.")
			return nil
		}
		formatRecords(cmd.OutOrStdout(), records)
		return nil
	},
}

// formatRecords writes a table of records.
func formatRecords(w io.Writer, records []model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tCODE\tLOCALIZED\tCOUNTRY\tSOURCES\tREMARKS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.OriginalName, r.Status, dash(r.Code), dash(r.LocalizedName),
			dash(r.CountryName), len(r.Sources), truncate(r.Remarks, 60))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "only records in this status (pending, in_flight, completed, failed)")
	rootCmd.AddCommand(listCmd)
}
