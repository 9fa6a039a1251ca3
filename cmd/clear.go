package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record from the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if !clearYes {
			return eris.New("refusing to clear without --yes")
		}
		if err := cfg.Validate("store", false); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Clear(ctx); err != nil {
			return err
		}
		zap.L().Info("ledger cleared")
		fmt.Fprintln(cmd.OutOrStdout(), "Ledger cleared.")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
	rootCmd.AddCommand(clearCmd)
}
