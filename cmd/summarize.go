package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeOffline bool

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the verified locations in prose",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("run", summarizeOffline); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.withOracle(cfg, summarizeOffline); err != nil {
			return err
		}

		text, err := env.summarizer().Summarize(ctx, env.Ledger)
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeOffline, "offline", false, "use the offline stub oracle")
	rootCmd.AddCommand(summarizeCmd)
}
