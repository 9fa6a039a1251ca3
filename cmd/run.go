package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/model"
)

var (
	runOffline   bool
	runBatchSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Verify every pending or failed record",
	Long:  "Sends pending and previously failed records to the oracle in batches. Failed batches are recorded on their records and retried by running again.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run", runOffline); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.withOracle(cfg, runOffline); err != nil {
			return err
		}
		orch, err := env.orchestrator(cfg, runBatchSize)
		if err != nil {
			return err
		}

		out := cmd.ErrOrStderr()
		orch.OnProgress(func(p model.Progress) {
			fmt.Fprintf(out, "\rverified %d/%d", p.Processed, p.Total)
		})

		progress, err := orch.Run(ctx, env.Ledger)
		if progress.Total > 0 {
			fmt.Fprintln(out)
		}
		if err != nil {
			return err
		}

		zap.L().Info("run complete",
			zap.Int("processed", progress.Processed),
			zap.Int("total", progress.Total),
		)
		printCounts(cmd.OutOrStdout(), env.Ledger.Counts())
		return nil
	},
}

func printCounts(w io.Writer, counts map[model.Status]int) {
	fmt.Fprintf(w, "completed: %d  failed: %d  in_flight: %d  pending: %d\n",
		counts[model.StatusCompleted],
		counts[model.StatusFailed],
		counts[model.StatusInFlight],
		counts[model.StatusPending],
	)
}

func init() {
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "use the offline stub oracle (verifies nothing)")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "records per oracle call (default from config)")
	rootCmd.AddCommand(runCmd)
}
