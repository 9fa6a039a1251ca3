package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/portverify/internal/api"
)

var (
	servePort    int
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve", serveOffline); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.withOracle(cfg, serveOffline); err != nil {
			return err
		}
		orch, err := env.orchestrator(cfg, 0)
		if err != nil {
			return err
		}

		srv := api.NewServer(ctx, api.Deps{
			Ledger:         env.Ledger,
			Store:          env.Store,
			Runner:         orch,
			Summarizer:     env.summarizer(),
			Gatherer:       env.Registry,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
			defer cancel()
			err := httpSrv.Shutdown(shutdownCtx)
			srv.Wait()
			return err
		})

		if cfg.Verify.StaleAfter > 0 {
			g.Go(func() error {
				return sweepStale(gctx, srv, env, cfg.Verify.StaleAfter)
			})
		}

		return g.Wait()
	},
}

// sweepStale periodically demotes abandoned in-flight records until ctx is
// done.
func sweepStale(ctx context.Context, srv *api.Server, env *appEnv, staleAfter time.Duration) error {
	ticker := time.NewTicker(staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := srv.SweepStale(ctx, staleAfter, now)
			if err != nil {
				zap.L().Warn("stale sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Warn("stale in-flight records returned to pending", zap.Int("count", n))
				env.Metrics.AddStaleDemoted(n)
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use the offline stub oracle")
	rootCmd.AddCommand(serveCmd)
}
