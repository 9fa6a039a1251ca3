package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/config"
	"github.com/sells-group/portverify/internal/metrics"
	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/oracle"
	"github.com/sells-group/portverify/internal/resilience"
	"github.com/sells-group/portverify/internal/store"
	"github.com/sells-group/portverify/internal/verify"
)

// appEnv holds the store, ledger and verification collaborators shared by
// the subcommands.
type appEnv struct {
	Store    store.Store
	Ledger   *model.Ledger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Oracle  oracle.Oracle
	Options oracle.Options
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv opens the store, demotes stale in-flight records and loads the
// ledger. The oracle is left unset; call withOracle for commands that
// verify or summarize.
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	env := &appEnv{Store: st, Registry: reg, Metrics: metrics.New(reg)}

	if c.Verify.StaleAfter > 0 {
		n, err := st.DemoteStale(ctx, c.Verify.StaleAfter, time.Now())
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "demote stale records")
		}
		if n > 0 {
			zap.L().Warn("stale in-flight records returned to pending",
				zap.Int("count", n),
				zap.Duration("stale_after", c.Verify.StaleAfter),
			)
		}
		env.Metrics.AddStaleDemoted(n)
	}

	ledger, err := store.LoadLedger(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Ledger = ledger
	return env, nil
}

// withOracle builds the configured oracle. Live backends are wrapped in a
// Guard that reports call latency to the env's metrics.
func (e *appEnv) withOracle(c *config.Config, offline bool) error {
	provider := c.Oracle.Provider
	if offline {
		provider = oracle.ProviderStub
	}

	backend, err := oracle.NewBackend(oracle.BackendConfig{
		Provider:  provider,
		Grounding: c.Oracle.Grounding,
		Prompts:   oracle.Prompts{Language: c.Oracle.Language},
	})
	if err != nil {
		return err
	}

	e.Options = oracle.Options{
		Model:            c.ModelFor(provider),
		EndpointOverride: c.Oracle.Endpoint,
		Credential:       c.Oracle.Key,
	}

	if provider == oracle.ProviderStub {
		e.Oracle = backend
		return nil
	}

	e.Oracle = oracle.NewGuard(backend, oracle.GuardConfig{
		Provider:   provider,
		Timeout:    c.Oracle.Timeout(),
		RatePerSec: c.Oracle.RatePerSec,
		Retry:      resilience.FromRetryConfig(c.Oracle.Retry.MaxAttempts, c.Oracle.Retry.InitialBackoffMs, c.Oracle.Retry.MaxBackoffMs),
		Circuit:    resilience.FromCircuitConfig(c.Oracle.Circuit.FailureThreshold, c.Oracle.Circuit.ResetTimeoutSecs),
		OnCall:     e.Metrics.ObserveOracleCall,
	})
	return nil
}

// orchestrator builds a run over the env's oracle, persisting every step and
// feeding metrics.
func (e *appEnv) orchestrator(c *config.Config, batchSize int) (*verify.Orchestrator, error) {
	policy, err := verify.ParseUnmatchedPolicy(c.Verify.Unmatched)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = c.Verify.BatchSize
	}
	return verify.New(e.Oracle, e.Options, verify.Config{
		BatchSize: batchSize,
		Unmatched: policy,
	}, store.NewPersister(e.Store), e.Metrics), nil
}

// summarizer builds a Summarizer over the env's oracle.
func (e *appEnv) summarizer() *verify.Summarizer {
	return verify.NewSummarizer(e.Oracle, e.Options)
}
