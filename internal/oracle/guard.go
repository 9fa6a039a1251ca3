package oracle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/portverify/internal/resilience"
)

// CallHook observes every guarded oracle call.
type CallHook func(provider, operation string, elapsed time.Duration, err error)

// GuardConfig configures the protections applied around a backend.
type GuardConfig struct {
	Provider string
	// Timeout bounds each attempt. Zero means no deadline.
	Timeout time.Duration
	// RatePerSec throttles calls. Zero disables throttling.
	RatePerSec float64
	Retry      resilience.RetryConfig
	Circuit    resilience.CircuitBreakerConfig
	OnCall     CallHook
}

// Guard wraps a backend with a rate limiter, per-attempt timeout, transient
// retry and a circuit breaker. Every failure it produces is an ordinary
// oracle error to the caller.
type Guard struct {
	next    Oracle
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewGuard wraps next.
func NewGuard(next Oracle, cfg GuardConfig) *Guard {
	g := &Guard{next: next, cfg: cfg}
	if cfg.RatePerSec > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	if g.cfg.Retry.OnRetry == nil {
		g.cfg.Retry.OnRetry = resilience.RetryLogger(cfg.Provider, "oracle")
	}
	circuit := cfg.Circuit
	if circuit.OnStateChange == nil {
		provider := cfg.Provider
		circuit.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("oracle circuit state change",
				zap.String("provider", provider),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	g.breaker = resilience.NewCircuitBreaker(circuit)
	return g
}

// Breaker exposes the circuit breaker for status reporting.
func (g *Guard) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}

// VerifyBatch implements Oracle.
func (g *Guard) VerifyBatch(ctx context.Context, names []string, opts Options) (*BatchResponse, error) {
	return guarded(ctx, g, "verify_batch", func(ctx context.Context) (*BatchResponse, error) {
		return g.next.VerifyBatch(ctx, names, opts)
	})
}

// Summarize implements Oracle.
func (g *Guard) Summarize(ctx context.Context, lines []string, opts Options) (string, error) {
	return guarded(ctx, g, "summarize", func(ctx context.Context) (string, error) {
		return g.next.Summarize(ctx, lines, opts)
	})
}

func guarded[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	val, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return resilience.DoVal(ctx, g.cfg.Retry, func(ctx context.Context) (T, error) {
			if g.limiter != nil {
				if err := g.limiter.Wait(ctx); err != nil {
					var zero T
					return zero, eris.Wrap(err, "oracle: rate limit")
				}
			}
			if g.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
				defer cancel()
			}
			return fn(ctx)
		})
	})
	if g.cfg.OnCall != nil {
		g.cfg.OnCall(g.cfg.Provider, op, time.Since(start), err)
	}
	return val, err
}
