package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portverify/internal/resilience"
)

// scriptedOracle returns errs in order, then succeeds.
type scriptedOracle struct {
	mu    sync.Mutex
	errs  []error
	calls int
	block bool
}

func (s *scriptedOracle) next(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *scriptedOracle) VerifyBatch(ctx context.Context, names []string, _ Options) (*BatchResponse, error) {
	if err := s.next(ctx); err != nil {
		return nil, err
	}
	return &BatchResponse{Matches: []Match{{OriginalName: names[0], Code: "X"}}}, nil
}

func (s *scriptedOracle) Summarize(ctx context.Context, _ []string, _ Options) (string, error) {
	if err := s.next(ctx); err != nil {
		return "", err
	}
	return "ok", nil
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func TestGuard_SingleAttemptByDefault(t *testing.T) {
	inner := &scriptedOracle{errs: []error{resilience.NewTransientError(errors.New("503"), 503)}}
	g := NewGuard(inner, GuardConfig{Provider: "test"})

	_, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestGuard_RetriesTransient(t *testing.T) {
	inner := &scriptedOracle{errs: []error{
		resilience.NewTransientError(errors.New("429"), 429),
		resilience.NewTransientError(errors.New("502"), 502),
	}}
	g := NewGuard(inner, GuardConfig{Provider: "test", Retry: fastRetry(3)})

	resp, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "X", resp.Matches[0].Code)
	assert.Equal(t, 3, inner.calls)
}

func TestGuard_DoesNotRetryPermanent(t *testing.T) {
	inner := &scriptedOracle{errs: []error{ErrMalformedPayload}}
	g := NewGuard(inner, GuardConfig{Provider: "test", Retry: fastRetry(3)})

	_, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, 1, inner.calls)
}

func TestGuard_TimeoutBoundsAttempt(t *testing.T) {
	inner := &scriptedOracle{block: true}
	g := NewGuard(inner, GuardConfig{Provider: "test", Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := g.Summarize(context.Background(), []string{"a"}, Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGuard_CircuitOpens(t *testing.T) {
	boom := errors.New("boom")
	inner := &scriptedOracle{errs: []error{boom, boom, boom}}
	var transitions []string
	g := NewGuard(inner, GuardConfig{
		Provider: "test",
		Circuit: resilience.CircuitBreakerConfig{
			FailureThreshold: 2,
			ResetTimeout:     time.Hour,
			OnStateChange: func(from, to resilience.CircuitState) {
				transitions = append(transitions, from.String()+"->"+to.String())
			},
		},
	})

	for i := 0; i < 2; i++ {
		_, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
		assert.ErrorIs(t, err, boom)
	}
	_, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, resilience.CircuitOpen, g.Breaker().State())
}

func TestGuard_OnCall(t *testing.T) {
	inner := &scriptedOracle{errs: []error{errors.New("boom")}}
	type call struct {
		provider, op string
		failed       bool
	}
	var calls []call
	g := NewGuard(inner, GuardConfig{
		Provider:   "gemini",
		RatePerSec: 1000,
		OnCall: func(provider, op string, elapsed time.Duration, err error) {
			assert.GreaterOrEqual(t, elapsed, time.Duration(0))
			calls = append(calls, call{provider, op, err != nil})
		},
	})

	_, _ = g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	_, _ = g.Summarize(context.Background(), []string{"a"}, Options{})

	assert.Equal(t, []call{
		{"gemini", "verify_batch", true},
		{"gemini", "summarize", false},
	}, calls)
}

func TestGuard_CanceledContextFailsFast(t *testing.T) {
	inner := &scriptedOracle{}
	g := NewGuard(inner, GuardConfig{Provider: "test", RatePerSec: 0.001})

	// Drain the single burst token.
	_, err := g.VerifyBatch(context.Background(), []string{"a"}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.VerifyBatch(ctx, []string{"a"}, Options{})
	assert.ErrorContains(t, err, "rate limit")
	assert.Equal(t, 1, inner.calls)
}
