// Package metrics exposes Prometheus instrumentation for verification runs.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/verify"
)

// Metrics records batch outcomes, record transitions and oracle latency.
// It implements verify.Observer and verify.RunObserver.
type Metrics struct {
	// Batches by outcome: "succeeded" or "failed"
	Batches *prometheus.CounterVec

	// Records leaving a batch, by resulting status
	Records *prometheus.CounterVec

	OracleLatency *prometheus.HistogramVec
	RunInProgress prometheus.Gauge
	StaleDemoted  prometheus.Counter
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portverify_batches_total",
			Help: "Verification batches by outcome",
		}, []string{"outcome"}),

		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portverify_records_total",
			Help: "Records processed by a batch, by resulting status",
		}, []string{"status"}),

		OracleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portverify_oracle_call_seconds",
			Help:    "Duration of oracle calls including retries and rate limiting",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}, []string{"provider", "operation", "result"}),

		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portverify_run_in_progress",
			Help: "1 while a verification run is active",
		}),

		StaleDemoted: factory.NewCounter(prometheus.CounterOpts{
			Name: "portverify_stale_demoted_total",
			Help: "In-flight records returned to pending after going stale",
		}),
	}
}

// BatchStarted is a no-op; transitions are counted when the batch finishes.
func (m *Metrics) BatchStarted(context.Context, []model.Record) error {
	return nil
}

// BatchFinished counts the batch and the resulting status of each record.
func (m *Metrics) BatchFinished(_ context.Context, batch []model.Record, outcome verify.BatchOutcome) error {
	if m == nil {
		return nil
	}
	result := "succeeded"
	if outcome.Failed() {
		result = "failed"
	}
	m.Batches.WithLabelValues(result).Inc()
	for i := range batch {
		m.Records.WithLabelValues(string(batch[i].Status)).Inc()
	}
	return nil
}

// RunStarted raises the in-progress gauge.
func (m *Metrics) RunStarted(int) {
	if m != nil {
		m.RunInProgress.Set(1)
	}
}

// RunFinished clears the in-progress gauge.
func (m *Metrics) RunFinished(model.Progress) {
	if m != nil {
		m.RunInProgress.Set(0)
	}
}

// ObserveOracleCall matches oracle.CallHook.
func (m *Metrics) ObserveOracleCall(provider, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OracleLatency.WithLabelValues(provider, operation, result).Observe(elapsed.Seconds())
}

// AddStaleDemoted counts records demoted by a stale sweep.
func (m *Metrics) AddStaleDemoted(n int) {
	if m != nil && n > 0 {
		m.StaleDemoted.Add(float64(n))
	}
}
