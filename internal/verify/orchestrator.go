// Package verify runs batch verification of ledger records against an
// oracle. Batches are dispatched strictly one after another; a failed batch
// only affects its own records and is retried by running again.
package verify

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/oracle"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 5

const (
	failurePrefix  = "verification failed: "
	maxRemarkRunes = 200

	// NoMatchRemark is written on records the oracle left out of its answer
	// when the unmatched policy is UnmatchedFail.
	NoMatchRemark = "no match returned"
)

// UnmatchedPolicy decides what happens to a record the oracle did not answer
// for in an otherwise successful batch.
type UnmatchedPolicy string

const (
	// UnmatchedKeep leaves the record InFlight.
	UnmatchedKeep UnmatchedPolicy = "keep"
	// UnmatchedFail marks the record Failed so the next run retries it.
	UnmatchedFail UnmatchedPolicy = "fail"
)

// ParseUnmatchedPolicy parses a config value. Empty means UnmatchedKeep.
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch UnmatchedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnmatchedKeep:
		return UnmatchedKeep, nil
	case UnmatchedFail:
		return UnmatchedFail, nil
	default:
		return "", eris.Errorf("verify: unknown unmatched policy %q", s)
	}
}

// Config tunes a run.
type Config struct {
	BatchSize int
	Unmatched UnmatchedPolicy
}

// BatchOutcome describes one finished batch.
type BatchOutcome struct {
	Index     int
	Size      int
	Matched   int
	Unmatched int
	Err       error
	Progress  model.Progress
}

// Failed reports whether the oracle call for the batch failed.
func (b BatchOutcome) Failed() bool {
	return b.Err != nil
}

// Observer is notified after every ledger step of a run. Records are copies
// taken right after the step.
type Observer interface {
	BatchStarted(ctx context.Context, batch []model.Record) error
	BatchFinished(ctx context.Context, batch []model.Record, outcome BatchOutcome) error
}

// RunObserver is optionally implemented by observers interested in run
// boundaries.
type RunObserver interface {
	RunStarted(total int)
	RunFinished(progress model.Progress)
}

// Orchestrator drives runs over a ledger. It is the ledger's single writer
// for the duration of Run.
type Orchestrator struct {
	oracle     oracle.Oracle
	opts       oracle.Options
	cfg        Config
	observers  []Observer
	onProgress func(model.Progress)
}

// New creates an Orchestrator. opts is passed unchanged on every oracle call.
func New(o oracle.Oracle, opts oracle.Options, cfg Config, observers ...Observer) *Orchestrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Unmatched == "" {
		cfg.Unmatched = UnmatchedKeep
	}
	return &Orchestrator{
		oracle:    o,
		opts:      opts,
		cfg:       cfg,
		observers: observers,
	}
}

// OnProgress registers a callback fired after every batch.
func (o *Orchestrator) OnProgress(fn func(model.Progress)) {
	o.onProgress = fn
}

// BatchSize returns the effective batch size.
func (o *Orchestrator) BatchSize() int {
	return o.cfg.BatchSize
}

// Run processes every Pending or Failed record in ledger order. Oracle
// failures are recorded on the affected records and never abort the run, so
// the returned progress always has Processed equal to the number of eligible
// records. The error is non-nil only when an observer failed; the run still
// completes and the first observer error is returned.
func (o *Orchestrator) Run(ctx context.Context, ledger *model.Ledger) (model.Progress, error) {
	eligible := ledger.Eligible()
	progress := model.Progress{Total: len(eligible)}
	if len(eligible) == 0 {
		zap.L().Debug("verify: nothing eligible, skipping run")
		return progress, nil
	}

	batches := partition(eligible, o.cfg.BatchSize)
	log := zap.L().With(
		zap.Int("eligible", len(eligible)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", o.cfg.BatchSize),
	)
	log.Info("verify: starting run")
	o.runStarted(progress.Total)

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for i, batch := range batches {
		outcome := o.runBatch(ctx, ledger, i, batch, keep)
		progress.Processed += len(batch)
		outcome.Progress = progress

		fields := []zap.Field{
			zap.Int("batch", i),
			zap.Int("size", outcome.Size),
			zap.Int("matched", outcome.Matched),
			zap.Int("unmatched", outcome.Unmatched),
			zap.Int("processed", progress.Processed),
		}
		if outcome.Err != nil {
			log.Warn("verify: batch failed", append(fields, zap.Error(outcome.Err))...)
		} else {
			log.Info("verify: batch complete", fields...)
		}

		for _, obs := range o.observers {
			keep(obs.BatchFinished(ctx, copies(batch), outcome))
		}
		if o.onProgress != nil {
			o.onProgress(progress)
		}
	}

	counts := ledger.Counts()
	log.Info("verify: run complete",
		zap.Int("processed", progress.Processed),
		zap.Int("completed", counts[model.StatusCompleted]),
		zap.Int("failed", counts[model.StatusFailed]),
		zap.Int("in_flight", counts[model.StatusInFlight]),
	)
	o.runFinished(progress)

	if firstErr != nil {
		return progress, eris.Wrap(firstErr, "verify: observer")
	}
	return progress, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, ledger *model.Ledger, index int, batch []*model.Record, keep func(error)) BatchOutcome {
	outcome := BatchOutcome{Index: index, Size: len(batch)}

	ledger.Mutate(func(now time.Time) {
		for _, r := range batch {
			r.Status = model.StatusInFlight
			r.UpdatedAt = now
		}
	})
	for _, obs := range o.observers {
		keep(obs.BatchStarted(ctx, copies(batch)))
	}

	names := make([]string, len(batch))
	for i, r := range batch {
		names[i] = r.OriginalName
	}

	resp, err := o.oracle.VerifyBatch(ctx, names, o.opts)
	if err == nil && resp == nil {
		err = eris.Wrap(oracle.ErrEmptyPayload, "verify: oracle returned no response")
	}

	ledger.Mutate(func(now time.Time) {
		if err != nil {
			outcome.Err = err
			remark := FailureRemark(err)
			for _, r := range batch {
				r.Status = model.StatusFailed
				r.Remarks = remark
				r.UpdatedAt = now
			}
			return
		}

		outcome.Matched = Reconcile(batch, resp)
		for _, r := range batch {
			r.UpdatedAt = now
			if r.Status != model.StatusInFlight {
				continue
			}
			outcome.Unmatched++
			if o.cfg.Unmatched == UnmatchedFail {
				r.Status = model.StatusFailed
				r.Remarks = NoMatchRemark
			}
		}
	})

	if outcome.Unmatched > 0 {
		zap.L().Warn("verify: oracle omitted records from its answer",
			zap.Int("batch", index),
			zap.Int("unmatched", outcome.Unmatched),
			zap.String("policy", string(o.cfg.Unmatched)),
		)
	}
	return outcome
}

func (o *Orchestrator) runStarted(total int) {
	for _, obs := range o.observers {
		if ro, ok := obs.(RunObserver); ok {
			ro.RunStarted(total)
		}
	}
}

func (o *Orchestrator) runFinished(p model.Progress) {
	for _, obs := range o.observers {
		if ro, ok := obs.(RunObserver); ok {
			ro.RunFinished(p)
		}
	}
}

// partition splits records into consecutive groups of at most size.
func partition(records []*model.Record, size int) [][]*model.Record {
	var out [][]*model.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func copies(batch []*model.Record) []model.Record {
	out := make([]model.Record, len(batch))
	for i, r := range batch {
		out[i] = r.Clone()
	}
	return out
}

// FailureRemark renders err as the single-line remark stored on failed
// records.
func FailureRemark(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = strings.TrimSpace(err.Error())
		if nl := strings.IndexByte(msg, '\n'); nl >= 0 {
			msg = strings.TrimSpace(msg[:nl])
		}
		if msg == "" {
			msg = "unknown error"
		}
	}
	remark := []rune(failurePrefix + msg)
	if len(remark) > maxRemarkRunes {
		remark = remark[:maxRemarkRunes]
	}
	return string(remark)
}
