package verify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/oracle"
)

const (
	// NothingToSummarize is returned without calling the oracle when no
	// record is completed.
	NothingToSummarize = "No verified locations to summarize yet."
	// SummaryFallback stands in for an empty or failed oracle summary.
	SummaryFallback = "A summary could not be generated for the verified locations."
)

// ErrSummaryFailed signals that the oracle could not produce a summary. It is
// distinct from any per-record verification failure.
var ErrSummaryFailed = eris.New("verify: summary failed")

// Summarizer asks the oracle for a prose synthesis of the completed records.
type Summarizer struct {
	oracle oracle.Oracle
	opts   oracle.Options
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(o oracle.Oracle, opts oracle.Options) *Summarizer {
	return &Summarizer{oracle: o, opts: opts}
}

// Summarize never mutates the ledger. An empty oracle answer yields
// SummaryFallback with a nil error; an oracle error yields SummaryFallback
// together with an error wrapping ErrSummaryFailed.
func (s *Summarizer) Summarize(ctx context.Context, ledger *model.Ledger) (string, error) {
	completed := ledger.Filter(model.StatusCompleted)
	if len(completed) == 0 {
		return NothingToSummarize, nil
	}

	text, err := s.oracle.Summarize(ctx, SummaryLines(completed), s.opts)
	if err != nil {
		zap.L().Warn("verify: summary failed", zap.Int("records", len(completed)), zap.Error(err))
		return SummaryFallback, eris.Wrapf(ErrSummaryFailed, "oracle: %v", err)
	}
	if text == "" {
		return SummaryFallback, nil
	}
	return text, nil
}

// SummaryLines renders one line per record.
func SummaryLines(records []model.Record) []string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = fmt.Sprintf("%s -> %s (%s), country: %s", r.OriginalName, r.LocalizedName, r.Code, r.CountryName)
	}
	return lines
}
