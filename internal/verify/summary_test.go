package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/oracle"
)

func summaryLedger() *model.Ledger {
	return model.NewLedger(
		model.Record{Seq: 0, OriginalName: "Shekou", Code: "CNSKU", LocalizedName: "蛇口", CountryName: "中国", Status: model.StatusCompleted},
		model.Record{Seq: 1, OriginalName: "nowhere", Status: model.StatusFailed, Remarks: "verification failed: x"},
		model.Record{Seq: 2, OriginalName: "PVG", Code: "PVG", LocalizedName: "浦东", CountryName: "中国", Status: model.StatusCompleted},
	)
}

func TestSummarize_NothingCompleted(t *testing.T) {
	o := new(mockOracle)
	l := model.NewLedger()
	l.Append("a")

	out, err := NewSummarizer(o, oracle.Options{}).Summarize(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, NothingToSummarize, out)
	o.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
}

func TestSummarize_SendsCompletedLines(t *testing.T) {
	o := new(mockOracle)
	opts := oracle.Options{Credential: "k"}
	o.On("Summarize", mock.Anything, []string{
		"Shekou -> 蛇口 (CNSKU), country: 中国",
		"PVG -> 浦东 (PVG), country: 中国",
	}, opts).Return("Two Chinese locations.", nil)

	l := summaryLedger()
	before := l.Snapshot()
	out, err := NewSummarizer(o, opts).Summarize(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "Two Chinese locations.", out)
	assert.Equal(t, before, l.Snapshot())
	o.AssertExpectations(t)
}

func TestSummarize_EmptyAnswerFallsBack(t *testing.T) {
	o := new(mockOracle)
	o.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	out, err := NewSummarizer(o, oracle.Options{}).Summarize(context.Background(), summaryLedger())
	require.NoError(t, err)
	assert.Equal(t, SummaryFallback, out)
}

func TestSummarize_OracleErrorIsDistinctFailure(t *testing.T) {
	o := new(mockOracle)
	o.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	l := summaryLedger()
	before := l.Snapshot()
	out, err := NewSummarizer(o, oracle.Options{}).Summarize(context.Background(), l)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSummaryFailed))
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, SummaryFallback, out)
	assert.Equal(t, before, l.Snapshot())
}
