package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portverify/internal/model"
)

func TestDemoteStale(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l := model.NewLedger(
		model.Record{Seq: 0, OriginalName: "old", Status: model.StatusInFlight, UpdatedAt: now.Add(-time.Hour)},
		model.Record{Seq: 1, OriginalName: "fresh", Status: model.StatusInFlight, UpdatedAt: now.Add(-time.Minute)},
		model.Record{Seq: 2, OriginalName: "done", Status: model.StatusCompleted, UpdatedAt: now.Add(-time.Hour)},
		model.Record{Seq: 3, OriginalName: "edge", Status: model.StatusInFlight, UpdatedAt: now.Add(-15 * time.Minute)},
	)
	l.Now = func() time.Time { return now }

	demoted := DemoteStale(l, 15*time.Minute, now)
	require.Len(t, demoted, 2)
	assert.Equal(t, "old", demoted[0].OriginalName)
	assert.Equal(t, "edge", demoted[1].OriginalName)

	recs := byName(l)
	assert.Equal(t, model.StatusPending, recs["old"].Status)
	assert.Equal(t, now, recs["old"].UpdatedAt)
	assert.Equal(t, model.StatusInFlight, recs["fresh"].Status)
	assert.Equal(t, model.StatusCompleted, recs["done"].Status)
	assert.Equal(t, model.StatusPending, recs["edge"].Status)
}

func TestDemoteStale_Disabled(t *testing.T) {
	now := time.Now()
	l := model.NewLedger(model.Record{OriginalName: "x", Status: model.StatusInFlight, UpdatedAt: now.Add(-24 * time.Hour)})
	assert.Empty(t, DemoteStale(l, 0, now))
	assert.Equal(t, model.StatusInFlight, l.Snapshot()[0].Status)
}
