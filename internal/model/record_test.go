package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusInFlight, true},
		{StatusCompleted, true},
		{StatusFailed, true},
		{"", false},
		{"done", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestStatus_Eligible(t *testing.T) {
	assert.True(t, StatusPending.Eligible())
	assert.True(t, StatusFailed.Eligible())
	assert.False(t, StatusInFlight.Eligible())
	assert.False(t, StatusCompleted.Eligible())
}

func TestQueryTextFor(t *testing.T) {
	assert.Equal(t, "Verify location: Port of Shanghai", QueryTextFor("Port of Shanghai"))
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := Record{OriginalName: "Busan", Sources: []Source{{URI: "https://a", Title: "A"}}}
	c := r.Clone()

	c.Sources[0].URI = "https://changed"
	c.OriginalName = "Incheon"

	assert.Equal(t, "https://a", r.Sources[0].URI)
	assert.Equal(t, "Busan", r.OriginalName)
}

func TestRecord_CloneKeepsNilSources(t *testing.T) {
	r := Record{OriginalName: "Busan"}
	assert.Nil(t, r.Clone().Sources)
}

func TestProgress_Done(t *testing.T) {
	assert.True(t, Progress{}.Done())
	assert.False(t, Progress{Processed: 1, Total: 3}.Done())
	assert.True(t, Progress{Processed: 3, Total: 3}.Done())
}
