package model

import (
	"time"
)

// Status represents where a record sits in the verification lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in_flight"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInFlight, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Eligible reports whether a record in this status is picked up by a run.
func (s Status) Eligible() bool {
	return s == StatusPending || s == StatusFailed
}

// MaxSources caps the provenance list kept on a record.
const MaxSources = 3

// Source is a citation the oracle used to justify a match.
type Source struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

// Record is one submitted location name and its current verification outcome.
type Record struct {
	ID            string    `json:"id" yaml:"id"`
	Seq           int64     `json:"seq" yaml:"seq"`
	OriginalName  string    `json:"original_name" yaml:"original_name"`
	QueryText     string    `json:"query_text" yaml:"query_text"`
	Code          string    `json:"code" yaml:"code"`
	LocalizedName string    `json:"localized_name" yaml:"localized_name"`
	CountryName   string    `json:"country_name" yaml:"country_name"`
	Remarks       string    `json:"remarks" yaml:"remarks"`
	Status        Status    `json:"status" yaml:"status"`
	Sources       []Source  `json:"sources" yaml:"sources"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// QueryTextFor derives the prompt fragment stored on a new record.
func QueryTextFor(name string) string {
	return "Verify location: " + name
}

// Clone returns a deep copy of r.
func (r *Record) Clone() Record {
	c := *r
	if r.Sources != nil {
		c.Sources = append([]Source(nil), r.Sources...)
	}
	return c
}

// Progress counts batch attempts within a single run.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Done reports whether every eligible record of the run has been attempted.
func (p Progress) Done() bool {
	return p.Processed >= p.Total
}
