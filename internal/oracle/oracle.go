// Package oracle defines the contract of the external natural-language
// verification service and its backends.
//
// An Oracle receives a flat list of location names and returns structured
// matches plus one provenance list shared by the whole call. Backends must
// fail distinctly on transport errors and on payloads that do not parse
// against the response schema.
package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/internal/model"
)

// Provider names accepted by oracle.provider.
const (
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
	ProviderAnthropic  = "anthropic"
	ProviderStub       = "stub"
)

var (
	// ErrEmptyPayload is returned when the oracle answered with no text.
	ErrEmptyPayload = eris.New("oracle: empty payload")
	// ErrMalformedPayload is returned when the payload is not the expected
	// structured list.
	ErrMalformedPayload = eris.New("oracle: malformed payload")
)

// Options carries the per-call configuration. It is passed explicitly on
// every call; backends never read ambient configuration.
type Options struct {
	Model            string
	EndpointOverride string
	Credential       string
}

// Match is one verified location as returned by the oracle.
type Match struct {
	OriginalName  string `json:"originalName"`
	Code          string `json:"code"`
	LocalizedName string `json:"localizedName"`
	CountryName   string `json:"countryName"`
	Remarks       string `json:"remarks"`
}

// BatchResponse is the outcome of one VerifyBatch call. Sources belong to
// the call as a whole, in the order the oracle reported them.
type BatchResponse struct {
	Matches []Match
	Sources []model.Source
}

// Oracle is the verification collaborator consumed by the orchestrator.
type Oracle interface {
	VerifyBatch(ctx context.Context, names []string, opts Options) (*BatchResponse, error)
	Summarize(ctx context.Context, lines []string, opts Options) (string, error)
}
