package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/portverify/internal/model"
)

// StubOracle is an offline backend for demos and tests. It echoes every name
// back as its own code and verifies nothing.
type StubOracle struct{}

// VerifyBatch implements Oracle.
func (StubOracle) VerifyBatch(_ context.Context, names []string, _ Options) (*BatchResponse, error) {
	resp := &BatchResponse{
		Sources: []model.Source{{URI: "stub://offline", Title: "offline stub"}},
	}
	for _, n := range names {
		resp.Matches = append(resp.Matches, Match{
			OriginalName:  n,
			Code:          strings.ToUpper(strings.ReplaceAll(n, " ", "")),
			LocalizedName: n,
			CountryName:   "unknown",
			Remarks:       "offline stub, not verified",
		})
	}
	return resp, nil
}

// Summarize implements Oracle.
func (StubOracle) Summarize(_ context.Context, lines []string, _ Options) (string, error) {
	return fmt.Sprintf("%d verified locations (offline stub summary).", len(lines)), nil
}
