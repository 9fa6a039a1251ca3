package verify

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/oracle"
)

// Reconcile applies an oracle answer to the records of its batch and returns
// how many records matched. Names are compared case-insensitively and the
// first match in response order wins. Every matched record receives its own
// copy of the first MaxSources batch-wide sources. Unmatched records are not
// touched.
func Reconcile(batch []*model.Record, resp *oracle.BatchResponse) int {
	if resp == nil {
		return 0
	}

	fold := cases.Fold()
	key := func(name string) string {
		return fold.String(strings.TrimSpace(name))
	}

	byName := make(map[string]oracle.Match, len(resp.Matches))
	for _, m := range resp.Matches {
		k := key(m.OriginalName)
		if _, dup := byName[k]; !dup {
			byName[k] = m
		}
	}

	sources := resp.Sources
	if len(sources) > model.MaxSources {
		sources = sources[:model.MaxSources]
	}

	matched := 0
	for _, r := range batch {
		m, ok := byName[key(r.OriginalName)]
		if !ok {
			continue
		}
		r.Code = m.Code
		r.LocalizedName = m.LocalizedName
		r.CountryName = m.CountryName
		r.Remarks = m.Remarks
		r.Status = model.StatusCompleted
		r.Sources = make([]model.Source, len(sources))
		copy(r.Sources, sources)
		matched++
	}
	return matched
}
