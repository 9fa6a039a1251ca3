package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultLanguage = "Simplified Chinese"

// Prompts builds the instructions sent to every backend.
type Prompts struct {
	// Language of the localizedName field.
	Language string
}

func (p Prompts) language() string {
	if strings.TrimSpace(p.Language) == "" {
		return defaultLanguage
	}
	return p.Language
}

// VerifySystem is the system instruction for batch verification.
func (p Prompts) VerifySystem() string {
	return fmt.Sprintf(`You verify logistics location names against authoritative registries.
Sea ports use UN/LOCODE (5 characters, e.g. CNSWA). Airports use the IATA 3-letter code.
For every input name return exactly one object with:
  originalName: the input name exactly as given
  code: the canonical code, or "" when the location cannot be identified
  localizedName: the official name in %s
  countryName: the country name in %s
  remarks: a short note (port or airport, ambiguity, alternatives)
Answer with a JSON array only, no prose.`, p.language(), p.language())
}

// VerifyUser lists the names for one batch.
func (p Prompts) VerifyUser(names []string) string {
	var b strings.Builder
	b.WriteString("Verify these locations:\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	return b.String()
}

// SummarySystem is the system instruction for the free-text summary.
func (p Prompts) SummarySystem() string {
	return fmt.Sprintf("You are a logistics analyst. Summarize the verified locations below in %s: "+
		"group them by country, point out airports versus sea ports and flag anything unusual. "+
		"Keep it under 200 words.", p.language())
}

// SummaryUser joins the completed record lines.
func (p Prompts) SummaryUser(lines []string) string {
	return strings.Join(lines, "\n")
}

var matchFields = []string{"originalName", "code", "localizedName", "countryName", "remarks"}

// MatchSchema is the JSON schema of the verification response.
func MatchSchema() map[string]any {
	props := make(map[string]any, len(matchFields))
	for _, f := range matchFields {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   append([]string(nil), matchFields...),
		},
	}
}

// schemaHint renders the schema for backends that cannot enforce it.
func schemaHint() string {
	b, _ := json.Marshal(MatchSchema())
	return "The JSON must match this schema: " + string(b)
}
