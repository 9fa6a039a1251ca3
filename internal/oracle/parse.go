package oracle

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseMatches decodes the oracle's serialized match list. Code fences and
// leading prose are tolerated, as is an object wrapping the list under
// "results" or "matches". An empty payload returns ErrEmptyPayload and any
// other decode failure wraps ErrMalformedPayload.
func ParseMatches(raw string) ([]Match, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return nil, ErrEmptyPayload
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil, eris.Wrapf(ErrMalformedPayload, "no JSON found in %q", truncate(text, 80))
	}
	text = text[start:]

	if text[0] == '[' {
		var matches []Match
		if err := decodeFirst(text, &matches); err != nil {
			return nil, eris.Wrapf(ErrMalformedPayload, "decode list: %v", err)
		}
		return matches, nil
	}

	var wrapper struct {
		Results []Match `json:"results"`
		Matches []Match `json:"matches"`
	}
	if err := decodeFirst(text, &wrapper); err != nil {
		return nil, eris.Wrapf(ErrMalformedPayload, "decode object: %v", err)
	}
	switch {
	case wrapper.Results != nil:
		return wrapper.Results, nil
	case wrapper.Matches != nil:
		return wrapper.Matches, nil
	default:
		return nil, eris.Wrap(ErrMalformedPayload, "object has no results list")
	}
}

// decodeFirst decodes the first JSON value of text, ignoring trailing prose.
func decodeFirst(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	return dec.Decode(v)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
