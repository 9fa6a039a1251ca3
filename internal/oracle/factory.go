package oracle

import (
	"strings"

	"github.com/rotisserie/eris"
)

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Provider  string
	Grounding bool
	Prompts   Prompts
}

// NewBackend returns the unguarded backend for cfg.Provider.
func NewBackend(cfg BackendConfig) (Oracle, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiOracle(cfg.Prompts, cfg.Grounding), nil
	case ProviderPerplexity:
		return NewPerplexityOracle(cfg.Prompts), nil
	case ProviderAnthropic:
		return NewAnthropicOracle(cfg.Prompts), nil
	case ProviderStub:
		return StubOracle{}, nil
	default:
		return nil, eris.Errorf("oracle: unknown provider %q", cfg.Provider)
	}
}
