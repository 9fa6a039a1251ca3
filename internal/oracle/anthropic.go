package oracle

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/pkg/anthropic"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicOracle verifies names with Claude. Claude answers without search
// grounding, so every batch comes back with an empty source list.
type AnthropicOracle struct {
	prompts Prompts

	mu        sync.Mutex
	clients   map[string]anthropic.Client
	newClient func(opts Options) anthropic.Client
}

// NewAnthropicOracle creates an Anthropic backend.
func NewAnthropicOracle(prompts Prompts) *AnthropicOracle {
	return &AnthropicOracle{
		prompts: prompts,
		clients: make(map[string]anthropic.Client),
		newClient: func(opts Options) anthropic.Client {
			return anthropic.NewClient(opts.Credential, opts.EndpointOverride)
		},
	}
}

func (a *AnthropicOracle) clientFor(opts Options) anthropic.Client {
	key := opts.Credential + "\x00" + opts.EndpointOverride

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[key]; ok {
		return c
	}
	c := a.newClient(opts)
	a.clients[key] = c
	return c
}

// VerifyBatch implements Oracle.
func (a *AnthropicOracle) VerifyBatch(ctx context.Context, names []string, opts Options) (*BatchResponse, error) {
	modelName := modelOr(opts, defaultAnthropicModel)
	temp := 0.0
	resp, err := a.clientFor(opts).CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelName,
		MaxTokens:   4096,
		System:      a.prompts.VerifySystem() + "\n" + schemaHint(),
		Messages:    []anthropic.Message{{Role: "user", Content: a.prompts.VerifyUser(names)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic oracle: verify batch")
	}
	resp.Usage.LogCost(modelName, "verify_batch")

	matches, err := ParseMatches(resp.Text())
	if err != nil {
		return nil, eris.Wrap(err, "anthropic oracle: parse matches")
	}
	return &BatchResponse{Matches: matches}, nil
}

// Summarize implements Oracle.
func (a *AnthropicOracle) Summarize(ctx context.Context, lines []string, opts Options) (string, error) {
	modelName := modelOr(opts, defaultAnthropicModel)
	resp, err := a.clientFor(opts).CreateMessage(ctx, anthropic.MessageRequest{
		Model:     modelName,
		MaxTokens: 1024,
		System:    a.prompts.SummarySystem(),
		Messages:  []anthropic.Message{{Role: "user", Content: a.prompts.SummaryUser(lines)}},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic oracle: summarize")
	}
	resp.Usage.LogCost(modelName, "summarize")
	return strings.TrimSpace(resp.Text()), nil
}
