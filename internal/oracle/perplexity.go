package oracle

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/pkg/perplexity"
)

// PerplexityOracle verifies names with Perplexity's search-grounded models.
type PerplexityOracle struct {
	prompts Prompts

	mu        sync.Mutex
	clients   map[string]perplexity.Client
	newClient func(opts Options) perplexity.Client
}

// NewPerplexityOracle creates a Perplexity backend.
func NewPerplexityOracle(prompts Prompts) *PerplexityOracle {
	return &PerplexityOracle{
		prompts: prompts,
		clients: make(map[string]perplexity.Client),
		newClient: func(opts Options) perplexity.Client {
			return perplexity.NewClient(opts.Credential, perplexity.WithBaseURL(opts.EndpointOverride))
		},
	}
}

func (p *PerplexityOracle) clientFor(opts Options) perplexity.Client {
	key := opts.Credential + "\x00" + opts.EndpointOverride

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}
	c := p.newClient(opts)
	p.clients[key] = c
	return c
}

// VerifyBatch implements Oracle.
func (p *PerplexityOracle) VerifyBatch(ctx context.Context, names []string, opts Options) (*BatchResponse, error) {
	temp := 0.1
	resp, err := p.clientFor(opts).ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: opts.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: p.prompts.VerifySystem()},
			{Role: "user", Content: p.prompts.VerifyUser(names)},
		},
		Temperature: &temp,
		ResponseFormat: &perplexity.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &perplexity.JSONSchema{Schema: MatchSchema()},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "perplexity oracle: verify batch")
	}

	matches, err := ParseMatches(resp.Content())
	if err != nil {
		return nil, eris.Wrap(err, "perplexity oracle: parse matches")
	}

	zap.L().Debug("oracle usage",
		zap.String("provider", ProviderPerplexity),
		zap.String("operation", "verify_batch"),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return &BatchResponse{Matches: matches, Sources: perplexitySources(resp)}, nil
}

// Summarize implements Oracle.
func (p *PerplexityOracle) Summarize(ctx context.Context, lines []string, opts Options) (string, error) {
	resp, err := p.clientFor(opts).ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: opts.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: p.prompts.SummarySystem()},
			{Role: "user", Content: p.prompts.SummaryUser(lines)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "perplexity oracle: summarize")
	}
	return strings.TrimSpace(resp.Content()), nil
}

// perplexitySources prefers titled search results and falls back to the bare
// citation URLs.
func perplexitySources(resp *perplexity.ChatCompletionResponse) []model.Source {
	if len(resp.SearchResults) > 0 {
		out := make([]model.Source, 0, len(resp.SearchResults))
		for _, sr := range resp.SearchResults {
			out = append(out, model.Source{URI: sr.URL, Title: sr.Title})
		}
		return out
	}
	out := make([]model.Source, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		out = append(out, model.Source{URI: c, Title: c})
	}
	return out
}
