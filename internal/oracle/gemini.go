package oracle

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/resilience"
)

const defaultGeminiModel = "gemini-2.5-flash"

// generator is the slice of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOracle verifies names with Gemini, grounded on Google Search. Sources
// come from the grounding chunks attached to the single candidate.
type GeminiOracle struct {
	prompts   Prompts
	grounding bool

	mu         sync.Mutex
	generators map[string]generator
	newGen     func(ctx context.Context, opts Options) (generator, error)
}

// NewGeminiOracle creates a Gemini backend. With grounding enabled the
// response schema is described in the prompt, since the API does not accept
// a response schema together with the search tool.
func NewGeminiOracle(prompts Prompts, grounding bool) *GeminiOracle {
	return &GeminiOracle{
		prompts:    prompts,
		grounding:  grounding,
		generators: make(map[string]generator),
		newGen:     newGenAIGenerator,
	}
}

func newGenAIGenerator(ctx context.Context, opts Options) (generator, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.EndpointOverride != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.EndpointOverride}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return client.Models, nil
}

// generatorFor returns a client for the credential/endpoint pair in opts.
func (g *GeminiOracle) generatorFor(ctx context.Context, opts Options) (generator, error) {
	key := opts.Credential + "\x00" + opts.EndpointOverride

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen, ok := g.generators[key]; ok {
		return gen, nil
	}
	gen, err := g.newGen(ctx, opts)
	if err != nil {
		return nil, err
	}
	g.generators[key] = gen
	return gen, nil
}

func modelOr(opts Options, fallback string) string {
	if opts.Model != "" {
		return opts.Model
	}
	return fallback
}

// VerifyBatch implements Oracle.
func (g *GeminiOracle) VerifyBatch(ctx context.Context, names []string, opts Options) (*BatchResponse, error) {
	gen, err := g.generatorFor(ctx, opts)
	if err != nil {
		return nil, err
	}

	system := g.prompts.VerifySystem()
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	if g.grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		system += "\n" + schemaHint()
	} else {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = geminiMatchSchema()
	}
	cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)

	modelName := modelOr(opts, defaultGeminiModel)
	resp, err := gen.GenerateContent(ctx, modelName, genai.Text(g.prompts.VerifyUser(names)), cfg)
	if err != nil {
		return nil, wrapGenAIError(err, "gemini: verify batch")
	}

	text := candidateText(resp)
	matches, err := ParseMatches(text)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: parse matches")
	}

	sources := groundingSources(resp)
	logUsage(resp, modelName, "verify_batch", len(sources))

	return &BatchResponse{Matches: matches, Sources: sources}, nil
}

// Summarize implements Oracle. No schema is used; an empty answer is not an
// error.
func (g *GeminiOracle) Summarize(ctx context.Context, lines []string, opts Options) (string, error) {
	gen, err := g.generatorFor(ctx, opts)
	if err != nil {
		return "", err
	}

	modelName := modelOr(opts, defaultGeminiModel)
	resp, err := gen.GenerateContent(ctx, modelName, genai.Text(g.prompts.SummaryUser(lines)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.prompts.SummarySystem(), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
	})
	if err != nil {
		return "", wrapGenAIError(err, "gemini: summarize")
	}
	logUsage(resp, modelName, "summarize", 0)
	return strings.TrimSpace(candidateText(resp)), nil
}

func geminiMatchSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(matchFields))
	for _, f := range matchFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   append([]string(nil), matchFields...),
		},
	}
}

// candidateText joins the non-thought text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// groundingSources extracts web citations in the order Gemini reported them.
func groundingSources(resp *genai.GenerateContentResponse) []model.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []model.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, model.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}

func wrapGenAIError(err error, msg string) error {
	wrapped := eris.Wrap(err, msg)
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return resilience.WrapStatus(wrapped, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return resilience.WrapStatus(wrapped, apiErrPtr.Code)
	}
	return wrapped
}

func logUsage(resp *genai.GenerateContentResponse, modelName, operation string, sources int) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	zap.L().Debug("oracle usage",
		zap.String("provider", ProviderGemini),
		zap.String("model", modelName),
		zap.String("operation", operation),
		zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
		zap.Int32("candidate_tokens", resp.UsageMetadata.CandidatesTokenCount),
		zap.Int("sources", sources),
	)
}
