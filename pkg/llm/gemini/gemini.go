// Package gemini adapts the Google GenAI SDK to the provider contract.
// Gemini is the search-grounded family: when a request declares grounding
// tools the adapter must not attach structured-output options.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/hirepilot/hirepilot/pkg/llm"
)

const vendor = "gemini"

// Adapter implements llm.Provider, llm.ImageProvider and llm.VideoProvider
// over one genai client. Stateless apart from the client; one instance per
// process.
type Adapter struct {
	client  *genai.Client
	traffic llm.TrafficLogger
}

// New creates a Gemini adapter from an API key.
func New(ctx context.Context, apiKey string, traffic llm.TrafficLogger) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Adapter{client: client, traffic: traffic}, nil
}

// NewFromClient wraps an existing genai client (useful for tests).
func NewFromClient(client *genai.Client, traffic llm.TrafficLogger) *Adapter {
	return &Adapter{client: client, traffic: traffic}
}

func (a *Adapter) Vendor() string { return vendor }

// Invoke runs one text generation call. Provider failures come back in
// Response.Error; only context/client faults return a Go error.
func (a *Adapter) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	structured := llm.RequestUsesStructuredOutput(vendor, &req)

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	for _, tool := range req.GroundingTools {
		switch tool {
		case llm.GroundingGoogleSearch:
			cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		case llm.GroundingGoogleMaps:
			cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
		}
	}
	if req.Mode == llm.ModeJSON && structured {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.OutputSchema
	}

	rec := llm.TrafficRecord{
		TaskType:          req.TaskType,
		Vendor:            vendor,
		Model:             req.Model,
		Mode:              req.Mode,
		HasGroundingTools: req.HasGroundingTools(),
		HasResponseSchema: req.Mode == llm.ModeJSON && structured,
		RequestPreview:    llm.Preview(req.User),
		At:                time.Now().UTC(),
	}

	resp, err := a.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.User), cfg)
	if err != nil {
		rec.ErrorReason = "provider_error"
		a.record(ctx, rec)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &llm.Response{Error: &llm.ProviderError{
			Reason:     "provider_error",
			Message:    err.Error(),
			RawPreview: llm.Preview(err.Error()),
		}}, nil
	}

	out := &llm.Response{Text: resp.Text()}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		out.FinishReason = string(cand.FinishReason)
		if cand.GroundingMetadata != nil {
			out.GroundingMeta = groundingMeta(cand.GroundingMetadata)
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			ThoughtsTokens:   int(resp.UsageMetadata.ThoughtsTokenCount),
			CachedTokens:     int(resp.UsageMetadata.CachedContentTokenCount),
		}
	}
	if req.Mode == llm.ModeJSON && structured {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(out.Text), &parsed); err == nil {
			out.Parsed = parsed
		}
	}

	rec.ResponsePreview = llm.Preview(out.Text)
	rec.FinishReason = out.FinishReason
	a.record(ctx, rec)
	return out, nil
}

func (a *Adapter) record(ctx context.Context, rec llm.TrafficRecord) {
	if a.traffic != nil {
		a.traffic.Record(ctx, rec)
	}
}

// groundingMeta flattens the SDK grounding metadata into the opaque map the
// orchestrator persists alongside results.
func groundingMeta(meta *genai.GroundingMetadata) map[string]any {
	out := make(map[string]any)
	if len(meta.WebSearchQueries) > 0 {
		out["webSearchQueries"] = meta.WebSearchQueries
	}
	var sources []map[string]string
	for _, chunk := range meta.GroundingChunks {
		if chunk.Web != nil {
			sources = append(sources, map[string]string{
				"title": chunk.Web.Title,
				"uri":   chunk.Web.URI,
			})
		}
	}
	if len(sources) > 0 {
		out["sources"] = sources
	}
	return out
}
