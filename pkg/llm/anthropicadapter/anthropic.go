// Package anthropicadapter adapts the Anthropic Messages API to the provider
// contract. Claude has no native response-schema mode, so JSON-mode requests
// embed the schema in the system prompt and the orchestrator validates the
// parsed text post-hoc.
package anthropicadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hirepilot/hirepilot/pkg/llm"
)

const vendor = "anthropic"

const defaultMaxTokens = 4096

// MessagesClient is the subset of the Anthropic SDK used by the adapter.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Adapter implements llm.Provider over Anthropic Messages.
type Adapter struct {
	msg     MessagesClient
	traffic llm.TrafficLogger
}

// New creates an adapter from an API key.
func New(apiKey string, traffic llm.TrafficLogger) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Adapter{msg: &client.Messages, traffic: traffic}, nil
}

// NewFromClient wraps an existing messages client (useful for tests).
func NewFromClient(msg MessagesClient, traffic llm.TrafficLogger) *Adapter {
	return &Adapter{msg: msg, traffic: traffic}
}

func (a *Adapter) Vendor() string { return vendor }

func (a *Adapter) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	system := req.System
	if req.Mode == llm.ModeJSON && req.HasOutputSchema() {
		schemaJSON, err := json.Marshal(req.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("encode output schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object matching this JSON schema, with no surrounding prose:\n" + string(schemaJSON)
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.User))},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	rec := llm.TrafficRecord{
		TaskType:          req.TaskType,
		Vendor:            vendor,
		Model:             req.Model,
		Mode:              req.Mode,
		HasGroundingTools: req.HasGroundingTools(),
		HasResponseSchema: false,
		RequestPreview:    llm.Preview(req.User),
		At:                time.Now().UTC(),
	}

	msg, err := a.msg.New(ctx, params)
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

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	out := &llm.Response{
		Text:         text,
		FinishReason: string(msg.StopReason),
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CandidatesTokens: int(msg.Usage.OutputTokens),
			CachedTokens:     int(msg.Usage.CacheReadInputTokens),
		},
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
