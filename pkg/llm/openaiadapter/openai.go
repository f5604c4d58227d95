// Package openaiadapter adapts the official OpenAI SDK to the provider
// contract. OpenAI is never the search-grounded family, so JSON-mode
// requests with an output schema always use the native json_schema response
// format.
package openaiadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hirepilot/hirepilot/pkg/llm"
)

const vendor = "openai"

// ChatClient is the subset of the SDK used by the adapter; satisfied by the
// real chat completion service and by test fakes.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Adapter implements llm.Provider over OpenAI chat completions.
type Adapter struct {
	chat    ChatClient
	traffic llm.TrafficLogger
}

// New creates an adapter from an API key.
func New(apiKey string, traffic llm.TrafficLogger) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Adapter{chat: &client.Chat.Completions, traffic: traffic}, nil
}

// NewFromClient wraps an existing chat client (useful for tests).
func NewFromClient(chat ChatClient, traffic llm.TrafficLogger) *Adapter {
	return &Adapter{chat: chat, traffic: traffic}
}

func (a *Adapter) Vendor() string { return vendor }

func (a *Adapter) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	structured := llm.RequestUsesStructuredOutput(vendor, &req)

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Mode == llm.ModeJSON && structured {
		name := req.OutputSchemaName
		if name == "" {
			name = "task_output"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.OutputSchema,
					Strict: openai.Bool(true),
				},
			},
		}
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

	resp, err := a.chat.New(ctx, params)
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
	if len(resp.Choices) == 0 {
		rec.ErrorReason = "provider_error"
		a.record(ctx, rec)
		return &llm.Response{Error: &llm.ProviderError{
			Reason:  "provider_error",
			Message: "no choices in completion",
		}}, nil
	}

	choice := resp.Choices[0]
	out := &llm.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CandidatesTokens: int(resp.Usage.CompletionTokens),
			CachedTokens:     int(resp.Usage.PromptTokensDetails.CachedTokens),
		},
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
