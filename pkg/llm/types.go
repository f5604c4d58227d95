// Package llm defines the provider-neutral request/response contract shared
// by all adapters, the structured-output compatibility gate, and the raw
// traffic side channel.
package llm

import "context"

// Mode selects plain text or JSON output.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Grounding tool identifiers a prompt may declare.
const (
	GroundingGoogleSearch = "google_search"
	GroundingGoogleMaps   = "google_maps"
)

// Request is the uniform adapter input. For JSON mode the adapter consults
// the compatibility gate before attaching provider-native schema options.
type Request struct {
	Model            string
	System           string
	User             string
	Mode             Mode
	TaskType         string
	OutputSchema     map[string]any
	OutputSchemaName string
	GroundingTools   []string
	MaxOutputTokens  int
	Temperature      *float64
}

// HasGroundingTools reports whether the request declares grounding tools.
func (r *Request) HasGroundingTools() bool {
	return len(r.GroundingTools) > 0
}

// HasOutputSchema reports whether the request carries an output schema.
func (r *Request) HasOutputSchema() bool {
	return len(r.OutputSchema) > 0
}

// Usage is provider-reported token accounting.
type Usage struct {
	PromptTokens     int
	CandidatesTokens int
	ThoughtsTokens   int
	CachedTokens     int
}

// TotalTokens sums all billed token counts.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CandidatesTokens + u.ThoughtsTokens
}

// ProviderError is a recoverable provider failure. Adapters return it inside
// the response instead of an error so the orchestrator can persist a failure
// envelope and refund the reservation.
type ProviderError struct {
	Reason     string
	Message    string
	RawPreview string
}

// Response is the uniform adapter output.
type Response struct {
	Text          string
	Parsed        map[string]any
	Usage         Usage
	FinishReason  string
	GroundingMeta map[string]any
	Error         *ProviderError
}

// Provider is a text-generation adapter for one vendor. Invoke returns a Go
// error only for infrastructure failures; provider-level errors come back in
// Response.Error.
type Provider interface {
	Vendor() string
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ImageRequest asks an image provider for n images of a prompt.
type ImageRequest struct {
	Model  string
	Prompt string
	Count  int
}

// ImageResponse carries generated image references.
type ImageResponse struct {
	URLs  []string
	Error *ProviderError
}

// ImageProvider generates still images.
type ImageProvider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// RenderRequest submits one video segment. ExtendFromURL is empty for the
// first segment and the previous segment's output for extensions.
type RenderRequest struct {
	Model         string
	Prompt        string
	Seconds       float64
	ExtendFromURL string
}

// RenderState is the provider-side lifecycle of a render operation.
type RenderState string

const (
	RenderStatePredicting RenderState = "predicting"
	RenderStateFetching   RenderState = "fetching"
	RenderStateDone       RenderState = "done"
	RenderStateFailed     RenderState = "failed"
)

// RenderStatus is one poll result.
type RenderStatus struct {
	State    RenderState
	VideoURL string
	Reason   string
}

// VideoProvider submits and polls segment renders.
type VideoProvider interface {
	SubmitRender(ctx context.Context, req RenderRequest) (operationID string, err error)
	PollRender(ctx context.Context, operationID string) (*RenderStatus, error)
}
