// Package orchestrator is the task gateway: it validates requests, enriches
// context from the document store, runs the caching rules, invokes the
// provider through the compatibility gate, persists results or failure
// envelopes, and settles credits.
package orchestrator

import (
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// Context keys recognized in TaskRequest.Context.
const (
	CtxJobID           = "jobId"
	CtxVideoID         = "videoId"
	CtxChannelID       = "channelId"
	CtxVisibleFieldIDs = "visibleFieldIds"
	CtxDeltas          = "deltas"
	CtxForceRefresh    = "forceRefresh"
	CtxMessage         = "message"
	CtxStage           = "stage"
	CtxCompanyName     = "companyName"
	CtxLocation        = "location"
	CtxApproved        = "approved"
	CtxFormatID        = "formatId"
	CtxSourceChannelID = "sourceChannelId"
	CtxSourceFormatID  = "sourceFormatId"
)

// Skip reasons emitted without a provider call.
const (
	SkipIntakeIncomplete = "intake_incomplete"
)

// TaskRequest is one POST /api/llm invocation.
type TaskRequest struct {
	UserID   string
	TaskType string
	Context  map[string]any
}

// Str returns a string context value.
func (r *TaskRequest) Str(key string) string {
	if v, ok := r.Context[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns a boolean context value.
func (r *TaskRequest) Bool(key string) bool {
	v, _ := r.Context[key].(bool)
	return v
}

// StrList returns a string-list context value, tolerating []any payloads.
func (r *TaskRequest) StrList(key string) []string {
	switch v := r.Context[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns a map context value.
func (r *TaskRequest) Map(key string) map[string]any {
	if v, ok := r.Context[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Action is one side effect the copilot applied during an agent run.
type Action struct {
	Type    string         `json:"type"`
	FieldID string         `json:"fieldId,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// TaskResult is the uniform task outcome returned to the API layer.
type TaskResult struct {
	TaskType   string          `json:"taskType"`
	Skipped    bool            `json:"skipped,omitempty"`
	SkipReason string          `json:"skipReason,omitempty"`
	Refreshed  bool            `json:"refreshed"`
	Payload    map[string]any  `json:"payload,omitempty"`
	Message    string          `json:"message,omitempty"`
	Actions    []Action        `json:"actions,omitempty"`
	Failure    *models.Failure `json:"failure,omitempty"`
	Credits    int64           `json:"creditsUsed"`
}

// failureNow builds a failure envelope stamped with the current time.
func failureNow(reason, errMsg, rawPreview string) *models.Failure {
	return &models.Failure{
		Reason:     reason,
		Error:      errMsg,
		RawPreview: rawPreview,
		OccurredAt: time.Now().UTC(),
	}
}
