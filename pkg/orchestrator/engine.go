package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/prompt"
	"github.com/hirepilot/hirepilot/pkg/schema"
)

// reserveBufferTokens pads the credit reservation for the unmetered output.
const reserveBufferTokens = 2048

// Failure reasons of the error taxonomy.
const (
	ReasonProviderError    = "provider_error"
	ReasonSchemaValidation = "schema_validation_failed"
	ReasonTimeout          = "timeout"
)

// Invocation is one core provider call: prompt id plus template variables.
type Invocation struct {
	UserID   string
	JobID    string
	TaskType string
	Vars     map[string]any
	// Provider overrides the configured selector when non-empty.
	Provider string
}

// Outcome is the result of a core invocation. A non-nil Failure means the
// call completed without a usable payload; Credits reflects what will be
// committed when the caller settles.
type Outcome struct {
	Payload  map[string]any
	Text     string
	Usage    llm.Usage
	Selector string
	Vendor   string
	Model    string
	Credits  int64
	Failure  *models.Failure

	settle  func(context.Context)
	release func(context.Context)
}

// Settle commits the open reservation and emits the usage row. Callers settle
// only after the result has been persisted; persistence precedes the commit.
func (out *Outcome) Settle(ctx context.Context) {
	if out.settle == nil {
		return
	}
	f := out.settle
	out.settle, out.release = nil, nil
	f(ctx)
}

// Release refunds the open reservation when the result could not be
// persisted. Nothing is charged and no usage row is written.
func (out *Outcome) Release(ctx context.Context) {
	if out.release == nil {
		return
	}
	f := out.release
	out.settle, out.release = nil, nil
	f(ctx)
}

// Engine performs core invocations: resolve prompt, reserve credits, call the
// provider through the compatibility gate, validate output. The caller settles
// the reservation once the result is persisted.
type Engine struct {
	prompts   *prompt.Registry
	providers *llm.Registry
	ledger    *credits.Ledger
	cfg       *config.Config
}

// NewEngine wires the core invocation engine.
func NewEngine(prompts *prompt.Registry, providers *llm.Registry, ledger *credits.Ledger, cfg *config.Config) *Engine {
	return &Engine{prompts: prompts, providers: providers, ledger: ledger, cfg: cfg}
}

// Prompts exposes the prompt registry.
func (e *Engine) Prompts() *prompt.Registry { return e.prompts }

// Providers exposes the provider registry.
func (e *Engine) Providers() *llm.Registry { return e.providers }

// Ledger exposes the credit ledger.
func (e *Engine) Ledger() *credits.Ledger { return e.ledger }

// Config exposes the process configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Selector resolves the provider selector for an invocation.
func (e *Engine) Selector(inv *Invocation) string {
	if inv.Provider != "" {
		return inv.Provider
	}
	def := e.prompts.Resolve(inv.TaskType)
	if def.ProviderPreference != "" {
		return def.ProviderPreference
	}
	return e.cfg.ProviderForTask(inv.TaskType)
}

// Invoke runs one provider call. It returns an error only for request-level
// problems (unknown vendor, insufficient credits); provider and validation
// failures come back in Outcome.Failure. Provider errors refund the hold
// immediately; otherwise the reservation stays open until the caller calls
// Settle after persisting the result, or Release when persistence failed.
func (e *Engine) Invoke(ctx context.Context, inv Invocation) (*Outcome, error) {
	def := e.prompts.Resolve(inv.TaskType)
	selector := e.Selector(&inv)

	provider, model, err := e.providers.ResolveText(selector)
	if err != nil {
		return nil, err
	}

	system, user, err := e.prompts.Render(def, inv.Vars)
	if err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", inv.TaskType, err)
	}

	estTokens := credits.EstimateTokens(len(system)+len(user)) + reserveBufferTokens
	estCredits := e.ledger.Rates().TextCredits(selector, estTokens)
	reservationID, err := e.ledger.Reserve(ctx, inv.UserID, estCredits)
	if err != nil {
		return nil, err
	}

	mode := llm.ModeText
	if def.OutputSchema != nil {
		mode = llm.ModeJSON
	}
	req := llm.Request{
		Model:            model,
		System:           system,
		User:             user,
		Mode:             mode,
		TaskType:         inv.TaskType,
		OutputSchema:     def.OutputSchema,
		OutputSchemaName: def.OutputSchemaName,
		GroundingTools:   def.GroundingTools,
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.TextTimeout)
	defer cancel()

	out := &Outcome{Selector: selector, Vendor: provider.Vendor(), Model: model}
	resp, err := provider.Invoke(callCtx, req)
	if err != nil {
		e.refund(ctx, inv.UserID, reservationID)
		reason := ReasonProviderError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		out.Failure = failureNow(reason, err.Error(), "")
		e.appendUsage(ctx, inv, out, "error", reason)
		return out, nil
	}

	if resp.Error != nil {
		e.refund(ctx, inv.UserID, reservationID)
		out.Failure = failureNow(resp.Error.Reason, resp.Error.Message, resp.Error.RawPreview)
		e.appendUsage(ctx, inv, out, "error", resp.Error.Reason)
		return out, nil
	}

	out.Text = resp.Text
	out.Usage = resp.Usage
	out.Credits = e.ledger.Rates().TextCredits(selector, resp.Usage.TotalTokens())

	status, reason := "success", ""
	if def.OutputSchema != nil {
		payload := resp.Parsed
		if payload == nil {
			payload, err = schema.ValidateJSON(def.OutputSchemaName, def.OutputSchema, []byte(ExtractJSON(resp.Text)))
		} else {
			err = schema.ValidateValue(def.OutputSchemaName, def.OutputSchema, payload)
		}
		if err != nil {
			out.Failure = failureNow(ReasonSchemaValidation, err.Error(), llm.Preview(resp.Text))
			status, reason = "error", ReasonSchemaValidation
		} else {
			out.Payload = payload
		}
	}

	out.settle = func(ctx context.Context) {
		if err := e.ledger.Commit(ctx, inv.UserID, reservationID, out.Credits); err != nil {
			slog.Error("credit commit failed", "user_id", inv.UserID, "task_type", inv.TaskType, "error", err)
		}
		e.appendUsage(ctx, inv, out, status, reason)
	}
	out.release = func(ctx context.Context) {
		out.Credits = 0
		e.refund(ctx, inv.UserID, reservationID)
	}
	return out, nil
}

func (e *Engine) refund(ctx context.Context, userID, reservationID string) {
	if err := e.ledger.Refund(ctx, userID, reservationID); err != nil {
		slog.Error("credit refund failed", "user_id", userID, "error", err)
	}
}

func (e *Engine) appendUsage(ctx context.Context, inv Invocation, out *Outcome, status, reason string) {
	e.ledger.Append(ctx, models.UsageEntry{
		UserID:           inv.UserID,
		JobID:            inv.JobID,
		TaskType:         inv.TaskType,
		Provider:         out.Vendor,
		Model:            out.Model,
		InputTokens:      out.Usage.PromptTokens,
		OutputTokens:     out.Usage.CandidatesTokens,
		ThoughtsTokens:   out.Usage.ThoughtsTokens,
		CachedTokens:     out.Usage.CachedTokens,
		EstimatedCostUsd: e.ledger.Rates().EstimateUsd(out.Selector, out.Usage.TotalTokens()),
		CreditsUsed:      out.Credits,
		Status:           status,
		ErrorReason:      reason,
	})
}

// ExtractJSON strips markdown code fences and leading prose so grounded
// text-mode replies can still be parsed as JSON.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "```"); start >= 0 {
		rest := s[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if start := strings.IndexAny(s, "{["); start > 0 {
		return s[start:]
	}
	return s
}
