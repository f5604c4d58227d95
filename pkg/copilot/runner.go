package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/schema"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// snagReply is the canned fallback when the loop exhausts its turn budget or
// the provider fails mid-conversation. Any actions already applied stay
// applied.
const snagReply = "I hit a snag working through that request. Everything I already changed has been saved; please try rephrasing the rest."

// Runner executes the copilot loop. It implements orchestrator.AgentRunner.
type Runner struct {
	engine    *orchestrator.Engine
	store     docstore.Store
	jobs      *services.JobService
	chats     *services.ChatService
	companies *company.Loader
	tools     map[string]*Tool
	maxTurns  int
}

// NewRunner wires the agent loop.
func NewRunner(engine *orchestrator.Engine, store docstore.Store, jobs *services.JobService, chats *services.ChatService, companies *company.Loader) *Runner {
	maxTurns := engine.Config().MaxAgentTurns
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &Runner{
		engine:    engine,
		store:     store,
		jobs:      jobs,
		chats:     chats,
		companies: companies,
		tools:     builtinTools(),
		maxTurns:  maxTurns,
	}
}

// scratchEntry is one tool outcome carried between turns of an invocation.
type scratchEntry struct {
	Kind    string // tool_result or tool_error
	Tool    string
	Content string
}

// Run drives one copilot invocation: bounded LLM turns with optional tool
// execution, final reply, chat persistence, refine-stage reconciliation.
func (r *Runner) Run(ctx context.Context, job *models.Job, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	message := strings.TrimSpace(req.Str(orchestrator.CtxMessage))
	if message == "" {
		return nil, services.NewValidationError(orchestrator.CtxMessage, "missing message")
	}
	stage, ok := ResolveStage(req.Str(orchestrator.CtxStage))
	if !ok {
		return nil, services.NewValidationError(orchestrator.CtxStage, "unknown stage")
	}

	chat, err := r.chats.Append(ctx, job.ID, models.ChatMessage{
		Role:    models.ChatRoleUser,
		Content: message,
		Stage:   stage.Name,
	})
	if err != nil {
		return nil, err
	}
	conversation := orchestrator.ConversationSnapshot(chat.Window(models.ChatWindowSize))

	tc := &ToolContext{
		Store:     r.store,
		Jobs:      r.jobs,
		Companies: r.companies,
		UserID:    req.UserID,
		Job:       job,
	}

	var (
		scratchpad   []scratchEntry
		actions      []orchestrator.Action
		credits      int64
		final        string
		finalOutcome *orchestrator.Outcome
	)

	for turn := 0; turn < r.maxTurns && final == ""; turn++ {
		outcome, err := r.engine.Invoke(ctx, orchestrator.Invocation{
			UserID:   req.UserID,
			JobID:    job.ID,
			TaskType: models.TaskCopilotAgent,
			Vars: map[string]any{
				"StageFraming":   stage.Framing(),
				"JobSnapshot":    orchestrator.JobSnapshot(tc.Job),
				"Suggestions":    r.suggestionsSnapshot(ctx, job.ID),
				"RefinedJob":     r.refinementSnapshot(ctx, job.ID),
				"CompanyContext": r.companySnapshot(ctx, tc.Job),
				"Conversation":   conversation,
				"Scratchpad":     renderScratchpad(scratchpad),
				"ToolManifest":   r.toolManifest(stage),
			},
		})
		if err != nil {
			return nil, err
		}
		credits += outcome.Credits
		if outcome.Failure != nil {
			outcome.Settle(ctx)
			slog.Warn("copilot turn failed",
				"job_id", job.ID, "turn", turn, "reason", outcome.Failure.Reason)
			break
		}

		stepType, _ := outcome.Payload["type"].(string)
		switch stepType {
		case "final":
			final, _ = outcome.Payload["message"].(string)
			if final == "" {
				final = snagReply
			}
			// Settled after the assistant reply is persisted below.
			finalOutcome = outcome
		case "tool_call":
			entry, action, reply := r.runTool(ctx, tc, stage, outcome.Payload)
			scratchpad = append(scratchpad, entry)
			if action != nil {
				actions = append(actions, *action)
			}
			if reply != "" {
				final = reply
			}
			// The tool already persisted its effects; the turn settles now.
			outcome.Settle(ctx)
		default:
			scratchpad = append(scratchpad, scratchEntry{
				Kind:    "tool_error",
				Content: fmt.Sprintf("unrecognized step type %q", stepType),
			})
			outcome.Settle(ctx)
		}
	}

	if final == "" {
		final = snagReply
	}
	final = services.StripMarkdown(final)

	if stage.Name == StageRefine {
		if err := r.syncRefinedFields(ctx, job.ID, actions); err != nil {
			if finalOutcome != nil {
				finalOutcome.Release(ctx)
			}
			return nil, err
		}
	}

	if _, err := r.chats.Append(ctx, job.ID, models.ChatMessage{
		Role:    models.ChatRoleAssistant,
		Content: final,
		Stage:   stage.Name,
	}); err != nil {
		if finalOutcome != nil {
			finalOutcome.Release(ctx)
		}
		return nil, err
	}
	if finalOutcome != nil {
		finalOutcome.Settle(ctx)
	}

	return &orchestrator.TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Message:   final,
		Actions:   actions,
		Payload: map[string]any{
			"jobState": string(tc.Job.StateMachine.CurrentState),
		},
		Credits: credits,
	}, nil
}

// runTool validates and executes one requested tool call. Failures become
// scratchpad tool_error entries; the loop continues either way.
func (r *Runner) runTool(ctx context.Context, tc *ToolContext, stage *StageConfig, step map[string]any) (scratchEntry, *orchestrator.Action, string) {
	name, _ := step["tool"].(string)
	input, _ := step["input"].(map[string]any)
	if input == nil {
		input = map[string]any{}
	}

	tool, ok := r.tools[name]
	if !ok || !stage.Allows(name) {
		return scratchEntry{
			Kind:    "tool_error",
			Tool:    name,
			Content: fmt.Sprintf("tool %q is not available in stage %s", name, stage.Name),
		}, nil, ""
	}
	if err := schema.ValidateValue(tool.Name+"_input", tool.InputSchema, input); err != nil {
		return scratchEntry{
			Kind:    "tool_error",
			Tool:    name,
			Content: "invalid input: " + err.Error(),
		}, nil, ""
	}

	result, err := tool.Execute(ctx, tc, input)
	if err != nil {
		return scratchEntry{
			Kind:    "tool_error",
			Tool:    name,
			Content: err.Error(),
		}, nil, ""
	}

	payload, _ := json.Marshal(result.Data)
	entry := scratchEntry{
		Kind:    "tool_result",
		Tool:    name,
		Content: fmt.Sprintf("status=%s %s", result.Status, payload),
	}
	if result.Status != "ok" {
		entry.Kind = "tool_error"
		return entry, nil, ""
	}
	return entry, result.Action, result.Reply
}

func (r *Runner) toolManifest(stage *StageConfig) string {
	var b strings.Builder
	for _, name := range stage.ToolNames {
		tool, ok := r.tools[name]
		if !ok {
			continue
		}
		props, _ := tool.InputSchema["properties"].(map[string]any)
		params := make([]string, 0, len(props))
		for p := range props {
			params = append(params, p)
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", tool.Name, strings.Join(params, ", "), tool.Description)
	}
	return b.String()
}

func renderScratchpad(entries []scratchEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Kind, e.Tool, e.Content)
	}
	return b.String()
}

func (r *Runner) suggestionsSnapshot(ctx context.Context, jobID string) string {
	doc, err := docstore.GetTyped[models.SuggestionDoc](ctx, r.store, models.CollectionSuggestions, jobID)
	if err != nil {
		return ""
	}
	return orchestrator.SuggestionsSnapshot(doc)
}

func (r *Runner) refinementSnapshot(ctx context.Context, jobID string) string {
	doc, err := docstore.GetTyped[models.RefinementDoc](ctx, r.store, models.CollectionRefinements, jobID)
	if err != nil {
		return ""
	}
	return orchestrator.RefinementSnapshot(doc)
}

func (r *Runner) companySnapshot(ctx context.Context, job *models.Job) string {
	doc, err := r.companies.Cached(ctx, job.Intake.CompanyName)
	if err != nil || doc == nil {
		return ""
	}
	return company.FormatForPrompt(doc)
}
