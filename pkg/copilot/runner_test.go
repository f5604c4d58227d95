package copilot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/prompt"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// fakeProvider replays scripted agent steps and records the rendered prompts.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []llm.Request
}

func (f *fakeProvider) Vendor() string { return "fake" }

func (f *fakeProvider) Invoke(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return &llm.Response{Text: "ok"}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func toolStep(tool string, input map[string]any) *llm.Response {
	return &llm.Response{
		Parsed: map[string]any{"type": "tool_call", "tool": tool, "input": input},
		Usage:  llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}
}

func finalStep(message string) *llm.Response {
	return &llm.Response{
		Parsed: map[string]any{"type": "final", "message": message},
		Usage:  llm.Usage{PromptTokens: 600, CandidatesTokens: 400},
	}
}

type runnerHarness struct {
	runner   *Runner
	store    *docstore.MemoryStore
	jobs     *services.JobService
	chats    *services.ChatService
	ledger   *credits.Ledger
	provider *fakeProvider
}

func newRunnerHarness(t *testing.T, provider *fakeProvider, maxTurns int) *runnerHarness {
	t.Helper()
	store := docstore.NewMemoryStore()
	registry := llm.NewRegistry()
	registry.RegisterText(provider)
	ledger := credits.NewLedger(store, credits.DefaultRates())
	jobs := services.NewJobService(store)
	chats := services.NewChatService(store)
	companies := company.NewLoader(store)
	cfg := &config.Config{
		ChatProvider:  "fake:chat-1",
		MaxAgentTurns: maxTurns,
		TextTimeout:   5 * time.Second,
	}
	engine := orchestrator.NewEngine(prompt.NewRegistry(), registry, ledger, cfg)
	return &runnerHarness{
		runner:   NewRunner(engine, store, jobs, chats, companies),
		store:    store,
		jobs:     jobs,
		chats:    chats,
		ledger:   ledger,
		provider: provider,
	}
}

func (h *runnerHarness) readyJob(t *testing.T, userID string) *models.Job {
	t.Helper()
	require.NoError(t, h.ledger.Grant(context.Background(), userID, 1000))
	job, err := h.jobs.Create(context.Background(), userID, models.JobIntake{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme GmbH",
		Location:       "Berlin",
		SeniorityLevel: "senior",
		EmploymentType: "full_time",
		JobDescription: "Build the ledger service.",
	})
	require.NoError(t, err)
	return job
}

func copilotRequest(userID, jobID, message, stage string) *orchestrator.TaskRequest {
	return &orchestrator.TaskRequest{
		UserID:   userID,
		TaskType: models.TaskCopilotAgent,
		Context: map[string]any{
			orchestrator.CtxJobID:   jobID,
			orchestrator.CtxMessage: message,
			orchestrator.CtxStage:   stage,
		},
	}
}

func TestRunToolCallWithReplyTerminatesEarly(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("update_job_field", map[string]any{
			"fieldId": models.FieldBenefits,
			"value":   "30 days PTO; remote budget",
		}),
	}}
	h := newRunnerHarness(t, provider, 8)
	ctx := context.Background()
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(ctx, job, copilotRequest("user-1", job.ID, "add some benefits", StageWizard))
	require.NoError(t, err)

	// The side-effect tool reply ends the loop without another LLM turn.
	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, "I updated benefits as requested.", result.Message)
	assert.True(t, result.Refreshed)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, ActionFieldUpdate, result.Actions[0].Type)
	assert.Equal(t, models.FieldBenefits, result.Actions[0].FieldID)

	stored, err := h.jobs.GetOwned(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"30 days PTO", "remote budget"}, stored.Intake.Benefits)

	chat, err := h.chats.History(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, models.ChatRoleUser, chat.Messages[0].Role)
	assert.Equal(t, "add some benefits", chat.Messages[0].Content)
	assert.Equal(t, models.ChatRoleAssistant, chat.Messages[1].Role)
	assert.Equal(t, result.Message, chat.Messages[1].Content)
}

func TestRunFinalStep(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		finalStep("Your posting already lists four benefits."),
	}}
	h := newRunnerHarness(t, provider, 8)
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "what benefits do I have?", StageWizard))
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, "Your posting already lists four benefits.", result.Message)
	assert.Empty(t, result.Actions)
	assert.Equal(t, "REQUIRED_COMPLETE", result.Payload["jobState"])
	assert.Equal(t, int64(1), result.Credits, "1000 tokens at the default rate")
}

func TestRunReadToolThenFinal(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("get_job_snapshot", map[string]any{}),
		finalStep("The role is Backend Engineer in Berlin."),
	}}
	h := newRunnerHarness(t, provider, 8)
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "what did I enter so far?", StageWizard))
	require.NoError(t, err)

	require.Equal(t, 2, provider.calls())
	assert.Equal(t, "The role is Backend Engineer in Berlin.", result.Message)
	assert.Empty(t, result.Actions, "read-only tools record no actions")

	// The snapshot result is fed back through the scratchpad on turn two.
	assert.Contains(t, provider.requests[1].User, "tool_result")
	assert.Contains(t, provider.requests[1].User, "get_job_snapshot")
}

func TestRunTurnExhaustionFallsBackToSnagReply(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("get_job_snapshot", map[string]any{}),
	}}
	h := newRunnerHarness(t, provider, 2)
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "keep reading forever", StageWizard))
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls(), "loop stops at the turn budget")
	assert.Contains(t, result.Message, "I hit a snag")
}

func TestRunProviderFailureFallsBackToSnagReply(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{{
		Error: &llm.ProviderError{Reason: "provider_error", Message: "rate limited"},
	}}}
	h := newRunnerHarness(t, provider, 8)
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "hello", StageWizard))
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls())
	assert.Contains(t, result.Message, "I hit a snag")
}

func TestRunDisallowedToolBecomesScratchpadError(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("update_job_field", map[string]any{
			"fieldId": models.FieldRoleTitle,
			"value":   "Hacker",
		}),
		finalStep("Let's talk about channels instead."),
	}}
	h := newRunnerHarness(t, provider, 8)
	ctx := context.Background()
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(ctx, job,
		copilotRequest("user-1", job.ID, "change my title", StageChannels))
	require.NoError(t, err)

	// The channels stage does not whitelist intake edits; the loop continues
	// with a tool_error and the intake stays untouched.
	require.Equal(t, 2, provider.calls())
	assert.Contains(t, provider.requests[1].User, "tool_error")
	assert.Contains(t, provider.requests[1].User, "not available in stage channels")
	assert.Empty(t, result.Actions)

	stored, err := h.jobs.GetOwned(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", stored.Intake.RoleTitle)
}

func TestRunInvalidToolInputBecomesScratchpadError(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("update_job_field", map[string]any{"value": "no field id"}),
		finalStep("Which field should I update?"),
	}}
	h := newRunnerHarness(t, provider, 8)
	job := h.readyJob(t, "user-1")

	_, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "update it", StageWizard))
	require.NoError(t, err)

	require.Equal(t, 2, provider.calls())
	assert.Contains(t, provider.requests[1].User, "invalid input")
}

func TestRunMissingMessageAndUnknownStage(t *testing.T) {
	h := newRunnerHarness(t, &fakeProvider{}, 8)
	job := h.readyJob(t, "user-1")

	_, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "   ", StageWizard))
	assert.True(t, services.IsValidationError(err))

	_, err = h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "hello", "bogus-stage"))
	assert.True(t, services.IsValidationError(err))
	assert.Equal(t, 0, h.provider.calls())
}

func TestRunRefineStageSyncsRefinedFields(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		toolStep("update_job_field", map[string]any{
			"fieldId": models.FieldJobDescription,
			"value":   "Own the billing platform end to end.",
		}),
	}}
	h := newRunnerHarness(t, provider, 8)
	ctx := context.Background()
	job := h.readyJob(t, "user-1")

	refinement := models.RefinementDoc{
		JobID:         job.ID,
		RefinedJob:    job.Intake,
		SchemaVersion: models.SchemaVersion,
	}
	require.NoError(t, h.store.Save(ctx, models.CollectionRefinements, job.ID, refinement))

	_, err := h.runner.Run(ctx, job,
		copilotRequest("user-1", job.ID, "fix the description", StageRefine))
	require.NoError(t, err)

	// The intake edit is mirrored into the refinement after the loop.
	doc, err := docstore.GetTyped[models.RefinementDoc](ctx, h.store, models.CollectionRefinements, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Own the billing platform end to end.", doc.RefinedJob.JobDescription)

	stored, err := h.jobs.GetOwned(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Own the billing platform end to end.", stored.Intake.JobDescription)
}

func TestRunStripsMarkdownFromFinalReply(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		finalStep("**Done!** Your `posting` looks great."),
	}}
	h := newRunnerHarness(t, provider, 8)
	job := h.readyJob(t, "user-1")

	result, err := h.runner.Run(context.Background(), job,
		copilotRequest("user-1", job.ID, "review my posting", StageWizard))
	require.NoError(t, err)
	assert.Equal(t, "Done! Your posting looks great.", result.Message)
}

func TestStageWhitelists(t *testing.T) {
	wizard, ok := ResolveStage("")
	require.True(t, ok, "empty stage defaults to wizard")
	assert.Equal(t, StageWizard, wizard.Name)
	assert.True(t, wizard.Allows("apply_suggestion"))
	assert.False(t, wizard.Allows("update_asset"))

	assets, ok := ResolveStage(StageAssets)
	require.True(t, ok)
	assert.True(t, assets.Allows("update_asset"))
	assert.False(t, assets.Allows("refresh_channels"))

	_, ok = ResolveStage("bogus")
	assert.False(t, ok)
}
