package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// AgentRunner executes the copilot loop for an authorized job.
type AgentRunner interface {
	Run(ctx context.Context, job *models.Job, req *TaskRequest) (*TaskResult, error)
}

// VideoRunner executes the video orchestrator tasks.
type VideoRunner interface {
	Run(ctx context.Context, req *TaskRequest) (*TaskResult, error)
}

// Orchestrator routes task requests to their handlers.
type Orchestrator struct {
	engine    *Engine
	store     docstore.Store
	jobs      *services.JobService
	chats     *services.ChatService
	companies *company.Loader

	agent AgentRunner
	video VideoRunner
}

// New wires the orchestrator. The agent and video runners are attached after
// construction because they call back into the engine.
func New(engine *Engine, store docstore.Store, jobs *services.JobService, chats *services.ChatService, companies *company.Loader) *Orchestrator {
	return &Orchestrator{
		engine:    engine,
		store:     store,
		jobs:      jobs,
		chats:     chats,
		companies: companies,
	}
}

// Engine exposes the core invocation engine to the runners.
func (o *Orchestrator) Engine() *Engine { return o.engine }

// Jobs exposes the job service to the runners.
func (o *Orchestrator) Jobs() *services.JobService { return o.jobs }

// Chats exposes the chat service to the runners.
func (o *Orchestrator) Chats() *services.ChatService { return o.chats }

// Companies exposes the company context loader.
func (o *Orchestrator) Companies() *company.Loader { return o.companies }

// SetAgentRunner attaches the copilot loop.
func (o *Orchestrator) SetAgentRunner(r AgentRunner) { o.agent = r }

// SetVideoRunner attaches the video pipeline.
func (o *Orchestrator) SetVideoRunner(r VideoRunner) { o.video = r }

// Run dispatches one task request.
func (o *Orchestrator) Run(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	if req.UserID == "" {
		return nil, services.ErrUnauthorized
	}
	switch req.TaskType {
	case models.TaskSuggest:
		return o.runSuggest(ctx, req)
	case models.TaskRefine:
		return o.runRefine(ctx, req)
	case models.TaskChannels:
		return o.runChannels(ctx, req)
	case models.TaskCopilotAgent:
		return o.runCopilot(ctx, req)
	case models.TaskCompanyIntel:
		return o.runCompanyIntel(ctx, req)
	case models.TaskGenerateCampaignAssets:
		return o.runCampaignAssets(ctx, req)
	case models.TaskAssetAdapt:
		return o.runAssetAdapt(ctx, req)
	case models.TaskHeroImage:
		return o.runHeroImage(ctx, req)
	case models.TaskImageGeneration:
		return o.runImageGeneration(ctx, req)
	case models.TaskVideoCreateManifest, models.TaskVideoRegenerate,
		models.TaskVideoCaptionUpdate, models.TaskVideoRender:
		if o.video == nil {
			return nil, fmt.Errorf("video pipeline not configured")
		}
		return o.video.Run(ctx, req)
	}
	if coreTaskTypes[req.TaskType] {
		return o.runCoreTask(ctx, req)
	}
	return nil, services.NewValidationError("taskType", fmt.Sprintf("unknown task type %q", req.TaskType))
}

// ownedJob loads the job named in the request and enforces ownership.
func (o *Orchestrator) ownedJob(ctx context.Context, req *TaskRequest) (*models.Job, error) {
	jobID := req.Str(CtxJobID)
	if jobID == "" {
		return nil, services.NewValidationError(CtxJobID, "missing job id")
	}
	return o.jobs.GetOwned(ctx, req.UserID, jobID)
}

func (o *Orchestrator) runCopilot(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	if o.agent == nil {
		return nil, fmt.Errorf("copilot agent not configured")
	}
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.agent.Run(ctx, job, req)
}

// loadDoc fetches a task document, mapping a missing document to nil.
func loadDoc[T any](ctx context.Context, store docstore.Store, collection, id string) (*T, error) {
	doc, err := docstore.GetTyped[T](ctx, store, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// companyContext loads the cached research for the job's employer. A missing
// cache is not an error; the prompt just goes out ungrounded.
func (o *Orchestrator) companyContext(ctx context.Context, job *models.Job) string {
	doc, err := o.companies.Cached(ctx, job.Intake.CompanyName)
	if err != nil || doc == nil {
		return ""
	}
	return company.FormatForPrompt(doc)
}
