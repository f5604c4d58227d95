package video

import (
	"context"
	"fmt"
	"time"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// Pipeline drives video items through their lifecycle. It implements
// orchestrator.VideoRunner.
type Pipeline struct {
	engine *orchestrator.Engine
	store  docstore.Store
	jobs   *services.JobService
	videos *services.VideoService
}

// NewPipeline wires the video pipeline.
func NewPipeline(engine *orchestrator.Engine, store docstore.Store, jobs *services.JobService, videos *services.VideoService) *Pipeline {
	return &Pipeline{engine: engine, store: store, jobs: jobs, videos: videos}
}

// Videos exposes the video service.
func (p *Pipeline) Videos() *services.VideoService { return p.videos }

// Run dispatches one video orchestrator task.
func (p *Pipeline) Run(ctx context.Context, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	switch req.TaskType {
	case models.TaskVideoCreateManifest:
		return p.runCreateManifest(ctx, req)
	case models.TaskVideoRegenerate:
		return p.runRegenerate(ctx, req)
	case models.TaskVideoCaptionUpdate:
		return p.runCaptionUpdate(ctx, req)
	case models.TaskVideoRender:
		return p.runTriggerRender(ctx, req)
	}
	return nil, services.NewValidationError("taskType", fmt.Sprintf("unknown video task %q", req.TaskType))
}

// runCreateManifest creates a video item for a job and channel and builds its
// first manifest.
func (p *Pipeline) runCreateManifest(ctx context.Context, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	jobID := req.Str(orchestrator.CtxJobID)
	channelID := req.Str(orchestrator.CtxChannelID)
	if jobID == "" || channelID == "" {
		return nil, services.NewValidationError(orchestrator.CtxJobID, "missing job id or channel id")
	}
	job, err := p.jobs.GetOwned(ctx, req.UserID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.StateMachine.RequiredComplete {
		return nil, services.ErrRequirementsIncomplete
	}

	item, err := p.videos.Create(ctx, req.UserID, jobID, channelID)
	if err != nil {
		return nil, err
	}
	return p.buildAndAttach(ctx, req, job, item)
}

// runRegenerate rebuilds the manifest of an existing item with the current
// job snapshot. Previously rendered items return to planned.
func (p *Pipeline) runRegenerate(ctx context.Context, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	item, err := p.ownedVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	job, err := p.jobs.GetOwned(ctx, req.UserID, item.JobID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.VideoStatusPlanned {
		item, err = p.videos.Transition(ctx, item.ID, models.VideoStatusPlanned, func(v *models.VideoItem) {
			v.RenderTask = nil
			v.GenerationMetrics = nil
		})
		if err != nil {
			return nil, err
		}
	}
	return p.buildAndAttach(ctx, req, job, item)
}

func (p *Pipeline) buildAndAttach(ctx context.Context, req *orchestrator.TaskRequest, job *models.Job, item *models.VideoItem) (*orchestrator.TaskResult, error) {
	manifest, charges, failure, err := p.BuildManifest(ctx, req.UserID, job, item.ChannelID)
	if err != nil {
		charges.Release(ctx)
		return nil, err
	}
	if failure != nil {
		if failure.OccurredAt.IsZero() {
			failure.OccurredAt = time.Now().UTC()
		}
		charges.Settle(ctx)
		return &orchestrator.TaskResult{
			TaskType: req.TaskType,
			Payload:  map[string]any{"videoId": item.ID},
			Failure:  failure,
			Credits:  charges.Credits,
		}, nil
	}

	item.ActiveManifest = manifest
	item.Status = models.VideoStatusPlanned
	if err := p.videos.Save(ctx, item); err != nil {
		charges.Release(ctx)
		return nil, err
	}
	charges.Settle(ctx)
	return &orchestrator.TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload: map[string]any{
			"videoId":  item.ID,
			"status":   string(item.Status),
			"manifest": manifest,
		},
		Credits: charges.Credits,
	}, nil
}

// runCaptionUpdate edits the caption atomically without re-rendering.
func (p *Pipeline) runCaptionUpdate(ctx context.Context, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	item, err := p.ownedVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	captionInput := req.Map("caption")
	if captionInput == nil {
		return nil, services.NewValidationError("caption", "missing caption")
	}

	err = docstore.UpdateTyped(ctx, p.store, models.CollectionVideos, item.ID,
		func(v *models.VideoItem, exists bool) error {
			if !exists || v.ActiveManifest == nil {
				return services.ErrNotFound
			}
			if text, ok := captionInput["text"].(string); ok {
				v.ActiveManifest.Caption.Text = text
			}
			if tags, ok := captionInput["hashtags"].([]any); ok {
				v.ActiveManifest.Caption.Hashtags = nil
				for _, t := range tags {
					if s, ok := t.(string); ok && s != "" {
						v.ActiveManifest.Caption.Hashtags = append(v.ActiveManifest.Caption.Hashtags, s)
					}
				}
			}
			v.UpdatedAt = time.Now().UTC()
			return nil
		})
	if err != nil {
		return nil, err
	}

	updated, err := p.videos.Get(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return &orchestrator.TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload: map[string]any{
			"videoId": updated.ID,
			"caption": updated.ActiveManifest.Caption,
		},
	}, nil
}

func (p *Pipeline) ownedVideo(ctx context.Context, req *orchestrator.TaskRequest) (*models.VideoItem, error) {
	videoID := req.Str(orchestrator.CtxVideoID)
	if videoID == "" {
		return nil, services.NewValidationError(orchestrator.CtxVideoID, "missing video id")
	}
	return p.videos.GetOwned(ctx, req.UserID, videoID)
}
