package orchestrator

import (
	"context"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// coreTaskTypes are the client-callable tasks that map one-to-one onto a
// provider call and have no bespoke persistence beyond the usage log.
var coreTaskTypes = map[string]bool{
	models.TaskAssetMaster:     true,
	models.TaskAssetChannel:    true,
	models.TaskVideoStoryboard: true,
	models.TaskVideoCaption:    true,
	models.TaskVideoCompliance: true,
	models.TaskImagePrompt:     true,
	models.TaskImageCaption:    true,
}

// runCoreTask executes one core task with the standard enrichment vars and
// returns the raw validated payload.
func (o *Orchestrator) runCoreTask(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}

	refinement, err := loadDoc[models.RefinementDoc](ctx, o.store, models.CollectionRefinements, job.ID)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"JobSnapshot":    JobSnapshot(job),
		"RefinedJob":     RefinementSnapshot(refinement),
		"CompanyContext": o.companyContext(ctx, job),
		"Channel":        req.Str(CtxChannelID),
	}
	if req.TaskType == models.TaskAssetChannel {
		master, err := loadDoc[models.AssetRecord](ctx, o.store, models.CollectionAssets,
			models.AssetKey(job.ID, masterFormatID, masterChannelID))
		if err != nil {
			return nil, err
		}
		if master == nil {
			return nil, services.ErrNotFound
		}
		channels, err := loadDoc[models.ChannelDoc](ctx, o.store, models.CollectionChannelRecs, job.ID)
		if err != nil {
			return nil, err
		}
		vars["MasterAsset"] = assetText(master)
		vars["Channels"] = channelListText(channels)
	}
	if req.TaskType == models.TaskVideoCompliance {
		vars["Storyboard"] = req.Str("storyboard")
	}

	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: req.TaskType,
		Vars:     vars,
	})
	if err != nil {
		return nil, err
	}
	// Core tasks persist nothing beyond the usage log; settle right away.
	outcome.Settle(ctx)
	if outcome.Failure != nil {
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}
	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   outcome.Payload,
		Credits:   outcome.Credits,
	}, nil
}

// runImageGeneration exposes raw image generation as a core task.
func (o *Orchestrator) runImageGeneration(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	promptText := req.Str("prompt")
	if promptText == "" {
		return nil, services.NewValidationError("prompt", "missing image prompt")
	}
	outcome, err := o.engine.InvokeImage(ctx, req.UserID, req.Str(CtxJobID), promptText, 1)
	if err != nil {
		return nil, err
	}
	outcome.Settle(ctx)
	if outcome.Failure != nil {
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}
	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   map[string]any{"images": outcome.URLs},
		Credits:   outcome.Credits,
	}, nil
}
