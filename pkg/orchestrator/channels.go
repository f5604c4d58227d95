package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// runChannels recommends distribution channels for the job. The refinement
// document enriches the prompt when present but is not required.
func (o *Orchestrator) runChannels(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, err := loadDoc[models.ChannelDoc](ctx, o.store, models.CollectionChannelRecs, job.ID)
	if err != nil {
		return nil, err
	}
	if doc != nil && doc.LastFailure == nil && len(doc.Channels) > 0 && !req.Bool(CtxForceRefresh) {
		return &TaskResult{
			TaskType:  req.TaskType,
			Refreshed: false,
			Payload:   channelsPayload(doc),
		}, nil
	}

	refinement, err := loadDoc[models.RefinementDoc](ctx, o.store, models.CollectionRefinements, job.ID)
	if err != nil {
		return nil, err
	}

	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskChannels,
		Vars: map[string]any{
			"JobSnapshot":    JobSnapshot(job),
			"RefinedJob":     RefinementSnapshot(refinement),
			"CompanyContext": o.companyContext(ctx, job),
		},
	})
	if err != nil {
		return nil, err
	}

	if doc == nil {
		doc = &models.ChannelDoc{JobID: job.ID}
	}
	doc.SchemaVersion = models.SchemaVersion
	doc.UpdatedAt = time.Now().UTC()

	if outcome.Failure != nil {
		doc.LastFailure = outcome.Failure
		if err := o.store.Save(ctx, models.CollectionChannelRecs, job.ID, doc); err != nil {
			outcome.Release(ctx)
			return nil, fmt.Errorf("save channel failure: %w", err)
		}
		outcome.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}

	doc.Channels = parseChannels(outcome.Payload)
	doc.Provider = outcome.Vendor
	doc.Model = outcome.Model
	doc.LastFailure = nil
	if err := o.store.Save(ctx, models.CollectionChannelRecs, job.ID, doc); err != nil {
		outcome.Release(ctx)
		return nil, fmt.Errorf("save channels: %w", err)
	}
	outcome.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   channelsPayload(doc),
		Credits:   outcome.Credits,
	}, nil
}

func parseChannels(payload map[string]any) []models.ChannelRecommendation {
	items, _ := payload["channels"].([]any)
	out := make([]models.ChannelRecommendation, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		channel, _ := m["channel"].(string)
		if channel == "" {
			continue
		}
		reason, _ := m["reason"].(string)
		cpa, _ := m["expectedCpa"].(float64)
		out = append(out, models.ChannelRecommendation{
			Channel:     channel,
			Reason:      reason,
			ExpectedCpa: cpa,
		})
	}
	return out
}

func channelsPayload(doc *models.ChannelDoc) map[string]any {
	channels := make([]any, 0, len(doc.Channels))
	for _, c := range doc.Channels {
		channels = append(channels, map[string]any{
			"channel":     c.Channel,
			"reason":      c.Reason,
			"expectedCpa": c.ExpectedCpa,
		})
	}
	return map[string]any{"channels": channels}
}
