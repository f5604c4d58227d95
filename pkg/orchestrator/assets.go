package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// Master creative coordinates. The master asset is channel-agnostic and
// adapted per channel afterwards.
const (
	masterChannelID = "master"
	masterFormatID  = "master"
	heroFormatID    = "hero_image"
)

// runCampaignAssets is the asset fan-out: master creative, then one adapted
// creative per recommended channel. Each step is a separate core invocation
// with its own credit settlement; a master failure aborts the fan-out.
func (o *Orchestrator) runCampaignAssets(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if !job.StateMachine.RequiredComplete {
		return nil, services.ErrRequirementsIncomplete
	}

	refinement, err := loadDoc[models.RefinementDoc](ctx, o.store, models.CollectionRefinements, job.ID)
	if err != nil {
		return nil, err
	}

	var credits int64
	master, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskAssetMaster,
		Vars: map[string]any{
			"JobSnapshot": JobSnapshot(job),
			"RefinedJob":  RefinementSnapshot(refinement),
		},
	})
	if err != nil {
		return nil, err
	}
	credits += master.Credits
	if master.Failure != nil {
		master.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: master.Failure, Credits: credits}, nil
	}

	masterRecord := o.saveAssetCopy(ctx, job, masterChannelID, masterFormatID, master.Payload, master.Vendor, master.Model)
	if masterRecord == nil {
		master.Release(ctx)
		return nil, fmt.Errorf("persist master asset for job %s", job.ID)
	}
	master.Settle(ctx)

	// Channel recommendations drive the fan-out; generate them when absent.
	channelDoc, err := loadDoc[models.ChannelDoc](ctx, o.store, models.CollectionChannelRecs, job.ID)
	if err != nil {
		return nil, err
	}
	if channelDoc == nil || len(channelDoc.Channels) == 0 || channelDoc.LastFailure != nil {
		channelResult, err := o.runChannels(ctx, req)
		if err != nil {
			return nil, err
		}
		credits += channelResult.Credits
		if channelResult.Failure != nil {
			return &TaskResult{TaskType: req.TaskType, Failure: channelResult.Failure, Credits: credits}, nil
		}
		channelDoc, err = loadDoc[models.ChannelDoc](ctx, o.store, models.CollectionChannelRecs, job.ID)
		if err != nil {
			return nil, err
		}
	}

	batch, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskAssetChannel,
		Vars: map[string]any{
			"MasterAsset": assetText(masterRecord),
			"Channels":    channelListText(channelDoc),
		},
	})
	if err != nil {
		return nil, err
	}
	credits += batch.Credits
	if batch.Failure != nil {
		batch.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: batch.Failure, Credits: credits}, nil
	}

	assets := []any{assetPayload(masterRecord)}
	items, _ := batch.Payload["assets"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		channelID, _ := m["channelId"].(string)
		formatID, _ := m["formatId"].(string)
		if channelID == "" || formatID == "" {
			continue
		}
		record := o.saveAssetCopy(ctx, job, channelID, formatID, m, batch.Vendor, batch.Model)
		if record != nil {
			assets = append(assets, assetPayload(record))
		}
	}
	batch.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   map[string]any{"assets": assets},
		Credits:   credits,
	}, nil
}

// runAssetAdapt rewrites one existing creative for a new channel or format.
func (o *Orchestrator) runAssetAdapt(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	targetChannel := req.Str(CtxChannelID)
	targetFormat := req.Str(CtxFormatID)
	if targetChannel == "" || targetFormat == "" {
		return nil, services.NewValidationError(CtxChannelID, "missing target channel or format")
	}
	sourceChannel := req.Str(CtxSourceChannelID)
	sourceFormat := req.Str(CtxSourceFormatID)
	if sourceChannel == "" {
		sourceChannel = masterChannelID
	}
	if sourceFormat == "" {
		sourceFormat = masterFormatID
	}

	source, err := loadDoc[models.AssetRecord](ctx, o.store, models.CollectionAssets,
		models.AssetKey(job.ID, sourceFormat, sourceChannel))
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, services.ErrNotFound
	}

	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskAssetAdapt,
		Vars: map[string]any{
			"SourceAsset": assetText(source),
			"ChannelId":   targetChannel,
			"FormatId":    targetFormat,
		},
	})
	if err != nil {
		return nil, err
	}
	if outcome.Failure != nil {
		outcome.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}

	record := o.saveAssetCopy(ctx, job, targetChannel, targetFormat, outcome.Payload, outcome.Vendor, outcome.Model)
	if record == nil {
		outcome.Release(ctx)
		return nil, fmt.Errorf("persist adapted asset for job %s", job.ID)
	}
	outcome.Settle(ctx)
	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   assetPayload(record),
		Credits:   outcome.Credits,
	}, nil
}

// runHeroImage chains prompt generation, image generation and captioning into
// one hero asset. Cached like the other task documents.
func (o *Orchestrator) runHeroImage(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if !job.StateMachine.RequiredComplete {
		return nil, services.ErrRequirementsIncomplete
	}

	key := models.AssetKey(job.ID, heroFormatID, masterChannelID)
	existing, err := loadDoc[models.AssetRecord](ctx, o.store, models.CollectionAssets, key)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ImageURL != "" && !req.Bool(CtxForceRefresh) {
		return &TaskResult{
			TaskType:  req.TaskType,
			Refreshed: false,
			Payload:   assetPayload(existing),
		}, nil
	}

	var credits int64
	promptOut, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskImagePrompt,
		Vars:     map[string]any{"JobSnapshot": JobSnapshot(job)},
	})
	if err != nil {
		return nil, err
	}
	credits += promptOut.Credits
	if promptOut.Failure != nil {
		promptOut.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: promptOut.Failure, Credits: credits}, nil
	}
	imagePrompt, _ := promptOut.Payload["prompt"].(string)

	image, err := o.engine.InvokeImage(ctx, req.UserID, job.ID, imagePrompt, 1)
	if err != nil {
		promptOut.Release(ctx)
		return nil, err
	}
	credits += image.Credits
	if image.Failure != nil {
		promptOut.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: image.Failure, Credits: credits}, nil
	}
	if len(image.URLs) == 0 {
		promptOut.Settle(ctx)
		image.Settle(ctx)
		failure := failureNow(ReasonProviderError, "image provider returned no images", "")
		return &TaskResult{TaskType: req.TaskType, Failure: failure, Credits: credits}, nil
	}

	captionOut, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskImageCaption,
		Vars:     map[string]any{"JobSnapshot": JobSnapshot(job)},
	})
	if err != nil {
		promptOut.Release(ctx)
		image.Release(ctx)
		return nil, err
	}
	credits += captionOut.Credits
	caption := ""
	if captionOut.Failure == nil {
		caption, _ = captionOut.Payload["caption"].(string)
	}

	now := time.Now().UTC()
	record := &models.AssetRecord{
		ID:            key,
		JobID:         job.ID,
		ChannelID:     masterChannelID,
		FormatID:      heroFormatID,
		ImageURL:      image.URLs[0],
		Caption:       caption,
		Provider:      image.Vendor,
		Model:         image.Model,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
	}
	if err := o.store.Save(ctx, models.CollectionAssets, key, record); err != nil {
		promptOut.Release(ctx)
		image.Release(ctx)
		captionOut.Release(ctx)
		return nil, fmt.Errorf("save hero asset: %w", err)
	}
	// The whole chain settles only once the hero record is saved.
	promptOut.Settle(ctx)
	image.Settle(ctx)
	captionOut.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   assetPayload(record),
		Credits:   credits,
	}, nil
}

// saveAssetCopy persists one copy creative; returns nil when the payload has
// no headline and no body.
func (o *Orchestrator) saveAssetCopy(ctx context.Context, job *models.Job, channelID, formatID string, payload map[string]any, vendor, model string) *models.AssetRecord {
	headline, _ := payload["headline"].(string)
	body, _ := payload["body"].(string)
	cta, _ := payload["callToAction"].(string)
	if headline == "" && body == "" {
		return nil
	}
	key := models.AssetKey(job.ID, formatID, channelID)
	now := time.Now().UTC()
	record := &models.AssetRecord{
		ID:            key,
		JobID:         job.ID,
		ChannelID:     channelID,
		FormatID:      formatID,
		Headline:      headline,
		Body:          body,
		CallToAction:  cta,
		Provider:      vendor,
		Model:         model,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if prev, err := loadDoc[models.AssetRecord](ctx, o.store, models.CollectionAssets, key); err == nil && prev != nil {
		record.CreatedAt = prev.CreatedAt
	}
	if err := o.store.Save(ctx, models.CollectionAssets, key, record); err != nil {
		return nil
	}
	return record
}

func assetText(a *models.AssetRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "headline: %s\n", a.Headline)
	fmt.Fprintf(&b, "body: %s\n", a.Body)
	if a.CallToAction != "" {
		fmt.Fprintf(&b, "callToAction: %s\n", a.CallToAction)
	}
	return b.String()
}

func channelListText(doc *models.ChannelDoc) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range doc.Channels {
		fmt.Fprintf(&b, "- channelId: %s, formatId: feed_post (%s)\n", c.Channel, c.Reason)
	}
	return b.String()
}

func assetPayload(a *models.AssetRecord) map[string]any {
	out := map[string]any{
		"assetId":   a.ID,
		"jobId":     a.JobID,
		"channelId": a.ChannelID,
		"formatId":  a.FormatID,
	}
	if a.Headline != "" {
		out["headline"] = a.Headline
	}
	if a.Body != "" {
		out["body"] = a.Body
	}
	if a.CallToAction != "" {
		out["callToAction"] = a.CallToAction
	}
	if a.ImageURL != "" {
		out["imageUrl"] = a.ImageURL
	}
	if a.Caption != "" {
		out["caption"] = a.Caption
	}
	return out
}
