package video

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// usdPerCredit converts committed render credits into the cost estimate.
const usdPerCredit = 0.002

// runTriggerRender starts or resumes rendering. Idempotent: an item already
// generating only refreshes its polling state, it is never re-submitted.
func (p *Pipeline) runTriggerRender(ctx context.Context, req *orchestrator.TaskRequest) (*orchestrator.TaskResult, error) {
	item, err := p.ownedVideo(ctx, req)
	if err != nil {
		return nil, err
	}

	switch item.Status {
	case models.VideoStatusGenerating, models.VideoStatusExtending:
		if err := p.PollOnce(ctx, item.ID); err != nil {
			return nil, err
		}
	case models.VideoStatusPlanned:
		item, err = p.startRender(ctx, item)
		if err != nil {
			return nil, err
		}
	case models.VideoStatusFailed:
		item, err = p.retryRender(ctx, item)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: render from %s", services.ErrInvalidTransition, item.Status)
	}

	item, err = p.videos.Get(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return &orchestrator.TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   renderStatusPayload(item),
	}, nil
}

// startRender plans segments from the active manifest and submits segment 0.
func (p *Pipeline) startRender(ctx context.Context, item *models.VideoItem) (*models.VideoItem, error) {
	if item.ActiveManifest == nil || len(item.ActiveManifest.Storyboard) == 0 {
		return nil, services.NewValidationError("manifest", "no manifest to render")
	}
	plan := item.ActiveManifest.RenderPlan
	if len(plan.Segments) == 0 {
		plan = BuildRenderPlan(item.ActiveManifest.Storyboard, p.engine.Config().MaxRenderSeconds)
	}
	assigned := AssignShots(item.ActiveManifest.Storyboard, len(plan.Segments))

	segments := make([]models.SegmentTask, len(plan.Segments))
	var prior []models.Shot
	for i := range plan.Segments {
		segments[i] = models.SegmentTask{
			Index:   i,
			Status:  models.SegmentStatusPending,
			Seconds: plan.Segments[i].Seconds,
			Prompt:  SegmentPrompt(prior, assigned[i]),
		}
		prior = append(prior, assigned[i]...)
	}

	item, err := p.videos.Transition(ctx, item.ID, models.VideoStatusGenerating, func(v *models.VideoItem) {
		v.ActiveManifest.RenderPlan = plan
		v.RenderTask = &models.RenderTask{Segments: segments, NextSegmentIndex: 0}
		v.GenerationMetrics = nil
	})
	if err != nil {
		return nil, err
	}
	return p.submitSegment(ctx, item, 0)
}

// retryRender restarts from the first failed segment with the same plan.
func (p *Pipeline) retryRender(ctx context.Context, item *models.VideoItem) (*models.VideoItem, error) {
	if item.RenderTask == nil {
		return nil, services.NewValidationError("renderTask", "nothing to retry")
	}
	first := 0
	if item.RenderTask.FailedSegment != nil {
		first = *item.RenderTask.FailedSegment
	}
	item, err := p.videos.Transition(ctx, item.ID, models.VideoStatusGenerating, func(v *models.VideoItem) {
		for i := first; i < len(v.RenderTask.Segments); i++ {
			seg := &v.RenderTask.Segments[i]
			seg.Status = models.SegmentStatusPending
			seg.OperationID = ""
			seg.VideoURL = ""
			seg.ErrorReason = ""
			seg.ReservationID = ""
		}
		v.RenderTask.NextSegmentIndex = first
		v.RenderTask.FailureReason = ""
		v.RenderTask.FailedSegment = nil
	})
	if err != nil {
		return nil, err
	}
	return p.submitSegment(ctx, item, first)
}

// submitSegment reserves render credits and submits one segment. Segments
// after the first extend the previous segment's output.
func (p *Pipeline) submitSegment(ctx context.Context, item *models.VideoItem, idx int) (*models.VideoItem, error) {
	selector := p.engine.Config().VideoProvider
	provider, model, err := p.engine.Providers().ResolveVideo(selector)
	if err != nil {
		return nil, err
	}
	seg := item.RenderTask.Segments[idx]

	estCredits := p.engine.Ledger().Rates().VideoCredits(selector, seg.Seconds)
	reservationID, err := p.engine.Ledger().Reserve(ctx, item.UserID, estCredits)
	if err != nil {
		return nil, err
	}

	extendFrom := ""
	if idx > 0 {
		extendFrom = item.RenderTask.Segments[idx-1].VideoURL
	}
	callCtx, cancel := context.WithTimeout(ctx, p.engine.Config().VideoSegmentTimeout)
	defer cancel()
	operationID, err := provider.SubmitRender(callCtx, llm.RenderRequest{
		Model:         model,
		Prompt:        seg.Prompt,
		Seconds:       seg.Seconds,
		ExtendFromURL: extendFrom,
	})
	if err != nil {
		p.refund(ctx, item.UserID, reservationID)
		return p.failSegment(ctx, item.ID, idx, "submit failed: "+err.Error())
	}

	record := func(v *models.VideoItem) {
		seg := &v.RenderTask.Segments[idx]
		seg.Status = models.SegmentStatusSubmitted
		seg.OperationID = operationID
		seg.ReservationID = reservationID
		v.RenderTask.NextSegmentIndex = idx
	}
	if target := statusForSegment(idx); item.Status != target {
		return p.videos.Transition(ctx, item.ID, target, record)
	}
	return p.videos.Mutate(ctx, item.ID, record)
}

func statusForSegment(idx int) models.VideoStatus {
	if idx == 0 {
		return models.VideoStatusGenerating
	}
	return models.VideoStatusExtending
}

// PollOnce advances the active segment of one rendering item by a single
// provider poll. The controller is the only writer while rendering.
func (p *Pipeline) PollOnce(ctx context.Context, videoID string) error {
	item, err := p.videos.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if item.Status != models.VideoStatusGenerating && item.Status != models.VideoStatusExtending {
		return nil
	}
	task := item.RenderTask
	if task == nil || task.NextSegmentIndex >= len(task.Segments) {
		return nil
	}
	idx := task.NextSegmentIndex
	seg := task.Segments[idx]
	if seg.OperationID == "" {
		_, err := p.submitSegment(ctx, item, idx)
		return err
	}

	selector := p.engine.Config().VideoProvider
	provider, _, err := p.engine.Providers().ResolveVideo(selector)
	if err != nil {
		return err
	}
	status, err := provider.PollRender(ctx, seg.OperationID)
	if err != nil {
		slog.Warn("render poll failed", "video_id", videoID, "segment", idx, "error", err)
		return nil
	}

	switch status.State {
	case llm.RenderStatePredicting, llm.RenderStateFetching:
		_, err := p.videos.Mutate(ctx, item.ID, func(v *models.VideoItem) {
			v.RenderTask.Segments[idx].Status = models.SegmentStatusPredicting
		})
		return err
	case llm.RenderStateDone:
		return p.completeSegment(ctx, item, idx, status.VideoURL)
	case llm.RenderStateFailed:
		p.refund(ctx, item.UserID, seg.ReservationID)
		_, err := p.failSegment(ctx, item.ID, idx, status.Reason)
		return err
	}
	return nil
}

// completeSegment records the segment result and settles its credits, then
// either submits the next segment or stitches the final result. The segment
// is persisted before the commit; a write failure leaves the hold open.
func (p *Pipeline) completeSegment(ctx context.Context, item *models.VideoItem, idx int, videoURL string) error {
	selector := p.engine.Config().VideoProvider
	seg := item.RenderTask.Segments[idx]

	item, err := p.videos.Mutate(ctx, item.ID, func(v *models.VideoItem) {
		s := &v.RenderTask.Segments[idx]
		s.Status = models.SegmentStatusDone
		s.VideoURL = videoURL
		s.ReservationID = ""
		v.RenderTask.NextSegmentIndex = idx + 1
	})
	if err != nil {
		return err
	}

	credits := p.engine.Ledger().Rates().VideoCredits(selector, seg.Seconds)
	if err := p.engine.Ledger().Commit(ctx, item.UserID, seg.ReservationID, credits); err != nil {
		slog.Error("render credit commit failed", "video_id", item.ID, "segment", idx, "error", err)
	}
	vendor, model, _ := llm.SplitProviderString(selector)
	p.engine.Ledger().Append(ctx, models.UsageEntry{
		UserID:       item.UserID,
		JobID:        item.JobID,
		TaskType:     models.TaskVideoGeneration,
		Provider:     vendor,
		Model:        model,
		VideoSeconds: seg.Seconds,
		CreditsUsed:  credits,
		Status:       "success",
	})

	if idx+1 < len(item.RenderTask.Segments) {
		_, err := p.submitSegment(ctx, item, idx+1)
		return err
	}
	return p.stitch(ctx, item)
}

// stitch finalizes the render. Extension outputs are cumulative, so the last
// segment's URL is the full video.
func (p *Pipeline) stitch(ctx context.Context, item *models.VideoItem) error {
	selector := p.engine.Config().VideoProvider
	vendor, _, _ := llm.SplitProviderString(selector)

	var seconds float64
	var credits int64
	for _, seg := range item.RenderTask.Segments {
		if seg.Status == models.SegmentStatusDone {
			seconds += seg.Seconds
			credits += p.engine.Ledger().Rates().VideoCredits(selector, seg.Seconds)
		}
	}
	finalURL := item.RenderTask.Segments[len(item.RenderTask.Segments)-1].VideoURL

	_, err := p.videos.Transition(ctx, item.ID, models.VideoStatusReady, func(v *models.VideoItem) {
		v.RenderTask.Result = &models.RenderResult{VideoURL: finalURL}
		v.GenerationMetrics = &models.GenerationMetrics{
			SecondsGenerated: seconds,
			CostEstimateUsd:  float64(credits) * usdPerCredit,
			SynthIDWatermark: vendor == llm.SearchGroundedVendor,
		}
	})
	return err
}

// failSegment marks the segment and the item failed, keeping completed
// segments for a deterministic retry.
func (p *Pipeline) failSegment(ctx context.Context, videoID string, idx int, reason string) (*models.VideoItem, error) {
	return p.videos.Transition(ctx, videoID, models.VideoStatusFailed, func(v *models.VideoItem) {
		seg := &v.RenderTask.Segments[idx]
		seg.Status = models.SegmentStatusFailed
		seg.ErrorReason = reason
		seg.ReservationID = ""
		failed := idx
		v.RenderTask.FailedSegment = &failed
		v.RenderTask.FailureReason = reason
	})
}

func (p *Pipeline) refund(ctx context.Context, userID, reservationID string) {
	if reservationID == "" {
		return
	}
	if err := p.engine.Ledger().Refund(ctx, userID, reservationID); err != nil {
		slog.Error("render credit refund failed", "user_id", userID, "error", err)
	}
}

// ActiveVideoIDs lists items currently rendering; the poll workers fan out
// over this set.
func (p *Pipeline) ActiveVideoIDs(ctx context.Context) ([]string, error) {
	raws, err := p.store.List(ctx, models.CollectionVideos)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, raw := range raws {
		var probe struct {
			ID     string             `json:"id"`
			Status models.VideoStatus `json:"status"`
		}
		if err := json.Unmarshal(raw.Data, &probe); err != nil {
			continue
		}
		if probe.Status == models.VideoStatusGenerating || probe.Status == models.VideoStatusExtending {
			out = append(out, probe.ID)
		}
	}
	return out, nil
}

func renderStatusPayload(item *models.VideoItem) map[string]any {
	payload := map[string]any{
		"videoId": item.ID,
		"status":  string(item.Status),
	}
	if item.RenderTask != nil {
		segments := make([]any, 0, len(item.RenderTask.Segments))
		for _, seg := range item.RenderTask.Segments {
			segments = append(segments, map[string]any{
				"index":   seg.Index,
				"status":  string(seg.Status),
				"seconds": seg.Seconds,
			})
		}
		payload["segments"] = segments
		if item.RenderTask.Result != nil {
			payload["videoUrl"] = item.RenderTask.Result.VideoURL
		}
		if item.RenderTask.FailureReason != "" {
			payload["failureReason"] = item.RenderTask.FailureReason
			payload["failedSegment"] = item.RenderTask.FailedSegment
		}
	}
	if item.GenerationMetrics != nil {
		payload["secondsGenerated"] = item.GenerationMetrics.SecondsGenerated
		payload["costEstimateUsd"] = item.GenerationMetrics.CostEstimateUsd
	}
	return payload
}
