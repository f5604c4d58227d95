package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/hirepilot/hirepilot/pkg/llm"
)

// SubmitRender starts a Veo generation operation for one segment. Extension
// segments continue from the previous segment's output video.
func (a *Adapter) SubmitRender(ctx context.Context, req llm.RenderRequest) (string, error) {
	cfg := &genai.GenerateVideosConfig{}
	if req.Seconds > 0 {
		cfg.DurationSeconds = genai.Ptr(int32(req.Seconds))
	}

	source := &genai.GenerateVideosSource{Prompt: req.Prompt}
	if req.ExtendFromURL != "" {
		source.Video = &genai.Video{URI: req.ExtendFromURL}
	}

	a.record(ctx, llm.TrafficRecord{
		TaskType:       "video_generation",
		Vendor:         vendor,
		Model:          req.Model,
		RequestPreview: llm.Preview(req.Prompt),
		At:             time.Now().UTC(),
	})

	op, err := a.client.Models.GenerateVideosFromSource(ctx, req.Model, source, cfg)
	if err != nil {
		return "", fmt.Errorf("generate videos: %w", err)
	}
	return op.Name, nil
}

// PollRender fetches the state of a render operation by name.
func (a *Adapter) PollRender(ctx context.Context, operationID string) (*llm.RenderStatus, error) {
	op := &genai.GenerateVideosOperation{Name: operationID}
	op, err := a.client.Operations.GetVideosOperation(ctx, op, nil)
	if err != nil {
		return nil, fmt.Errorf("get videos operation %s: %w", operationID, err)
	}

	if !op.Done {
		return &llm.RenderStatus{State: llm.RenderStatePredicting}, nil
	}
	if op.Error != nil {
		return &llm.RenderStatus{
			State:  llm.RenderStateFailed,
			Reason: fmt.Sprintf("%v", op.Error),
		}, nil
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return &llm.RenderStatus{State: llm.RenderStateFailed, Reason: "no video in response"}, nil
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil || video.URI == "" {
		return &llm.RenderStatus{State: llm.RenderStateFetching}, nil
	}
	return &llm.RenderStatus{State: llm.RenderStateDone, VideoURL: video.URI}, nil
}
