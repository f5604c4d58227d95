package orchestrator

import (
	"context"
	"log/slog"

	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// ImageOutcome is the result of an image generation call.
type ImageOutcome struct {
	URLs     []string
	Selector string
	Vendor   string
	Model    string
	Credits  int64
	Failure  *models.Failure

	settle  func(context.Context)
	release func(context.Context)
}

// Settle commits the open reservation and emits the usage row. Callers settle
// after the generated URLs have been persisted.
func (out *ImageOutcome) Settle(ctx context.Context) {
	if out.settle == nil {
		return
	}
	f := out.settle
	out.settle, out.release = nil, nil
	f(ctx)
}

// Release refunds the open reservation when the result could not be persisted.
func (out *ImageOutcome) Release(ctx context.Context) {
	if out.release == nil {
		return
	}
	f := out.release
	out.settle, out.release = nil, nil
	f(ctx)
}

// InvokeImage generates count images with the configured image provider,
// metering credits per image unit. Provider errors refund the hold
// immediately; success leaves the reservation open for Settle or Release.
func (e *Engine) InvokeImage(ctx context.Context, userID, jobID, promptText string, count int) (*ImageOutcome, error) {
	if count < 1 {
		count = 1
	}
	selector := e.cfg.ImageProvider
	provider, model, err := e.providers.ResolveImage(selector)
	if err != nil {
		return nil, err
	}
	vendor, _, _ := llm.SplitProviderString(selector)

	estCredits := e.ledger.Rates().ImageCredits(selector, count)
	reservationID, err := e.ledger.Reserve(ctx, userID, estCredits)
	if err != nil {
		return nil, err
	}

	out := &ImageOutcome{Selector: selector, Vendor: vendor, Model: model}
	usage := func(ctx context.Context, status, reason string, images int) {
		e.ledger.Append(ctx, models.UsageEntry{
			UserID:      userID,
			JobID:       jobID,
			TaskType:    models.TaskImageGeneration,
			Provider:    vendor,
			Model:       model,
			ImageCount:  images,
			CreditsUsed: out.Credits,
			Status:      status,
			ErrorReason: reason,
		})
	}

	resp, err := provider.GenerateImage(ctx, llm.ImageRequest{Model: model, Prompt: promptText, Count: count})
	if err != nil {
		e.refund(ctx, userID, reservationID)
		out.Failure = failureNow(ReasonProviderError, err.Error(), "")
		usage(ctx, "error", ReasonProviderError, 0)
		return out, nil
	}
	if resp.Error != nil {
		e.refund(ctx, userID, reservationID)
		out.Failure = failureNow(resp.Error.Reason, resp.Error.Message, resp.Error.RawPreview)
		usage(ctx, "error", resp.Error.Reason, 0)
		return out, nil
	}

	out.URLs = resp.URLs
	out.Credits = e.ledger.Rates().ImageCredits(selector, len(resp.URLs))
	out.settle = func(ctx context.Context) {
		if err := e.ledger.Commit(ctx, userID, reservationID, out.Credits); err != nil {
			slog.Error("image credit commit failed", "user_id", userID, "error", err)
		}
		usage(ctx, "success", "", len(out.URLs))
	}
	out.release = func(ctx context.Context) {
		out.Credits = 0
		e.refund(ctx, userID, reservationID)
	}
	return out, nil
}
