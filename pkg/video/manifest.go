package video

import (
	"context"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
)

// PlanCharges carries the open credit holds of a manifest build. The caller
// settles them once the manifest is persisted, or releases them when it
// cannot be.
type PlanCharges struct {
	Credits int64
	outs    []*orchestrator.Outcome
}

func (c *PlanCharges) add(out *orchestrator.Outcome) {
	c.Credits += out.Credits
	c.outs = append(c.outs, out)
}

// Settle commits every open hold.
func (c *PlanCharges) Settle(ctx context.Context) {
	for _, out := range c.outs {
		out.Settle(ctx)
	}
}

// Release refunds every open hold.
func (c *PlanCharges) Release(ctx context.Context) {
	c.Credits = 0
	for _, out := range c.outs {
		out.Release(ctx)
	}
}

// BuildManifest runs the three planning tasks (storyboard, compliance,
// caption) and assembles the production manifest. A storyboard failure aborts
// the build; compliance and caption failures degrade to empty sections.
func (p *Pipeline) BuildManifest(ctx context.Context, userID string, job *models.Job, channelID string) (*models.VideoManifest, *PlanCharges, *models.Failure, error) {
	charges := &PlanCharges{}
	snapshot := orchestrator.JobSnapshot(job)

	storyboardOut, err := p.engine.Invoke(ctx, orchestrator.Invocation{
		UserID:   userID,
		JobID:    job.ID,
		TaskType: models.TaskVideoStoryboard,
		Vars:     map[string]any{"JobSnapshot": snapshot, "Channel": channelID},
	})
	if err != nil {
		return nil, charges, nil, err
	}
	charges.add(storyboardOut)
	if storyboardOut.Failure != nil {
		return nil, charges, storyboardOut.Failure, nil
	}
	storyboard := parseStoryboard(storyboardOut.Payload)
	if len(storyboard) == 0 {
		failure := &models.Failure{Reason: "empty_storyboard", Error: "storyboard task returned no shots"}
		return nil, charges, failure, nil
	}

	complianceOut, err := p.engine.Invoke(ctx, orchestrator.Invocation{
		UserID:   userID,
		JobID:    job.ID,
		TaskType: models.TaskVideoCompliance,
		Vars:     map[string]any{"Storyboard": storyboardText(storyboard), "JobSnapshot": snapshot},
	})
	if err != nil {
		return nil, charges, nil, err
	}
	charges.add(complianceOut)

	captionOut, err := p.engine.Invoke(ctx, orchestrator.Invocation{
		UserID:   userID,
		JobID:    job.ID,
		TaskType: models.TaskVideoCaption,
		Vars:     map[string]any{"JobSnapshot": snapshot, "Channel": channelID},
	})
	if err != nil {
		return nil, charges, nil, err
	}
	charges.add(captionOut)

	manifest := &models.VideoManifest{
		Storyboard: storyboard,
		RenderPlan: BuildRenderPlan(storyboard, p.engine.Config().MaxRenderSeconds),
	}
	if complianceOut.Failure == nil {
		manifest.Compliance = parseCompliance(complianceOut.Payload)
	}
	if captionOut.Failure == nil {
		manifest.Caption = parseCaption(captionOut.Payload)
	}
	return manifest, charges, nil, nil
}

func parseStoryboard(payload map[string]any) []models.Shot {
	items, _ := payload["shots"].([]any)
	out := make([]models.Shot, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		visual, _ := m["visual"].(string)
		if visual == "" {
			continue
		}
		phase, _ := m["phase"].(string)
		onScreen, _ := m["onScreenText"].(string)
		voiceOver, _ := m["voiceOver"].(string)
		seconds, _ := m["durationSeconds"].(float64)
		out = append(out, models.Shot{
			Phase:           string(NormalizePhase(phase)),
			Visual:          visual,
			OnScreenText:    onScreen,
			VoiceOver:       voiceOver,
			DurationSeconds: seconds,
		})
	}
	return out
}

func parseCompliance(payload map[string]any) models.ComplianceReport {
	var report models.ComplianceReport
	flags, _ := payload["flags"].([]any)
	for _, item := range flags {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code, _ := m["code"].(string)
		severity, _ := m["severity"].(string)
		if code == "" || severity == "" {
			continue
		}
		message, _ := m["message"].(string)
		report.Flags = append(report.Flags, models.ComplianceFlag{
			Code:     code,
			Severity: severity,
			Message:  message,
		})
	}
	checklist, _ := payload["checklist"].([]any)
	for _, item := range checklist {
		if s, ok := item.(string); ok && s != "" {
			report.Checklist = append(report.Checklist, s)
		}
	}
	return report
}

func parseCaption(payload map[string]any) models.VideoCaption {
	var caption models.VideoCaption
	caption.Text, _ = payload["text"].(string)
	hashtags, _ := payload["hashtags"].([]any)
	for _, item := range hashtags {
		if s, ok := item.(string); ok && s != "" {
			caption.Hashtags = append(caption.Hashtags, s)
		}
	}
	return caption
}

func storyboardText(shots []models.Shot) string {
	return SegmentPrompt(nil, shots)
}
