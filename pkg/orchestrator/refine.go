package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// runRefine rewrites the completed intake into a polished posting. Gated on
// requiredComplete; callers with an incomplete intake get
// ErrRequirementsIncomplete, never a provider call.
func (o *Orchestrator) runRefine(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if !job.StateMachine.RequiredComplete {
		return nil, services.ErrRequirementsIncomplete
	}

	doc, err := loadDoc[models.RefinementDoc](ctx, o.store, models.CollectionRefinements, job.ID)
	if err != nil {
		return nil, err
	}
	if doc != nil && doc.LastFailure == nil && !req.Bool(CtxForceRefresh) {
		return &TaskResult{
			TaskType:  req.TaskType,
			Refreshed: false,
			Payload:   refinementPayload(doc),
		}, nil
	}

	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskRefine,
		Vars: map[string]any{
			"JobSnapshot":    JobSnapshot(job),
			"CompanyContext": o.companyContext(ctx, job),
		},
	})
	if err != nil {
		return nil, err
	}

	if doc == nil {
		doc = &models.RefinementDoc{JobID: job.ID}
	}
	doc.SchemaVersion = models.SchemaVersion
	doc.UpdatedAt = time.Now().UTC()

	if outcome.Failure != nil {
		doc.LastFailure = outcome.Failure
		if err := o.store.Save(ctx, models.CollectionRefinements, job.ID, doc); err != nil {
			outcome.Release(ctx)
			return nil, fmt.Errorf("save refinement failure: %w", err)
		}
		outcome.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}

	doc.RefinedJob = coerceIntake(outcome.Payload["refinedJob"])
	doc.Summary, _ = outcome.Payload["summary"].(string)
	doc.Provider = outcome.Vendor
	doc.Model = outcome.Model
	doc.LastFailure = nil
	if err := o.store.Save(ctx, models.CollectionRefinements, job.ID, doc); err != nil {
		outcome.Release(ctx)
		return nil, fmt.Errorf("save refinement: %w", err)
	}
	outcome.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   refinementPayload(doc),
		Credits:   outcome.Credits,
	}, nil
}

// coerceIntake maps a loosely typed refinedJob object onto the intake shape,
// normalizing enums and list fields on the way. Unknown keys are dropped.
func coerceIntake(raw any) models.JobIntake {
	var intake models.JobIntake
	m, ok := raw.(map[string]any)
	if !ok {
		return intake
	}
	for fieldID, value := range m {
		// Field-level errors only skip the offending field.
		_ = services.SetIntakeField(&intake, fieldID, value)
	}
	return intake
}

func refinementPayload(doc *models.RefinementDoc) map[string]any {
	return map[string]any{
		"refinedJob": doc.RefinedJob,
		"summary":    doc.Summary,
	}
}
