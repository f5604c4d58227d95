package copilot

import (
	"context"
	"errors"
	"time"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// syncRefinedFields mirrors refine-stage intake updates into the refinement
// document after the loop. This post-loop reconciliation is the authoritative
// path: whether a tool already mirrored a field or not, the end state is the
// same.
func (r *Runner) syncRefinedFields(ctx context.Context, jobID string, actions []orchestrator.Action) error {
	deltas := map[string]any{}
	for _, a := range actions {
		switch a.Type {
		case ActionFieldUpdate:
			if a.FieldID != "" {
				deltas[a.FieldID] = a.Payload["value"]
			}
		case ActionFieldBatchUpdate:
			if fields, ok := a.Payload["fields"].(map[string]any); ok {
				for id, v := range fields {
					deltas[id] = v
				}
			}
		}
	}
	if len(deltas) == 0 {
		return nil
	}

	err := docstore.UpdateTyped(ctx, r.store, models.CollectionRefinements, jobID,
		func(doc *models.RefinementDoc, exists bool) error {
			// Nothing to reconcile until a refinement exists.
			if !exists {
				return docstore.ErrAborted
			}
			for fieldID, value := range deltas {
				// Unknown field ids skip silently; the intake write already
				// validated the user-visible part.
				_ = services.SetIntakeField(&doc.RefinedJob, fieldID, value)
			}
			doc.UpdatedAt = time.Now().UTC()
			return nil
		})
	if errors.Is(err, docstore.ErrAborted) {
		return nil
	}
	return err
}
