package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// runSuggest produces field suggestions for the visible wizard fields.
// Incoming field deltas are merged into the job before completeness is
// evaluated, so the first wizard save and the first suggest call can share a
// request.
func (o *Orchestrator) runSuggest(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	job, err := o.ownedJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if deltas := req.Map(CtxDeltas); len(deltas) > 0 {
		job, err = o.jobs.ApplyFieldDeltas(ctx, req.UserID, job.ID, deltas)
		if err != nil {
			return nil, err
		}
	}
	if !job.Intake.RequiredComplete() {
		return &TaskResult{TaskType: req.TaskType, Skipped: true, SkipReason: SkipIntakeIncomplete}, nil
	}

	visible := req.StrList(CtxVisibleFieldIDs)
	if len(visible) == 0 {
		visible = append(append([]string{}, models.RequiredFieldIDs...), models.OptionalFieldIDs...)
	}

	doc, err := loadDoc[models.SuggestionDoc](ctx, o.store, models.CollectionSuggestions, job.ID)
	if err != nil {
		return nil, err
	}
	fingerprint := job.Intake.RequiredFingerprint()
	if cachedSuggestions(doc, fingerprint) && !req.Bool(CtxForceRefresh) {
		return &TaskResult{
			TaskType:  req.TaskType,
			Refreshed: false,
			Payload:   suggestionsPayload(doc, visible),
		}, nil
	}

	vars := map[string]any{
		"JobSnapshot":         JobSnapshot(job),
		"VisibleFields":       strings.Join(visible, ", "),
		"PreviousSuggestions": SuggestionsSnapshot(doc),
		"CompanyContext":      o.companyContext(ctx, job),
	}
	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    job.ID,
		TaskType: models.TaskSuggest,
		Vars:     vars,
	})
	if err != nil {
		return nil, err
	}

	if doc == nil {
		doc = &models.SuggestionDoc{JobID: job.ID}
	}
	doc.SchemaVersion = models.SchemaVersion
	doc.UpdatedAt = time.Now().UTC()

	if outcome.Failure != nil {
		doc.LastFailure = outcome.Failure
		if err := o.store.Save(ctx, models.CollectionSuggestions, job.ID, doc); err != nil {
			outcome.Release(ctx)
			return nil, fmt.Errorf("save suggestion failure: %w", err)
		}
		outcome.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}

	vocabulary := o.engine.Prompts().Resolve(models.TaskSuggest).FieldVocabulary
	doc.Candidates = parseCandidates(outcome.Payload, vocabulary)
	doc.Fingerprint = fingerprint
	doc.Provider = outcome.Vendor
	doc.Model = outcome.Model
	doc.LastFailure = nil
	if err := o.store.Save(ctx, models.CollectionSuggestions, job.ID, doc); err != nil {
		outcome.Release(ctx)
		return nil, fmt.Errorf("save suggestions: %w", err)
	}
	outcome.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   suggestionsPayload(doc, visible),
		Credits:   outcome.Credits,
	}, nil
}

// cachedSuggestions applies the suggestion cache rule: any non-failure
// document with candidates and an unchanged required intake is a hit.
func cachedSuggestions(doc *models.SuggestionDoc, fingerprint string) bool {
	return doc != nil &&
		doc.LastFailure == nil &&
		len(doc.Candidates) > 0 &&
		doc.Fingerprint == fingerprint
}

// parseCandidates extracts the suggestions array, dropping entries for fields
// outside the prompt vocabulary.
func parseCandidates(payload map[string]any, vocabulary []string) map[string]models.Candidate {
	out := make(map[string]models.Candidate)
	items, _ := payload["suggestions"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fieldID, _ := m["fieldId"].(string)
		if !slices.Contains(vocabulary, fieldID) {
			continue
		}
		proposal, _ := m["proposal"].(string)
		rationale, _ := m["rationale"].(string)
		confidence, _ := m["confidence"].(float64)
		if proposal == "" {
			continue
		}
		out[fieldID] = models.Candidate{
			Proposal:   proposal,
			Rationale:  rationale,
			Confidence: confidence,
		}
	}
	return out
}

// suggestionsPayload projects the document onto the visible field subset.
func suggestionsPayload(doc *models.SuggestionDoc, visible []string) map[string]any {
	suggestions := make([]any, 0, len(visible))
	for _, fieldID := range visible {
		c, ok := doc.Candidates[fieldID]
		if !ok {
			continue
		}
		suggestions = append(suggestions, map[string]any{
			"fieldId":    fieldID,
			"proposal":   c.Proposal,
			"rationale":  c.Rationale,
			"confidence": c.Confidence,
		})
	}
	return map[string]any{"suggestions": suggestions}
}
