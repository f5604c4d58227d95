package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// Action types recorded by tools. The four side-effect types allow the loop
// to terminate with a synthesized reply.
const (
	ActionFieldUpdate      = "field_update"
	ActionFieldBatchUpdate = "field_batch_update"
	ActionRefinedField     = "refined_field_update"
	ActionAssetUpdate      = "asset_update"
	ActionChannelsUpdate   = "channel_recommendations_update"
	ActionSuggestRefresh   = "suggestions_refresh"
	ActionCompanyConfirm   = "company_name_confirmed"
)

// ToolContext is what a tool's execute receives besides its input. The job
// document is memoized for the whole invocation.
type ToolContext struct {
	Store     docstore.Store
	Jobs      *services.JobService
	Companies *company.Loader
	UserID    string
	Job       *models.Job
}

// ToolResult is a tool execution outcome. A non-empty Reply together with an
// Action lets the loop finish without another LLM turn.
type ToolResult struct {
	Status string
	Data   map[string]any
	Action *orchestrator.Action
	Reply  string
}

// Tool is one agent-callable operation. Execute writes persisted state only
// through the document store and reports what happened as an Action.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Execute     func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error)
}

func okResult(data map[string]any) *ToolResult {
	return &ToolResult{Status: "ok", Data: data}
}

func actionNow(actionType, fieldID string, payload map[string]any) *orchestrator.Action {
	return &orchestrator.Action{
		Type:    actionType,
		FieldID: fieldID,
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

var fieldIDSchema = map[string]any{"type": "string", "minLength": 1}

// builtinTools returns the full tool set; stages subset it per turn.
func builtinTools() map[string]*Tool {
	tools := []*Tool{
		{
			Name:        "get_job_snapshot",
			Description: "Read the current job intake fields and wizard state.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				return okResult(map[string]any{
					"snapshot": orchestrator.JobSnapshot(tc.Job),
					"state":    string(tc.Job.StateMachine.CurrentState),
				}), nil
			},
		},
		{
			Name:        "update_job_field",
			Description: "Set one intake field to a new value.",
			InputSchema: objectSchema(map[string]any{
				"fieldId": fieldIDSchema,
				"value":   map[string]any{},
			}, []any{"fieldId", "value"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				fieldID, _ := input["fieldId"].(string)
				if err := services.SetIntakeField(&tc.Job.Intake, fieldID, input["value"]); err != nil {
					return nil, err
				}
				if err := tc.Jobs.Save(ctx, tc.Job); err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"fieldId": fieldID, "value": tc.Job.Intake.FieldValue(fieldID)})
				res.Action = actionNow(ActionFieldUpdate, fieldID, map[string]any{"value": input["value"]})
				res.Reply = fmt.Sprintf("I updated %s as requested.", fieldID)
				return res, nil
			},
		},
		{
			Name:        "batch_update_job_fields",
			Description: "Set several intake fields at once.",
			InputSchema: objectSchema(map[string]any{
				"fields": map[string]any{"type": "object", "minProperties": 1},
			}, []any{"fields"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				fields, _ := input["fields"].(map[string]any)
				if err := services.MergeIntakeDeltas(&tc.Job.Intake, fields); err != nil {
					return nil, err
				}
				if err := tc.Jobs.Save(ctx, tc.Job); err != nil {
					return nil, err
				}
				ids := make([]string, 0, len(fields))
				for id := range fields {
					ids = append(ids, id)
				}
				res := okResult(map[string]any{"updated": ids})
				res.Action = actionNow(ActionFieldBatchUpdate, "", map[string]any{"fields": fields})
				res.Reply = fmt.Sprintf("I updated %s as requested.", strings.Join(ids, ", "))
				return res, nil
			},
		},
		{
			Name:        "apply_suggestion",
			Description: "Copy the current suggestion for a field into the intake.",
			InputSchema: objectSchema(map[string]any{"fieldId": fieldIDSchema}, []any{"fieldId"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				fieldID, _ := input["fieldId"].(string)
				doc, err := docstore.GetTyped[models.SuggestionDoc](ctx, tc.Store, models.CollectionSuggestions, tc.Job.ID)
				if errors.Is(err, docstore.ErrNotFound) {
					return &ToolResult{Status: "error", Data: map[string]any{"reason": "no suggestions available"}}, nil
				}
				if err != nil {
					return nil, err
				}
				candidate, ok := doc.Candidates[fieldID]
				if !ok {
					return &ToolResult{Status: "error", Data: map[string]any{"reason": "no suggestion for field " + fieldID}}, nil
				}
				if err := services.SetIntakeField(&tc.Job.Intake, fieldID, candidate.Proposal); err != nil {
					return nil, err
				}
				if err := tc.Jobs.Save(ctx, tc.Job); err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"fieldId": fieldID, "value": tc.Job.Intake.FieldValue(fieldID)})
				res.Action = actionNow(ActionFieldUpdate, fieldID, map[string]any{"value": candidate.Proposal})
				res.Reply = fmt.Sprintf("I applied the suggestion for %s.", fieldID)
				return res, nil
			},
		},
		{
			Name:        "get_suggestions",
			Description: "Read the current field suggestions.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				doc, err := docstore.GetTyped[models.SuggestionDoc](ctx, tc.Store, models.CollectionSuggestions, tc.Job.ID)
				if errors.Is(err, docstore.ErrNotFound) {
					return okResult(map[string]any{"suggestions": ""}), nil
				}
				if err != nil {
					return nil, err
				}
				return okResult(map[string]any{"suggestions": orchestrator.SuggestionsSnapshot(doc)}), nil
			},
		},
		{
			Name:        "refresh_suggestions",
			Description: "Invalidate the suggestion cache so the next suggest call regenerates.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				err := docstore.UpdateTyped(ctx, tc.Store, models.CollectionSuggestions, tc.Job.ID,
					func(doc *models.SuggestionDoc, exists bool) error {
						if !exists {
							return docstore.ErrAborted
						}
						doc.Fingerprint = ""
						doc.UpdatedAt = time.Now().UTC()
						return nil
					})
				if err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"invalidated": true})
				res.Action = actionNow(ActionSuggestRefresh, "", nil)
				return res, nil
			},
		},
		{
			Name:        "get_refinement",
			Description: "Read the polished posting.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				doc, err := docstore.GetTyped[models.RefinementDoc](ctx, tc.Store, models.CollectionRefinements, tc.Job.ID)
				if errors.Is(err, docstore.ErrNotFound) {
					return okResult(map[string]any{"refinement": ""}), nil
				}
				if err != nil {
					return nil, err
				}
				return okResult(map[string]any{"refinement": orchestrator.RefinementSnapshot(doc)}), nil
			},
		},
		{
			Name:        "update_refined_field",
			Description: "Edit one field of the polished posting without touching the intake.",
			InputSchema: objectSchema(map[string]any{
				"fieldId": fieldIDSchema,
				"value":   map[string]any{},
			}, []any{"fieldId", "value"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				fieldID, _ := input["fieldId"].(string)
				err := docstore.UpdateTyped(ctx, tc.Store, models.CollectionRefinements, tc.Job.ID,
					func(doc *models.RefinementDoc, exists bool) error {
						if !exists {
							doc.JobID = tc.Job.ID
							doc.SchemaVersion = models.SchemaVersion
						}
						if err := services.SetIntakeField(&doc.RefinedJob, fieldID, input["value"]); err != nil {
							return err
						}
						doc.UpdatedAt = time.Now().UTC()
						return nil
					})
				if err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"fieldId": fieldID})
				res.Action = actionNow(ActionRefinedField, fieldID, map[string]any{"value": input["value"]})
				res.Reply = fmt.Sprintf("I updated %s in the polished posting.", fieldID)
				return res, nil
			},
		},
		{
			Name:        "list_assets",
			Description: "List the generated creatives for this job.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				assets, err := listJobAssets(ctx, tc.Store, tc.Job.ID)
				if err != nil {
					return nil, err
				}
				summaries := make([]any, 0, len(assets))
				for _, a := range assets {
					summaries = append(summaries, map[string]any{
						"assetId":   a.ID,
						"channelId": a.ChannelID,
						"formatId":  a.FormatID,
						"headline":  a.Headline,
					})
				}
				return okResult(map[string]any{"assets": summaries}), nil
			},
		},
		{
			Name:        "update_asset",
			Description: "Edit the copy of one generated creative.",
			InputSchema: objectSchema(map[string]any{
				"assetId":      map[string]any{"type": "string", "minLength": 1},
				"headline":     map[string]any{"type": "string"},
				"body":         map[string]any{"type": "string"},
				"callToAction": map[string]any{"type": "string"},
			}, []any{"assetId"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				assetID, _ := input["assetId"].(string)
				err := docstore.UpdateTyped(ctx, tc.Store, models.CollectionAssets, assetID,
					func(doc *models.AssetRecord, exists bool) error {
						if !exists || doc.JobID != tc.Job.ID {
							return services.ErrNotFound
						}
						if v, ok := input["headline"].(string); ok && v != "" {
							doc.Headline = v
						}
						if v, ok := input["body"].(string); ok && v != "" {
							doc.Body = v
						}
						if v, ok := input["callToAction"].(string); ok && v != "" {
							doc.CallToAction = v
						}
						doc.UpdatedAt = time.Now().UTC()
						return nil
					})
				if err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"assetId": assetID})
				res.Action = actionNow(ActionAssetUpdate, "", map[string]any{"assetId": assetID})
				res.Reply = "I updated the creative as requested."
				return res, nil
			},
		},
		{
			Name:        "get_channels",
			Description: "Read the current channel recommendations.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				doc, err := docstore.GetTyped[models.ChannelDoc](ctx, tc.Store, models.CollectionChannelRecs, tc.Job.ID)
				if errors.Is(err, docstore.ErrNotFound) {
					return okResult(map[string]any{"channels": []any{}}), nil
				}
				if err != nil {
					return nil, err
				}
				channels := make([]any, 0, len(doc.Channels))
				for _, c := range doc.Channels {
					channels = append(channels, map[string]any{
						"channel":     c.Channel,
						"reason":      c.Reason,
						"expectedCpa": c.ExpectedCpa,
					})
				}
				return okResult(map[string]any{"channels": channels}), nil
			},
		},
		{
			Name:        "refresh_channels",
			Description: "Discard the channel recommendations so the next channels call regenerates.",
			InputSchema: objectSchema(nil, nil),
			Execute: func(ctx context.Context, tc *ToolContext, _ map[string]any) (*ToolResult, error) {
				if err := tc.Store.Delete(ctx, models.CollectionChannelRecs, tc.Job.ID); err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"invalidated": true})
				res.Action = actionNow(ActionChannelsUpdate, "", nil)
				res.Reply = "I cleared the channel recommendations; fresh ones will be generated on the next run."
				return res, nil
			},
		},
		{
			Name:        "confirm_company_name",
			Description: "Record whether the researched company profile matches the employer.",
			InputSchema: objectSchema(map[string]any{
				"approved": map[string]any{"type": "boolean"},
			}, []any{"approved"}),
			Execute: func(ctx context.Context, tc *ToolContext, input map[string]any) (*ToolResult, error) {
				approved, _ := input["approved"].(bool)
				if tc.Job.Intake.CompanyName == "" {
					return &ToolResult{Status: "error", Data: map[string]any{"reason": "job has no company name"}}, nil
				}
				if err := tc.Companies.ConfirmName(ctx, tc.Job.Intake.CompanyName, approved); err != nil {
					return nil, err
				}
				res := okResult(map[string]any{"approved": approved})
				res.Action = actionNow(ActionCompanyConfirm, "", map[string]any{"approved": approved})
				return res, nil
			},
		},
	}

	out := make(map[string]*Tool, len(tools))
	for _, t := range tools {
		out[t.Name] = t
	}
	return out
}

func objectSchema(properties map[string]any, required []any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	s := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func listJobAssets(ctx context.Context, store docstore.Store, jobID string) ([]*models.AssetRecord, error) {
	raws, err := store.List(ctx, models.CollectionAssets)
	if err != nil {
		return nil, err
	}
	var out []*models.AssetRecord
	for _, raw := range raws {
		if !strings.HasPrefix(raw.ID, jobID+":") {
			continue
		}
		var a models.AssetRecord
		if err := json.Unmarshal(raw.Data, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}
