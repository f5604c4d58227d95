package prompt

import (
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// confidenceSchema is reused wherever candidates carry a confidence score.
var confidenceSchema = map[string]any{"type": "number", "minimum": 0, "maximum": 1}

// intakeFieldSchema is the refined-job object shape shared by refine and
// asset prompts.
var intakeFieldSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"roleTitle":      map[string]any{"type": "string"},
		"companyName":    map[string]any{"type": "string"},
		"location":       map[string]any{"type": "string"},
		"seniorityLevel": map[string]any{"type": "string"},
		"employmentType": map[string]any{"type": "string"},
		"workModel":      map[string]any{"type": "string"},
		"jobDescription": map[string]any{"type": "string"},
		"coreDuties":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"mustHaves":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"benefits":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"additionalProperties": true,
}

var builtinDefinitions = []*Definition{
	{
		ID:      models.TaskSuggest,
		Version: "3",
		System: `You are a recruiting assistant. Propose concrete values for the missing or weak fields of a job posting. ` +
			`Only suggest fields you were asked about. Be specific to the role, company and location.`,
		Template: `## Job intake
{{.JobSnapshot}}

## Fields to suggest
{{.VisibleFields}}
{{if .PreviousSuggestions}}
## Earlier suggestions (improve, do not repeat)
{{.PreviousSuggestions}}
{{end}}{{if .CompanyContext}}
## Company research
{{.CompanyContext}}
{{end}}
Return one candidate per field with a short rationale and a confidence between 0 and 1.`,
		Variables:        []string{"JobSnapshot", "VisibleFields", "PreviousSuggestions", "CompanyContext"},
		OutputSchemaName: "field_suggestions",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"suggestions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"fieldId":    map[string]any{"type": "string"},
							"proposal":   map[string]any{"type": "string"},
							"rationale":  map[string]any{"type": "string"},
							"confidence": confidenceSchema,
						},
						"required":             []any{"fieldId", "proposal", "confidence"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"suggestions"},
			"additionalProperties": false,
		},
		FieldVocabulary: append(append([]string{}, models.RequiredFieldIDs...), models.OptionalFieldIDs...),
	},
	{
		ID:      models.TaskRefine,
		Version: "2",
		System: `You are a senior recruiting copywriter. Rewrite the intake into a polished job posting. ` +
			`Keep facts intact; improve tone, structure and inclusivity.`,
		Template: `## Intake
{{.JobSnapshot}}
{{if .CompanyContext}}
## Company research
{{.CompanyContext}}
{{end}}
Return the polished posting as refinedJob plus a one-paragraph summary of what you changed.`,
		Variables:        []string{"JobSnapshot", "CompanyContext"},
		OutputSchemaName: "refined_job",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"refinedJob": intakeFieldSchema,
				"summary":    map[string]any{"type": "string"},
			},
			"required":             []any{"refinedJob", "summary"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskChannels,
		Version: "2",
		System: `You are a recruitment marketing planner. Recommend distribution channels for this role ` +
			`with expected cost-per-application estimates in USD.`,
		Template: `## Job
{{.JobSnapshot}}
{{if .RefinedJob}}
## Polished posting
{{.RefinedJob}}
{{end}}{{if .CompanyContext}}
## Company research
{{.CompanyContext}}
{{end}}
Recommend 3 to 6 channels ordered by fit.`,
		Variables:        []string{"JobSnapshot", "RefinedJob", "CompanyContext"},
		OutputSchemaName: "channel_recommendations",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channels": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"channel":     map[string]any{"type": "string"},
							"reason":      map[string]any{"type": "string"},
							"expectedCpa": map[string]any{"type": "number", "minimum": 0},
						},
						"required":             []any{"channel", "reason"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"channels"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskCopilotAgent,
		Version: "4",
		// System framing comes from the stage config; the template only carries
		// the turn payload.
		Template: `{{.StageFraming}}

## Job snapshot
{{.JobSnapshot}}
{{if .Suggestions}}
## Current suggestions
{{.Suggestions}}
{{end}}{{if .RefinedJob}}
## Polished posting
{{.RefinedJob}}
{{end}}{{if .CompanyContext}}
## Company research
{{.CompanyContext}}
{{end}}
## Conversation
{{.Conversation}}
{{if .Scratchpad}}
## Tool results so far
{{.Scratchpad}}
{{end}}
## Available tools
{{.ToolManifest}}

Decide your next step. Reply with exactly one JSON object:
either {"type":"tool_call","tool":"<name>","input":{...}} to use a tool,
or {"type":"final","message":"<reply to the user>"} when you are done.`,
		Variables: []string{
			"StageFraming", "JobSnapshot", "Suggestions", "RefinedJob",
			"CompanyContext", "Conversation", "Scratchpad", "ToolManifest",
		},
		OutputSchemaName: "agent_step",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":    map[string]any{"type": "string", "enum": []any{"tool_call", "final"}},
				"tool":    map[string]any{"type": "string"},
				"input":   map[string]any{"type": "object"},
				"message": map[string]any{"type": "string"},
			},
			"required":             []any{"type"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskAssetMaster,
		Version: "2",
		System:  `You write recruitment ad copy. Produce the master creative for this role.`,
		Template: `## Posting
{{.JobSnapshot}}
{{if .RefinedJob}}{{.RefinedJob}}{{end}}

Write the master asset: a headline (max 80 chars), body copy (max 600 chars) and a call to action.`,
		Variables:        []string{"JobSnapshot", "RefinedJob"},
		OutputSchemaName: "master_asset",
		OutputSchema:     assetCopySchema,
	},
	{
		ID:      models.TaskAssetChannel,
		Version: "2",
		System:  `You adapt recruitment creatives to specific channels, respecting each channel's format limits.`,
		Template: `## Master creative
{{.MasterAsset}}

## Channels
{{.Channels}}

Adapt the master creative for every listed channel and format.`,
		Variables:        []string{"MasterAsset", "Channels"},
		OutputSchemaName: "channel_assets",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"assets": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"channelId":    map[string]any{"type": "string"},
							"formatId":     map[string]any{"type": "string"},
							"headline":     map[string]any{"type": "string"},
							"body":         map[string]any{"type": "string"},
							"callToAction": map[string]any{"type": "string"},
						},
						"required":             []any{"channelId", "formatId", "headline", "body"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"assets"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskAssetAdapt,
		Version: "1",
		System:  `You adapt one recruitment creative to a new channel or format.`,
		Template: `## Source creative
{{.SourceAsset}}

## Target
channel: {{.ChannelId}}, format: {{.FormatId}}

Rewrite the creative for the target.`,
		Variables:        []string{"SourceAsset", "ChannelId", "FormatId"},
		OutputSchemaName: "adapted_asset",
		OutputSchema:     assetCopySchema,
	},
	{
		ID:      models.TaskVideoStoryboard,
		Version: "3",
		System: `You are a short-form video director for recruitment ads. Plan storyboards that hook fast ` +
			`and end with a clear call to action.`,
		Template: `## Job
{{.JobSnapshot}}

## Channel
{{.Channel}}

Plan 3 to 5 shots. Each shot has a phase (hook, middle or cta), a visual description, optional on-screen text, a voice-over line and a duration in seconds.`,
		Variables:        []string{"JobSnapshot", "Channel"},
		OutputSchemaName: "storyboard",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"shots": map[string]any{
					"type":     "array",
					"minItems": 3,
					"maxItems": 5,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"phase":           map[string]any{"type": "string"},
							"visual":          map[string]any{"type": "string"},
							"onScreenText":    map[string]any{"type": "string"},
							"voiceOver":       map[string]any{"type": "string"},
							"durationSeconds": map[string]any{"type": "number", "minimum": 0},
						},
						"required":             []any{"phase", "visual"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"shots"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskVideoCompliance,
		Version: "2",
		System: `You review recruitment video plans for legal and platform-policy issues ` +
			`(discriminatory wording, unverifiable claims, platform ad rules).`,
		Template: `## Storyboard
{{.Storyboard}}

## Job
{{.JobSnapshot}}

Flag issues with a severity (info, warning, blocker) and produce a QA checklist for the reviewer.`,
		Variables:        []string{"Storyboard", "JobSnapshot"},
		OutputSchemaName: "compliance_report",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"flags": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"code":     map[string]any{"type": "string"},
							"severity": map[string]any{"type": "string", "enum": []any{"info", "warning", "blocker"}},
							"message":  map[string]any{"type": "string"},
						},
						"required":             []any{"code", "severity"},
						"additionalProperties": false,
					},
				},
				"checklist": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required":             []any{"flags", "checklist"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskVideoCaption,
		Version: "2",
		System:  `You write platform-native social captions for recruitment videos.`,
		Template: `## Job
{{.JobSnapshot}}

## Channel
{{.Channel}}

Write the caption text and 3 to 8 hashtags.`,
		Variables:        []string{"JobSnapshot", "Channel"},
		OutputSchemaName: "video_caption",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":     map[string]any{"type": "string"},
				"hashtags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required":             []any{"text"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskCompanyIntel,
		Version: "2",
		System: `You research employers on the public web. Report only what you can ground in search results; ` +
			`leave fields empty rather than inventing facts.`,
		Template: `Research the company "{{.CompanyName}}"{{if .Location}} near {{.Location}}{{end}}.

Report its website, industry, size, a two-sentence summary, cultural signals, and up to 10 currently advertised jobs.`,
		Variables:        []string{"CompanyName", "Location"},
		GroundingTools:   []string{llm.GroundingGoogleSearch},
		OutputSchemaName: "company_intel",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"profile": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"website":  map[string]any{"type": "string"},
						"industry": map[string]any{"type": "string"},
						"size":     map[string]any{"type": "string"},
						"summary":  map[string]any{"type": "string"},
						"culture":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"additionalProperties": false,
				},
				"jobs": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title":    map[string]any{"type": "string"},
							"location": map[string]any{"type": "string"},
							"url":      map[string]any{"type": "string"},
						},
						"required":             []any{"title"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"name", "profile"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskImagePrompt,
		Version: "1",
		System:  `You write image-generation prompts for recruitment hero images. Photorealistic, no text in image, no logos.`,
		Template: `## Job
{{.JobSnapshot}}

Write one image-generation prompt for a hero image representing this role's daily work environment.`,
		Variables:        []string{"JobSnapshot"},
		OutputSchemaName: "image_prompt",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{"type": "string"},
			},
			"required":             []any{"prompt"},
			"additionalProperties": false,
		},
	},
	{
		ID:      models.TaskImageCaption,
		Version: "1",
		System:  `You write short alt-text style captions for recruitment imagery.`,
		Template: `## Job
{{.JobSnapshot}}

Write a one-sentence caption for the hero image of this posting.`,
		Variables:        []string{"JobSnapshot"},
		OutputSchemaName: "image_caption",
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"caption":  map[string]any{"type": "string"},
				"hashtags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required":             []any{"caption"},
			"additionalProperties": false,
		},
	},
}

var assetCopySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"headline":     map[string]any{"type": "string"},
		"body":         map[string]any{"type": "string"},
		"callToAction": map[string]any{"type": "string"},
	},
	"required":             []any{"headline", "body"},
	"additionalProperties": false,
}
