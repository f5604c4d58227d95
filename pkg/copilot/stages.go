// Package copilot implements the staged tool-calling agent loop behind the
// copilot_agent task. Each invocation is bounded: at most K LLM turns, each
// optionally followed by one tool execution.
package copilot

import "strings"

// StageConfig scopes the agent to one UI context: framing text plus a tool
// whitelist. Tools outside the whitelist never appear in the turn manifest.
type StageConfig struct {
	Name         string
	Mission      string
	Guardrails   string
	Instructions string
	ToolNames    []string
}

// Stage names.
const (
	StageWizard   = "wizard"
	StageRefine   = "refine"
	StageAssets   = "assets"
	StageChannels = "channels"
)

var stageConfigs = map[string]*StageConfig{
	StageWizard: {
		Name:    StageWizard,
		Mission: "You help the user fill in their job posting step by step.",
		Guardrails: "Only change fields the user asked about. Never invent salary figures. " +
			"Ask before overwriting a value the user typed themselves.",
		Instructions: "Prefer applying an existing suggestion over writing a new value from scratch.",
		ToolNames: []string{
			"get_job_snapshot", "get_suggestions", "update_job_field",
			"batch_update_job_fields", "apply_suggestion", "refresh_suggestions",
			"confirm_company_name",
		},
	},
	StageRefine: {
		Name:    StageRefine,
		Mission: "You help the user polish their completed job posting.",
		Guardrails: "Keep facts from the intake intact. Tone and structure may change, " +
			"requirements and compensation may not.",
		Instructions: "Small wording edits go through update_refined_field; factual corrections go through update_job_field.",
		ToolNames: []string{
			"get_job_snapshot", "get_refinement", "update_job_field",
			"batch_update_job_fields", "update_refined_field",
		},
	},
	StageAssets: {
		Name:       StageAssets,
		Mission:    "You help the user edit their generated campaign creatives.",
		Guardrails: "Respect channel format limits. Never touch the intake fields from this stage.",
		Instructions: "Use list_assets to see what exists before editing. " +
			"Edit one asset per tool call.",
		ToolNames: []string{
			"get_job_snapshot", "get_refinement", "list_assets", "update_asset",
		},
	},
	StageChannels: {
		Name:       StageChannels,
		Mission:    "You help the user pick distribution channels for their posting.",
		Guardrails: "Recommendations are estimates; present cost figures as such.",
		Instructions: "Use get_channels before discussing options. " +
			"Trigger refresh_channels only when the user asks for new ideas.",
		ToolNames: []string{
			"get_job_snapshot", "get_channels", "refresh_channels",
		},
	},
}

// ResolveStage returns the stage configuration, defaulting to wizard.
func ResolveStage(name string) (*StageConfig, bool) {
	if name == "" {
		name = StageWizard
	}
	cfg, ok := stageConfigs[name]
	return cfg, ok
}

// Framing renders the stage's system framing block for the agent prompt.
func (s *StageConfig) Framing() string {
	var b strings.Builder
	b.WriteString("## Mission\n")
	b.WriteString(s.Mission)
	b.WriteString("\n\n## Guardrails\n")
	b.WriteString(s.Guardrails)
	b.WriteString("\n\n## Instructions\n")
	b.WriteString(s.Instructions)
	return b.String()
}

// Allows reports whether the stage whitelists the tool.
func (s *StageConfig) Allows(toolName string) bool {
	for _, n := range s.ToolNames {
		if n == toolName {
			return true
		}
	}
	return false
}
