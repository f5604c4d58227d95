package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltinAndSynthetic(t *testing.T) {
	r := NewRegistry()

	def := r.Resolve("suggest")
	require.False(t, def.Synthetic())
	assert.NotEmpty(t, def.Template)
	assert.NotEmpty(t, def.OutputSchema)
	assert.True(t, r.Known("suggest"))

	// Unknown ids still resolve so the provider can be invoked.
	syn := r.Resolve("made_up_task")
	assert.True(t, syn.Synthetic())
	assert.Empty(t, syn.OutputSchema)
	assert.False(t, r.Known("made_up_task"))
}

func TestRenderMissingVariablesAreZero(t *testing.T) {
	r := NewRegistry()
	def := r.Resolve("suggest")

	system, user, err := r.Render(def, map[string]any{"JobSnapshot": "roleTitle: Engineer"})
	require.NoError(t, err)
	assert.NotEmpty(t, system)
	assert.Contains(t, user, "roleTitle: Engineer")
}

func TestRenderSyntheticDefinition(t *testing.T) {
	r := NewRegistry()
	def := r.Resolve("made_up_task")

	_, user, err := r.Render(def, nil)
	require.NoError(t, err)
	assert.Equal(t, "made_up_task", user)
}

func TestCompanyIntelDeclaresGrounding(t *testing.T) {
	r := NewRegistry()
	def := r.Resolve("company_intel")
	require.False(t, def.Synthetic())
	assert.Contains(t, def.GroundingTools, "google_search")
}

func TestLoadOverridesReplacesTextOnly(t *testing.T) {
	dir := t.TempDir()
	overrides := `prompts:
  suggest:
    version: "99"
    system: "Custom system."
    template: "Custom template {{.JobSnapshot}}"
    provider: "openai:gpt-5"
  unknown_task:
    template: "ignored"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts.yaml"), []byte(overrides), 0o644))

	r := NewRegistry()
	before := r.Resolve("suggest")
	schema := before.OutputSchema
	require.NoError(t, r.LoadOverrides(dir))

	def := r.Resolve("suggest")
	assert.Equal(t, "99", def.Version)
	assert.Equal(t, "Custom system.", def.System)
	assert.Equal(t, "openai:gpt-5", def.ProviderPreference)
	// Schemas and grounding declarations survive overrides.
	assert.Equal(t, schema, def.OutputSchema)

	assert.False(t, r.Known("unknown_task"), "overrides never create new tasks")
}

func TestLoadOverridesMissingFileIsFine(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.LoadOverrides(t.TempDir()))
}
