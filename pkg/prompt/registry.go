// Package prompt holds the task-id keyed prompt registry: templates, output
// schemas, grounding tool declarations and provider preferences. The registry
// is built at startup from the builtin set plus optional YAML overrides and
// is read-only afterwards.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Definition describes one task's prompt contract.
type Definition struct {
	ID                 string
	Version            string
	System             string
	Template           string
	Variables          []string
	OutputSchema       map[string]any
	OutputSchemaName   string
	GroundingTools     []string
	ProviderPreference string
	// FieldVocabulary is the set of field ids the prompt recognizes; only
	// relevant for field-suggestion tasks.
	FieldVocabulary []string
}

// Synthetic reports whether the definition was fabricated for an
// unregistered task id.
func (d *Definition) Synthetic() bool {
	return d.Version == syntheticVersion
}

const syntheticVersion = "synthetic"

// Registry maps task ids to prompt definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds a registry from the builtin definitions.
func NewRegistry() *Registry {
	defs := make(map[string]*Definition, len(builtinDefinitions))
	for _, d := range builtinDefinitions {
		defs[d.ID] = d
	}
	return &Registry{defs: defs}
}

// Resolve returns the definition for a task id. Unregistered ids yield a
// synthetic definition (empty template, no schema) — the provider is still
// invoked with it.
func (r *Registry) Resolve(taskID string) *Definition {
	if d, ok := r.defs[taskID]; ok {
		return d
	}
	return &Definition{ID: taskID, Version: syntheticVersion}
}

// Known reports whether a real (non-synthetic) definition exists.
func (r *Registry) Known(taskID string) bool {
	_, ok := r.defs[taskID]
	return ok
}

// Render executes the definition's template against vars and returns the
// system and user messages. A synthetic definition renders to the task id.
func (r *Registry) Render(d *Definition, vars map[string]any) (system, user string, err error) {
	if d.Template == "" {
		return d.System, d.ID, nil
	}
	tmpl, err := template.New(d.ID).Option("missingkey=zero").Parse(d.Template)
	if err != nil {
		return "", "", fmt.Errorf("parse template %s: %w", d.ID, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("render template %s: %w", d.ID, err)
	}
	return d.System, buf.String(), nil
}

// overrideFile is the YAML shape of a prompt override file.
type overrideFile struct {
	Prompts map[string]struct {
		Version  string `yaml:"version"`
		System   string `yaml:"system"`
		Template string `yaml:"template"`
		Provider string `yaml:"provider"`
	} `yaml:"prompts"`
}

// LoadOverrides applies prompts.yaml from the config directory, if present.
// Overrides replace text and provider preference but never schemas or
// grounding declarations.
func (r *Registry) LoadOverrides(configDir string) error {
	path := filepath.Join(configDir, "prompts.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read prompt overrides: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse prompt overrides: %w", err)
	}
	for id, o := range file.Prompts {
		d, ok := r.defs[id]
		if !ok {
			continue
		}
		if o.Version != "" {
			d.Version = o.Version
		}
		if o.System != "" {
			d.System = o.System
		}
		if o.Template != "" {
			d.Template = o.Template
		}
		if o.Provider != "" {
			d.ProviderPreference = o.Provider
		}
	}
	return nil
}
