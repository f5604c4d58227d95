// Package schema wraps JSON-schema compilation and validation for task
// output schemas and copilot tool input schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Compile builds a validator from a schema document given as a generic map.
func Compile(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema %s: %w", name, err)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled, nil
}

// ValidateJSON parses raw JSON and validates it against the schema document.
// Returns the decoded object on success.
func ValidateJSON(name string, doc map[string]any, raw []byte) (map[string]any, error) {
	compiled, err := Compile(name, doc)
	if err != nil {
		return nil, err
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse payload for %s: %w", name, err)
	}
	if err := compiled.Validate(value); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema %s: payload is not an object", name)
	}
	return obj, nil
}

// ValidateValue validates an already-decoded generic value.
func ValidateValue(name string, doc map[string]any, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", name, err)
	}
	_, err = ValidateJSON(name, doc, raw)
	return err
}
