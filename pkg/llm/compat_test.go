package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUseStructuredOutput(t *testing.T) {
	tests := []struct {
		name      string
		vendor    string
		grounded  bool
		hasSchema bool
		want      bool
	}{
		{"gemini grounded with schema", "gemini", true, true, false},
		{"gemini grounded without schema", "gemini", true, false, false},
		{"gemini ungrounded with schema", "gemini", false, true, true},
		{"gemini ungrounded without schema", "gemini", false, false, false},
		{"openai grounded with schema", "openai", true, true, true},
		{"anthropic with schema", "anthropic", false, true, true},
		{"anthropic without schema", "anthropic", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UseStructuredOutput(tt.vendor, tt.grounded, tt.hasSchema)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestUsesStructuredOutput(t *testing.T) {
	grounded := &Request{
		GroundingTools: []string{GroundingGoogleSearch},
		OutputSchema:   map[string]any{"type": "object"},
	}
	assert.False(t, RequestUsesStructuredOutput("gemini", grounded))
	assert.True(t, RequestUsesStructuredOutput("openai", grounded))

	plain := &Request{OutputSchema: map[string]any{"type": "object"}}
	assert.True(t, RequestUsesStructuredOutput("gemini", plain))
}
