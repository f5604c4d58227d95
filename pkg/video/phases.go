// Package video implements the video pipeline: manifest building, segment
// planning, and the render controller driving the provider's async render
// operations.
package video

import (
	"strings"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// phaseVocabulary maps raw storyboard phase labels onto the canonical three.
// Anything unlisted is a middle shot.
var phaseVocabulary = map[string]models.ShotPhase{
	"hook":           models.PhaseHook,
	"intro":          models.PhaseHook,
	"introduction":   models.PhaseHook,
	"opening":        models.PhaseHook,
	"attention":      models.PhaseHook,
	"cta":            models.PhaseCTA,
	"action":         models.PhaseCTA,
	"call to action": models.PhaseCTA,
	"closing":        models.PhaseCTA,
	"close":          models.PhaseCTA,
	"finale":         models.PhaseCTA,
	"end":            models.PhaseCTA,
}

// NormalizePhase maps a raw phase label to hook, middle or cta.
func NormalizePhase(raw string) models.ShotPhase {
	key := strings.ToLower(strings.TrimSpace(raw))
	if phase, ok := phaseVocabulary[key]; ok {
		return phase
	}
	return models.PhaseMiddle
}
