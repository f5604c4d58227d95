package video

import (
	"fmt"
	"math"
	"strings"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// segmentCapSeconds is the longest clip one render operation produces;
// anything longer becomes a multi-extend chain.
const segmentCapSeconds = 8.0

// defaultShotSeconds fills in storyboard shots without a duration.
const defaultShotSeconds = 5.0

// recapCharLimit caps the prior-segment recap embedded in extension prompts.
const recapCharLimit = 150

// recapVisualCount is how many prior visuals the recap mentions.
const recapVisualCount = 3

// BuildRenderPlan derives the segment plan from the storyboard durations,
// clamped to maxSeconds total.
func BuildRenderPlan(storyboard []models.Shot, maxSeconds float64) models.RenderPlan {
	total := 0.0
	for _, shot := range storyboard {
		seconds := shot.DurationSeconds
		if seconds <= 0 {
			seconds = defaultShotSeconds
		}
		total += seconds
	}
	if total > maxSeconds {
		total = maxSeconds
	}
	if total <= segmentCapSeconds {
		return models.RenderPlan{
			Strategy: models.RenderStrategySingle,
			Segments: []models.RenderSegment{{Seconds: total}},
		}
	}
	n := int(math.Ceil(total / segmentCapSeconds))
	segments := make([]models.RenderSegment, n)
	for i := 0; i < n-1; i++ {
		segments[i] = models.RenderSegment{Seconds: segmentCapSeconds}
	}
	segments[n-1] = models.RenderSegment{Seconds: total - segmentCapSeconds*float64(n-1)}
	return models.RenderPlan{Strategy: models.RenderStrategyMultiExtend, Segments: segments}
}

// AssignShots distributes storyboard shots over n segments by phase: hooks
// open segment 0, CTAs close the last segment, middle shots spread across the
// remaining slots floor-evenly with the remainder going to earlier slots.
func AssignShots(storyboard []models.Shot, n int) [][]models.Shot {
	out := make([][]models.Shot, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = append(out[0], storyboard...)
		return out
	}

	var hooks, middles, ctas []models.Shot
	for _, shot := range storyboard {
		switch NormalizePhase(shot.Phase) {
		case models.PhaseHook:
			hooks = append(hooks, shot)
		case models.PhaseCTA:
			ctas = append(ctas, shot)
		default:
			middles = append(middles, shot)
		}
	}

	out[0] = append(out[0], hooks...)
	out[n-1] = append(out[n-1], ctas...)

	// Slots eligible for middle shots: interior segments, plus the edges
	// when they have no phase shots of their own.
	var slots []int
	if len(hooks) == 0 {
		slots = append(slots, 0)
	}
	for i := 1; i < n-1; i++ {
		slots = append(slots, i)
	}
	if len(ctas) == 0 {
		slots = append(slots, n-1)
	}
	if len(slots) == 0 {
		// Every segment already has phase shots; middles extend segment 0.
		slots = []int{0}
	}

	per := len(middles) / len(slots)
	remainder := len(middles) % len(slots)
	cursor := 0
	for i, slot := range slots {
		count := per
		if i < remainder {
			count++
		}
		out[slot] = append(out[slot], middles[cursor:cursor+count]...)
		cursor += count
	}
	return out
}

// SegmentPrompt formats the render prompt for one segment. Extensions carry a
// short recap of what was already rendered so the provider keeps continuity.
func SegmentPrompt(priorShots, shots []models.Shot) string {
	var b strings.Builder
	if len(priorShots) > 0 {
		fmt.Fprintf(&b, "Continue this video. So far: %s\n\n", Recap(priorShots))
	}
	b.WriteString("Render these shots in order:\n")
	for i, shot := range shots {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, NormalizePhase(shot.Phase), shot.Visual)
		if shot.OnScreenText != "" {
			fmt.Fprintf(&b, " | text overlay: %s", shot.OnScreenText)
		}
		if shot.VoiceOver != "" {
			fmt.Fprintf(&b, " | VO: %s", shot.VoiceOver)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Recap summarizes up to three prior visuals in at most 150 characters.
func Recap(priorShots []models.Shot) string {
	visuals := make([]string, 0, recapVisualCount)
	for _, shot := range priorShots {
		if len(visuals) == recapVisualCount {
			break
		}
		if v := strings.TrimSpace(shot.Visual); v != "" {
			visuals = append(visuals, v)
		}
	}
	recap := strings.Join(visuals, "; ")
	if runes := []rune(recap); len(runes) > recapCharLimit {
		recap = string(runes[:recapCharLimit-1]) + "…"
	}
	return recap
}
