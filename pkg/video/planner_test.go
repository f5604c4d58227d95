package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepilot/hirepilot/pkg/models"
)

func shot(phase, visual string, seconds float64) models.Shot {
	return models.Shot{Phase: phase, Visual: visual, DurationSeconds: seconds}
}

func TestBuildRenderPlanSingle(t *testing.T) {
	plan := BuildRenderPlan([]models.Shot{
		shot("hook", "a", 3),
		shot("cta", "b", 4),
	}, 120)

	assert.Equal(t, models.RenderStrategySingle, plan.Strategy)
	require.Len(t, plan.Segments, 1)
	assert.Equal(t, 7.0, plan.Segments[0].Seconds)
}

func TestBuildRenderPlanMultiExtend(t *testing.T) {
	plan := BuildRenderPlan([]models.Shot{
		shot("hook", "a", 8),
		shot("middle", "b", 8),
		shot("cta", "c", 4),
	}, 120)

	assert.Equal(t, models.RenderStrategyMultiExtend, plan.Strategy)
	require.Len(t, plan.Segments, 3)
	assert.Equal(t, 8.0, plan.Segments[0].Seconds)
	assert.Equal(t, 8.0, plan.Segments[1].Seconds)
	assert.Equal(t, 4.0, plan.Segments[2].Seconds)
}

func TestBuildRenderPlanDefaultsAndClamp(t *testing.T) {
	// Shots without a duration count as 5 seconds.
	plan := BuildRenderPlan([]models.Shot{shot("hook", "a", 0)}, 120)
	require.Len(t, plan.Segments, 1)
	assert.Equal(t, 5.0, plan.Segments[0].Seconds)

	// Total is clamped to the configured maximum.
	long := []models.Shot{shot("hook", "a", 90), shot("cta", "b", 90)}
	plan = BuildRenderPlan(long, 16)
	total := 0.0
	for _, seg := range plan.Segments {
		total += seg.Seconds
	}
	assert.Equal(t, 16.0, total)
}

func TestAssignShotsPhasePlacement(t *testing.T) {
	storyboard := []models.Shot{
		shot("hook", "h1", 2),
		shot("middle", "m1", 2),
		shot("middle", "m2", 2),
		shot("middle", "m3", 2),
		shot("cta", "c1", 2),
	}
	out := AssignShots(storyboard, 3)
	require.Len(t, out, 3)

	assert.Equal(t, "h1", out[0][0].Visual, "hooks open the first segment")
	assert.Equal(t, "c1", out[2][0].Visual, "CTAs land in the last segment")

	// The single interior slot takes all middles.
	visuals := make([]string, 0, len(out[1]))
	for _, s := range out[1] {
		visuals = append(visuals, s.Visual)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, visuals)
}

func TestAssignShotsRemainderGoesEarlier(t *testing.T) {
	storyboard := []models.Shot{
		shot("middle", "m1", 2),
		shot("middle", "m2", 2),
		shot("middle", "m3", 2),
	}
	// No hooks or CTAs: both edge slots are eligible, 3 middles over 2 slots.
	out := AssignShots(storyboard, 2)
	assert.Len(t, out[0], 2)
	assert.Len(t, out[1], 1)
}

func TestAssignShotsSingleSegment(t *testing.T) {
	storyboard := []models.Shot{shot("hook", "h", 2), shot("cta", "c", 2)}
	out := AssignShots(storyboard, 1)
	require.Len(t, out, 1)
	assert.Len(t, out[0], 2)
}

func TestNormalizePhase(t *testing.T) {
	tests := []struct {
		in   string
		want models.ShotPhase
	}{
		{"hook", models.PhaseHook},
		{"Intro", models.PhaseHook},
		{"OPENING", models.PhaseHook},
		{"attention", models.PhaseHook},
		{"cta", models.PhaseCTA},
		{"Call To Action", models.PhaseCTA},
		{"closing", models.PhaseCTA},
		{"middle", models.PhaseMiddle},
		{"body", models.PhaseMiddle},
		{"", models.PhaseMiddle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhase(tt.in), tt.in)
	}
}

func TestSegmentPrompt(t *testing.T) {
	prior := []models.Shot{shot("hook", "office exterior at dawn", 3)}
	shots := []models.Shot{
		{Phase: "middle", Visual: "engineer at desk", OnScreenText: "We ship weekly", VoiceOver: "Join a team that ships."},
	}

	prompt := SegmentPrompt(prior, shots)
	assert.True(t, strings.HasPrefix(prompt, "Continue this video. So far: office exterior at dawn"))
	assert.Contains(t, prompt, "1. [middle] engineer at desk")
	assert.Contains(t, prompt, "text overlay: We ship weekly")
	assert.Contains(t, prompt, "VO: Join a team that ships.")

	first := SegmentPrompt(nil, shots)
	assert.False(t, strings.Contains(first, "Continue this video"))
}

func TestRecapLimits(t *testing.T) {
	long := strings.Repeat("Ä", 200)
	recap := Recap([]models.Shot{{Visual: long}})
	assert.LessOrEqual(t, len([]rune(recap)), 150)
	assert.True(t, strings.HasSuffix(recap, "…"))

	many := []models.Shot{
		{Visual: "a"}, {Visual: "b"}, {Visual: "c"}, {Visual: "d"},
	}
	assert.Equal(t, "a; b; c", Recap(many), "at most three visuals")
	assert.Equal(t, "", Recap(nil))
}
