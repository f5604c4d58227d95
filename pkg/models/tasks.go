package models

// Task type vocabulary. Core tasks map one-to-one onto provider calls;
// orchestrator tasks wrap multiple core tasks.
const (
	TaskSuggest          = "suggest"
	TaskRefine           = "refine"
	TaskChannels         = "channels"
	TaskCopilotAgent     = "copilot_agent"
	TaskAssetMaster      = "asset_master"
	TaskAssetChannel     = "asset_channel_batch"
	TaskAssetAdapt       = "asset_adapt"
	TaskVideoStoryboard  = "video_storyboard"
	TaskVideoCaption     = "video_caption"
	TaskVideoCompliance  = "video_compliance"
	TaskCompanyIntel     = "company_intel"
	TaskImagePrompt      = "image_prompt_generation"
	TaskImageGeneration  = "image_generation"
	TaskImageCaption     = "image_caption"

	TaskGenerateCampaignAssets = "generate_campaign_assets"
	TaskHeroImage              = "hero_image"
	TaskVideoCreateManifest    = "video_create_manifest"
	TaskVideoRegenerate        = "video_regenerate"
	TaskVideoCaptionUpdate     = "video_caption_update"
	TaskVideoRender            = "video_render"

	// TaskVideoGeneration is server-internal, used only for render cost rows.
	TaskVideoGeneration = "video_generation"
)

// taskLogAliases renames a few task types in usage rows for historical
// continuity with the analytics schema.
var taskLogAliases = map[string]string{
	TaskSuggest: "suggestions",
	TaskRefine:  "refinement",
}

// TaskLogName returns the usage-log name for a task type.
func TaskLogName(taskType string) string {
	if alias, ok := taskLogAliases[taskType]; ok {
		return alias
	}
	return taskType
}
