package models

import "time"

// VideoStatus is the lifecycle state of a video item. Transitions are
// monotone along planned → generating → extending* → ready → approved →
// published, with failed and archived as terminal branches.
type VideoStatus string

const (
	VideoStatusPlanned    VideoStatus = "planned"
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusExtending  VideoStatus = "extending"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
	VideoStatusApproved   VideoStatus = "approved"
	VideoStatusPublished  VideoStatus = "published"
	VideoStatusArchived   VideoStatus = "archived"
)

// ShotPhase is the normalized storyboard phase.
type ShotPhase string

const (
	PhaseHook   ShotPhase = "hook"
	PhaseMiddle ShotPhase = "middle"
	PhaseCTA    ShotPhase = "cta"
)

// Shot is one storyboard beat.
type Shot struct {
	Phase           string  `json:"phase"`
	Visual          string  `json:"visual"`
	OnScreenText    string  `json:"onScreenText,omitempty"`
	VoiceOver       string  `json:"voiceOver,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// ComplianceFlag marks a potential policy issue in the planned video.
type ComplianceFlag struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message,omitempty"`
}

// ComplianceReport carries flags plus a manual QA checklist.
type ComplianceReport struct {
	Flags     []ComplianceFlag `json:"flags,omitempty"`
	Checklist []string         `json:"checklist,omitempty"`
}

// VideoCaption is the social caption attached to the rendered video.
type VideoCaption struct {
	Text     string   `json:"text"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// RenderStrategy selects single-clip or multi-extend rendering.
type RenderStrategy string

const (
	RenderStrategySingle      RenderStrategy = "single"
	RenderStrategyMultiExtend RenderStrategy = "multi_extend"
)

// RenderSegment is one planned clip duration.
type RenderSegment struct {
	Seconds float64 `json:"seconds"`
}

// RenderPlan segments the video into sequential clips.
type RenderPlan struct {
	Strategy RenderStrategy  `json:"strategy"`
	Segments []RenderSegment `json:"segments"`
}

// VideoManifest is the full production plan for one video.
type VideoManifest struct {
	Storyboard []Shot           `json:"storyboard"`
	Compliance ComplianceReport `json:"compliance"`
	Caption    VideoCaption     `json:"caption"`
	RenderPlan RenderPlan       `json:"renderPlan"`
}

// SegmentStatus is the render state of one segment.
type SegmentStatus string

const (
	SegmentStatusPending    SegmentStatus = "pending"
	SegmentStatusSubmitted  SegmentStatus = "submitted"
	SegmentStatusPredicting SegmentStatus = "predicting"
	SegmentStatusDone       SegmentStatus = "done"
	SegmentStatusFailed     SegmentStatus = "failed"
)

// SegmentTask tracks one submitted render segment.
type SegmentTask struct {
	Index       int           `json:"index"`
	Status      SegmentStatus `json:"status"`
	Seconds     float64       `json:"seconds"`
	OperationID string        `json:"operationId,omitempty"`
	VideoURL    string        `json:"videoUrl,omitempty"`
	ErrorReason string        `json:"errorReason,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	// ReservationID is the open credit hold for this segment.
	ReservationID string `json:"reservationId,omitempty"`
}

// RenderResult is the stitched final artifact.
type RenderResult struct {
	VideoURL string `json:"videoUrl"`
}

// RenderTask is the render controller's persisted state. NextSegmentIndex is
// the first segment not yet completed; submissions are strictly sequential.
type RenderTask struct {
	Segments         []SegmentTask `json:"segments,omitempty"`
	NextSegmentIndex int           `json:"nextSegmentIndex"`
	Result           *RenderResult `json:"result,omitempty"`
	FailureReason    string        `json:"failureReason,omitempty"`
	FailedSegment    *int          `json:"failedSegment,omitempty"`
}

// GenerationMetrics aggregates render cost accounting.
type GenerationMetrics struct {
	SecondsGenerated float64 `json:"secondsGenerated"`
	CostEstimateUsd  float64 `json:"costEstimateUsd"`
	SynthIDWatermark bool    `json:"synthIdWatermark,omitempty"`
}

// VideoItem owns its manifest and render task; it references the job and any
// published asset by id only.
type VideoItem struct {
	ID                string             `json:"id"`
	JobID             string             `json:"jobId"`
	ChannelID         string             `json:"channelId"`
	UserID            string             `json:"userId"`
	Status            VideoStatus        `json:"status"`
	ActiveManifest    *VideoManifest     `json:"activeManifest,omitempty"`
	RenderTask        *RenderTask        `json:"renderTask,omitempty"`
	GenerationMetrics *GenerationMetrics `json:"generationMetrics,omitempty"`
	Provider          string             `json:"provider,omitempty"`
	Model             string             `json:"model,omitempty"`
	SchemaVersion     string             `json:"schemaVersion"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}
