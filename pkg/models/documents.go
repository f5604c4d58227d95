package models

import "time"

// Failure is the envelope persisted when a task run fails. It sits next to
// the previous successful payload, never replacing it.
type Failure struct {
	Reason     string    `json:"reason"`
	Error      string    `json:"error,omitempty"`
	RawPreview string    `json:"rawPreview,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Candidate is one proposed value for a job field.
type Candidate struct {
	Proposal   string  `json:"proposal"`
	Rationale  string  `json:"rationale,omitempty"`
	Confidence float64 `json:"confidence"`
}

// SuggestionDoc holds the per-job field suggestions, one document per job.
// Fingerprint records the required-intake hash at the last success; a changed
// intake invalidates the cache.
type SuggestionDoc struct {
	JobID         string               `json:"jobId"`
	Candidates    map[string]Candidate `json:"candidates,omitempty"`
	Fingerprint   string               `json:"fingerprint,omitempty"`
	Provider      string               `json:"provider,omitempty"`
	Model         string               `json:"model,omitempty"`
	LastFailure   *Failure             `json:"lastFailure,omitempty"`
	SchemaVersion string               `json:"schemaVersion"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// RefinementDoc is the polished posting for a job.
type RefinementDoc struct {
	JobID         string    `json:"jobId"`
	RefinedJob    JobIntake `json:"refinedJob"`
	Summary       string    `json:"summary,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	LastFailure   *Failure  `json:"lastFailure,omitempty"`
	SchemaVersion string    `json:"schemaVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ChannelRecommendation is one recommended distribution channel.
type ChannelRecommendation struct {
	Channel     string  `json:"channel"`
	Reason      string  `json:"reason,omitempty"`
	ExpectedCpa float64 `json:"expectedCpa,omitempty"`
}

// ChannelDoc holds the per-job channel recommendations.
type ChannelDoc struct {
	JobID         string                  `json:"jobId"`
	Channels      []ChannelRecommendation `json:"channels,omitempty"`
	Provider      string                  `json:"provider,omitempty"`
	Model         string                  `json:"model,omitempty"`
	LastFailure   *Failure                `json:"lastFailure,omitempty"`
	SchemaVersion string                  `json:"schemaVersion"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// AssetRecord is one generated creative, keyed by AssetKey.
type AssetRecord struct {
	ID            string    `json:"id"`
	JobID         string    `json:"jobId"`
	ChannelID     string    `json:"channelId"`
	FormatID      string    `json:"formatId"`
	Headline      string    `json:"headline,omitempty"`
	Body          string    `json:"body,omitempty"`
	CallToAction  string    `json:"callToAction,omitempty"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	SchemaVersion string    `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AssetKey builds the deterministic asset document id, so regenerating a
// creative overwrites its predecessor instead of accumulating copies.
func AssetKey(jobID, formatID, channelID string) string {
	return jobID + ":" + formatID + ":" + channelID
}
