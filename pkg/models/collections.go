// Package models holds the persisted document types and the task vocabulary.
// Documents reference each other by id only; there are no in-memory pointer
// graphs across collections.
package models

// SchemaVersion is stamped on every persisted document.
const SchemaVersion = "1"

// Collection names of the document store.
const (
	CollectionJobs        = "jobs"
	CollectionSuggestions = "jobSuggestions"
	CollectionRefinements = "jobRefinements"
	CollectionChannelRecs = "jobChannelRecommendations"
	CollectionAssets      = "jobAssets"
	CollectionChats       = "wizardCopilotChats"
	CollectionVideos      = "videos"
	CollectionUsers       = "users"
	CollectionCompanies   = "companies"
	CollectionUsageLog    = "usageLog"
)
