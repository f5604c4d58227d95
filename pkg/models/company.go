package models

import "time"

// CompanyProfile is the discovered public profile of an employer.
type CompanyProfile struct {
	Website  string   `json:"website,omitempty"`
	Industry string   `json:"industry,omitempty"`
	Size     string   `json:"size,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Culture  []string `json:"culture,omitempty"`
}

// DiscoveredJob is one job listing found while researching the company.
type DiscoveredJob struct {
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
}

// CompanyContext is the cached research document used to ground suggest,
// refine and copilot prompts. Keyed by a normalized company name.
type CompanyContext struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	NameConfirmed bool            `json:"nameConfirmed"`
	Profile       CompanyProfile  `json:"profile"`
	Jobs          []DiscoveredJob `json:"jobs,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Model         string          `json:"model,omitempty"`
	SchemaVersion string          `json:"schemaVersion"`
	FetchedAt     time.Time       `json:"fetchedAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
