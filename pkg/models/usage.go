package models

import "time"

// UsageEntry is one append-only row in the usage log. Consumers tolerate
// out-of-order timestamps; the log is observability, not a source of truth.
type UsageEntry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	JobID            string    `json:"jobId,omitempty"`
	TaskType         string    `json:"taskType"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	InputTokens      int       `json:"inputTokens,omitempty"`
	OutputTokens     int       `json:"outputTokens,omitempty"`
	ThoughtsTokens   int       `json:"thoughtsTokens,omitempty"`
	CachedTokens     int       `json:"cachedTokens,omitempty"`
	ImageCount       int       `json:"imageCount,omitempty"`
	VideoSeconds     float64   `json:"videoSeconds,omitempty"`
	EstimatedCostUsd float64   `json:"estimatedCostUsd,omitempty"`
	CreditsUsed      int64     `json:"creditsUsed"`
	Status           string    `json:"status"`
	ErrorReason      string    `json:"errorReason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// CreditBalance is the per-user credit account. Invariants at every
// persisted state: Balance ≥ 0, Reserved ≥ 0, Balance − Reserved ≥ 0.
type CreditBalance struct {
	Balance      int64            `json:"balance"`
	Reserved     int64            `json:"reserved"`
	LifetimeUsed int64            `json:"lifetimeUsed"`
	Reservations map[string]int64 `json:"reservations,omitempty"`
}

// Available is the spendable credit headroom.
func (b *CreditBalance) Available() int64 {
	return b.Balance - b.Reserved
}

// User is the account document; the credit balance lives inline so ledger
// operations are a single-document CAS.
type User struct {
	ID            string        `json:"id"`
	Email         string        `json:"email,omitempty"`
	DisplayName   string        `json:"displayName,omitempty"`
	Credits       CreditBalance `json:"credits"`
	SchemaVersion string        `json:"schemaVersion"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
