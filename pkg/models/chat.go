package models

import "time"

// ChatRole is the author role of a copilot chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
	ChatRoleSystem    ChatRole = "system"
)

// Chat retention bounds: stored history is capped, and only a trailing
// window is fed to the agent each turn.
const (
	ChatRetentionLimit = 20
	ChatWindowSize     = 8
)

// ChatMessage is one entry in a job's copilot conversation.
type ChatMessage struct {
	ID        string         `json:"id"`
	Role      ChatRole       `json:"role"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ChatDoc is the persisted conversation for one job, newest message last.
type ChatDoc struct {
	JobID         string        `json:"jobId"`
	Messages      []ChatMessage `json:"messages,omitempty"`
	SchemaVersion string        `json:"schemaVersion"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Window returns the last n messages.
func (c *ChatDoc) Window(n int) []ChatMessage {
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Trim drops the oldest messages beyond the retention limit.
func (c *ChatDoc) Trim(limit int) {
	if len(c.Messages) > limit {
		c.Messages = c.Messages[len(c.Messages)-limit:]
	}
}
