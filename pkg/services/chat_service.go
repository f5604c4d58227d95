package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// ChatService manages the per-job copilot conversation. Appends are
// last-write-wins by design; retention is enforced on every write.
type ChatService struct {
	store docstore.Store
}

// NewChatService creates a chat service over the given store.
func NewChatService(store docstore.Store) *ChatService {
	return &ChatService{store: store}
}

// History returns the stored conversation (capped at the retention limit).
// A job without a chat yields an empty document, not an error.
func (s *ChatService) History(ctx context.Context, jobID string) (*models.ChatDoc, error) {
	doc, err := docstore.GetTyped[models.ChatDoc](ctx, s.store, models.CollectionChats, jobID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &models.ChatDoc{JobID: jobID, SchemaVersion: models.SchemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", jobID, err)
	}
	return doc, nil
}

// Append adds messages to the conversation and trims to the retention limit.
func (s *ChatService) Append(ctx context.Context, jobID string, msgs ...models.ChatMessage) (*models.ChatDoc, error) {
	doc, err := s.History(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.NewString()
		}
		if msgs[i].CreatedAt.IsZero() {
			msgs[i].CreatedAt = now
		}
	}
	doc.Messages = append(doc.Messages, msgs...)
	doc.Trim(models.ChatRetentionLimit)
	doc.SchemaVersion = models.SchemaVersion
	doc.UpdatedAt = now
	if err := s.store.Save(ctx, models.CollectionChats, jobID, doc); err != nil {
		return nil, fmt.Errorf("save chat %s: %w", jobID, err)
	}
	return doc, nil
}
