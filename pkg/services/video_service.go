package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// videoTransitions is the allowed status DAG. Approve and publish only move
// forward; failed items can retry into generating or replan into planned.
var videoTransitions = map[models.VideoStatus][]models.VideoStatus{
	models.VideoStatusPlanned:    {models.VideoStatusGenerating, models.VideoStatusArchived},
	models.VideoStatusGenerating: {models.VideoStatusExtending, models.VideoStatusReady, models.VideoStatusFailed, models.VideoStatusArchived},
	models.VideoStatusExtending:  {models.VideoStatusExtending, models.VideoStatusReady, models.VideoStatusFailed, models.VideoStatusArchived},
	models.VideoStatusReady:      {models.VideoStatusApproved, models.VideoStatusPublished, models.VideoStatusPlanned, models.VideoStatusArchived},
	models.VideoStatusFailed:     {models.VideoStatusGenerating, models.VideoStatusPlanned, models.VideoStatusArchived},
	models.VideoStatusApproved:   {models.VideoStatusPublished, models.VideoStatusPlanned, models.VideoStatusArchived},
	models.VideoStatusPublished:  {models.VideoStatusArchived},
	models.VideoStatusArchived:   {},
}

// CanTransition reports whether the status move is allowed.
func CanTransition(from, to models.VideoStatus) bool {
	for _, next := range videoTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VideoService owns video item persistence and the status state machine.
type VideoService struct {
	store docstore.Store
}

// NewVideoService creates a video service over the given store.
func NewVideoService(store docstore.Store) *VideoService {
	return &VideoService{store: store}
}

// Create persists a new planned video item for a job and channel.
func (s *VideoService) Create(ctx context.Context, userID, jobID, channelID string) (*models.VideoItem, error) {
	now := time.Now().UTC()
	item := &models.VideoItem{
		ID:            uuid.NewString(),
		JobID:         jobID,
		ChannelID:     channelID,
		UserID:        userID,
		Status:        models.VideoStatusPlanned,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Save(ctx, models.CollectionVideos, item.ID, item); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return item, nil
}

// Get loads a video item by id.
func (s *VideoService) Get(ctx context.Context, videoID string) (*models.VideoItem, error) {
	item, err := docstore.GetTyped[models.VideoItem](ctx, s.store, models.CollectionVideos, videoID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return item, nil
}

// GetOwned loads a video item and enforces ownership.
func (s *VideoService) GetOwned(ctx context.Context, userID, videoID string) (*models.VideoItem, error) {
	item, err := s.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrForbidden
	}
	return item, nil
}

// ListByJob returns the user's video items for one job.
func (s *VideoService) ListByJob(ctx context.Context, userID, jobID string) ([]*models.VideoItem, error) {
	raws, err := s.store.List(ctx, models.CollectionVideos)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	var out []*models.VideoItem
	for _, raw := range raws {
		var item models.VideoItem
		if err := json.Unmarshal(raw.Data, &item); err != nil {
			return nil, fmt.Errorf("decode video %s: %w", raw.ID, err)
		}
		if item.UserID == userID && item.JobID == jobID {
			v := item
			out = append(out, &v)
		}
	}
	return out, nil
}

// Save persists a mutated item, keeping updatedAt monotone.
func (s *VideoService) Save(ctx context.Context, item *models.VideoItem) error {
	now := time.Now().UTC()
	if now.Before(item.UpdatedAt) {
		now = item.UpdatedAt
	}
	item.UpdatedAt = now
	if err := s.store.Save(ctx, models.CollectionVideos, item.ID, item); err != nil {
		return fmt.Errorf("save video %s: %w", item.ID, err)
	}
	return nil
}

// Mutate applies an atomic read-modify-write without changing status.
func (s *VideoService) Mutate(ctx context.Context, videoID string, mutate func(item *models.VideoItem)) (*models.VideoItem, error) {
	var updated models.VideoItem
	err := docstore.UpdateTyped(ctx, s.store, models.CollectionVideos, videoID,
		func(item *models.VideoItem, exists bool) error {
			if !exists {
				return ErrNotFound
			}
			mutate(item)
			now := time.Now().UTC()
			if now.After(item.UpdatedAt) {
				item.UpdatedAt = now
			}
			updated = *item
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Transition moves the item to a new status or fails with
// ErrInvalidTransition. The move and the write are atomic on the document.
func (s *VideoService) Transition(ctx context.Context, videoID string, to models.VideoStatus, mutate func(item *models.VideoItem)) (*models.VideoItem, error) {
	var updated models.VideoItem
	err := docstore.UpdateTyped(ctx, s.store, models.CollectionVideos, videoID,
		func(item *models.VideoItem, exists bool) error {
			if !exists {
				return ErrNotFound
			}
			if !CanTransition(item.Status, to) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to)
			}
			item.Status = to
			if mutate != nil {
				mutate(item)
			}
			now := time.Now().UTC()
			if now.After(item.UpdatedAt) {
				item.UpdatedAt = now
			}
			updated = *item
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
