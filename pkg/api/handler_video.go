package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
)

type bulkVideosRequest struct {
	JobID      string   `json:"jobId" binding:"required"`
	ChannelIDs []string `json:"channelIds" binding:"required"`
}

func (s *Server) handleListVideos(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing jobId query parameter"})
		return
	}
	items, err := s.videos.ListByJob(c.Request.Context(), currentUser(c), jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if items == nil {
		items = []*models.VideoItem{}
	}
	c.JSON(http.StatusOK, gin.H{"videos": items})
}

func (s *Server) handleGetVideo(c *gin.Context) {
	item, err := s.videos.GetOwned(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// handleApproveVideo moves a ready video to approved.
func (s *Server) handleApproveVideo(c *gin.Context) {
	s.transitionVideo(c, models.VideoStatusApproved)
}

// handlePublishVideo marks a ready or approved video published.
func (s *Server) handlePublishVideo(c *gin.Context) {
	s.transitionVideo(c, models.VideoStatusPublished)
}

func (s *Server) transitionVideo(c *gin.Context, to models.VideoStatus) {
	item, err := s.videos.GetOwned(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	updated, err := s.videos.Transition(c.Request.Context(), item.ID, to, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleBulkVideos plans one video per requested channel. Channels are
// processed independently; one channel's failure envelope does not stop the
// rest.
func (s *Server) handleBulkVideos(c *gin.Context) {
	var req bulkVideosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.ChannelIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelIds must not be empty"})
		return
	}

	userID := currentUser(c)
	results := make([]gin.H, 0, len(req.ChannelIDs))
	for _, channelID := range req.ChannelIDs {
		taskCtx := map[string]any{
			orchestrator.CtxJobID:     req.JobID,
			orchestrator.CtxChannelID: channelID,
		}
		result, err := s.orch.Run(c.Request.Context(), &orchestrator.TaskRequest{
			UserID:   userID,
			TaskType: models.TaskVideoCreateManifest,
			Context:  taskCtx,
		})
		if err != nil {
			// Ownership and gating errors apply to the whole batch.
			if !services.IsValidationError(err) {
				respondServiceError(c, err)
				return
			}
			results = append(results, gin.H{"channelId": channelID, "error": err.Error()})
			continue
		}
		entry := taskResponse(taskCtx, result)
		entry["channelId"] = channelID
		results = append(results, entry)
	}
	c.JSON(http.StatusOK, gin.H{"jobId": req.JobID, "results": results})
}
