package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hirepilot/hirepilot/pkg/orchestrator"
)

type llmTaskRequest struct {
	TaskType string         `json:"taskType" binding:"required"`
	Context  map[string]any `json:"context"`
}

// handleLLMTask is the single task gateway endpoint. Every LLM-backed
// operation goes through here; the task type selects the handler.
func (s *Server) handleLLMTask(c *gin.Context) {
	var req llmTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.orch.Run(c.Request.Context(), &orchestrator.TaskRequest{
		UserID:   currentUser(c),
		TaskType: req.TaskType,
		Context:  req.Context,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, taskResponse(req.Context, result))
}

// taskResponse flattens the task payload into the response body alongside the
// envelope fields.
func taskResponse(reqCtx map[string]any, result *orchestrator.TaskResult) gin.H {
	body := gin.H{
		"taskType":    result.TaskType,
		"refreshed":   result.Refreshed,
		"updatedAt":   time.Now().UTC(),
		"creditsUsed": result.Credits,
	}
	if jobID, ok := reqCtx[orchestrator.CtxJobID].(string); ok && jobID != "" {
		body["jobId"] = jobID
	}
	for k, v := range result.Payload {
		body[k] = v
	}
	if result.Skipped {
		body["skipped"] = true
		body["skipReason"] = result.SkipReason
	}
	if result.Message != "" {
		body["message"] = result.Message
	}
	if len(result.Actions) > 0 {
		body["actions"] = result.Actions
	}
	if result.Failure != nil {
		body["failure"] = result.Failure
	}
	return body
}
