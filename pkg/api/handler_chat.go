package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleChatHistory returns the stored copilot conversation for a job the
// caller owns.
func (s *Server) handleChatHistory(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing jobId query parameter"})
		return
	}
	if _, err := s.jobs.GetOwned(c.Request.Context(), currentUser(c), jobID); err != nil {
		respondServiceError(c, err)
		return
	}
	doc, err := s.chats.History(c.Request.Context(), jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
