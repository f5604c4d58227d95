package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

type createJobRequest struct {
	Fields map[string]any `json:"fields"`
}

type patchJobFieldsRequest struct {
	Deltas map[string]any `json:"deltas" binding:"required"`
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	var intake models.JobIntake
	if err := services.MergeIntakeDeltas(&intake, req.Fields); err != nil {
		respondServiceError(c, err)
		return
	}
	job, err := s.jobs.Create(c.Request.Context(), currentUser(c), intake)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jobView(job))
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.jobs.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	views := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.jobs.GetOwned(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobView(job))
}

func (s *Server) handlePatchJobFields(c *gin.Context) {
	var req patchJobFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	job, err := s.jobs.ApplyFieldDeltas(c.Request.Context(), currentUser(c), c.Param("id"), req.Deltas)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobView(job))
}

func (s *Server) handleArchiveJob(c *gin.Context) {
	job, err := s.jobs.Archive(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobView(job))
}

func jobView(job *models.Job) gin.H {
	return gin.H{
		"id":        job.ID,
		"status":    job.Status,
		"intake":    job.Intake,
		"state":     job.StateMachine,
		"archived":  job.Archived,
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	}
}
