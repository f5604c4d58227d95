// Package api exposes the HTTP surface: the single task gateway endpoint,
// job and video CRUD, the copilot chat history, and credit balance reads.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/services"
	"github.com/hirepilot/hirepilot/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP API server.
type Server struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	jobs   *services.JobService
	chats  *services.ChatService
	videos *services.VideoService
	ledger *credits.Ledger
	router *gin.Engine
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, jobs *services.JobService, chats *services.ChatService, videos *services.VideoService, ledger *credits.Ledger) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		jobs:   jobs,
		chats:  chats,
		videos: videos,
		ledger: ledger,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	r.GET("/healthz", s.handleHealth)

	authed := r.Group("/api", bearerAuth(s.cfg.AuthTokens))
	authed.POST("/llm", s.handleLLMTask)

	authed.POST("/jobs", s.handleCreateJob)
	authed.GET("/jobs", s.handleListJobs)
	authed.GET("/jobs/:id", s.handleGetJob)
	authed.PATCH("/jobs/:id/fields", s.handlePatchJobFields)
	authed.POST("/jobs/:id/archive", s.handleArchiveJob)

	authed.GET("/videos", s.handleListVideos)
	authed.GET("/videos/:id", s.handleGetVideo)
	authed.POST("/videos/:id/approve", s.handleApproveVideo)
	authed.POST("/videos/:id/publish", s.handlePublishVideo)
	authed.POST("/videos/bulk", s.handleBulkVideos)

	authed.GET("/copilot/chat", s.handleChatHistory)
	authed.GET("/credits", s.handleCreditBalance)

	return r
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.HTTPPort,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "version", version.Full())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.Full(),
	})
}
