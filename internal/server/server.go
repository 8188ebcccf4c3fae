// Package server exposes the JSON API: pipeline triggers, the read
// surface over runs, events, briefs, and insights, and the approval and
// schedule workflows.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/workflow"
)

// Trigger starts pipeline work for the HTTP surface. Satisfied by
// pipeline.Pipeline.
type Trigger interface {
	ExecuteRun(ctx context.Context, run *database.Run) (*database.Run, error)
}

// Server holds the API's collaborators and the gin engine.
type Server struct {
	db        *database.DB
	pipeline  Trigger
	approvals *workflow.Engine
	engine    *gin.Engine
	logger    *zap.Logger
}

// New wires the routes. The pipeline may be nil, which turns the trigger
// endpoint into a 503; everything else works read-only.
func New(db *database.DB, pipeline Trigger, approvals *workflow.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		db:        db,
		pipeline:  pipeline,
		approvals: approvals,
		engine:    engine,
		logger:    logger,
	}
	engine.Use(s.requestLogger())
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.health)
	api.GET("/stats", s.stats)

	api.GET("/sources", s.listSources)
	api.POST("/sources", s.createSource)
	api.PUT("/sources/:id", s.updateSource)
	api.DELETE("/sources/:id", s.deleteSource)
	api.POST("/sources/seed", s.seedSources)
	api.GET("/sources/health", s.sourcesHealth)

	api.POST("/runs/trigger", s.triggerRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/latest", s.latestRun)
	api.GET("/runs/:id", s.getRun)
	api.GET("/runs/:id/logs", s.runLogs)

	api.GET("/events", s.listEvents)

	api.GET("/briefs", s.listBriefs)
	api.GET("/briefs/latest", s.latestBrief)
	api.GET("/briefs/:id", s.getBrief)
	api.GET("/briefs/:id/document", s.briefDocument)

	api.GET("/insights/latest", s.latestInsight)
	api.GET("/insights/run/:run_id", s.insightForRun)

	api.GET("/action-items", s.listActionItems)
	api.POST("/action-items", s.createActionItem)
	api.PATCH("/action-items/:id/status", s.updateActionItemStatus)

	api.GET("/approvals", s.listApprovals)
	api.POST("/approvals/:id/approve", s.approveAction)
	api.POST("/approvals/:id/reject", s.rejectAction)

	api.GET("/trends", s.listTrends)

	api.GET("/team", s.listTeam)
	api.POST("/team", s.addTeamMember)

	api.GET("/schedules", s.listSchedules)
	api.POST("/schedules", s.createSchedule)
	api.PUT("/schedules/:id", s.updateSchedule)
	api.DELETE("/schedules/:id", s.deleteSchedule)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statsResponse struct {
	*database.Stats
	LatestRun *database.Run `json:"latest_run"`
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.fail(c, "loading stats", err)
		return
	}
	latest, err := s.db.GetLatestRun()
	if err != nil {
		s.fail(c, "loading latest run", err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{Stats: stats, LatestRun: latest})
}

// fail logs the cause server-side and answers with a generic message so
// internals never leak through the API.
func (s *Server) fail(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// limitQuery parses a ?limit= parameter with a fallback.
func limitQuery(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// optionalQuery returns a query parameter as a filter pointer, nil when
// absent or empty.
func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
