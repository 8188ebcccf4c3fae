package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

// triggerRun creates the run record up front and executes the pipeline in
// the background, so the caller gets the run ID without waiting.
func (s *Server) triggerRun(c *gin.Context) {
	if s.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not configured"})
		return
	}

	run, err := s.db.CreateRun()
	if err != nil {
		s.fail(c, "creating run", err)
		return
	}

	go func() {
		if _, err := s.pipeline.ExecuteRun(context.Background(), run); err != nil {
			s.logger.Error("triggered run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": run.ID, "status": "started"})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.db.GetRuns(limitQuery(c, 50))
	if err != nil {
		s.fail(c, "loading runs", err)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) latestRun(c *gin.Context) {
	run, err := s.db.GetLatestRun()
	if err != nil {
		s.fail(c, "loading latest run", err)
		return
	}
	if run == nil {
		c.JSON(http.StatusOK, gin.H{"run": nil, "message": "No runs yet"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.db.GetRun(c.Param("id"))
	if err != nil {
		s.fail(c, "loading run", err)
		return
	}
	if run == nil {
		notFound(c, "run")
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) runLogs(c *gin.Context) {
	runID := c.Param("id")
	run, err := s.db.GetRun(runID)
	if err != nil {
		s.fail(c, "loading run", err)
		return
	}
	if run == nil {
		notFound(c, "run")
		return
	}

	logs, err := s.db.GetRunLogs(runID)
	if err != nil {
		s.fail(c, "loading run logs", err)
		return
	}
	if logs == nil {
		logs = []database.RunLog{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "logs": logs})
}

func (s *Server) listEvents(c *gin.Context) {
	var events []database.Event
	var err error
	if runID := c.Query("run_id"); runID != "" {
		events, err = s.db.GetEventsForRun(runID)
	} else {
		events, err = s.db.GetRecentEvents(limitQuery(c, 50))
	}
	if err != nil {
		s.fail(c, "loading events", err)
		return
	}
	if events == nil {
		events = []database.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
