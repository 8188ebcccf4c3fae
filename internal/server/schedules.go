package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/schedule"
)

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.db.GetSchedules()
	if err != nil {
		s.fail(c, "loading schedules", err)
		return
	}
	if schedules == nil {
		schedules = []database.Schedule{}
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

type createScheduleRequest struct {
	Name     string   `json:"name" binding:"required"`
	CronExpr string   `json:"cron_expr" binding:"required"`
	EmailTo  []string `json:"email_to"`
	Enabled  *bool    `json:"enabled"`
}

func (s *Server) createSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and cron_expr are required")
		return
	}

	// Validation happens here, never in the polling loop.
	next, err := schedule.NextRun(req.CronExpr, time.Now().UTC())
	if err != nil {
		badRequest(c, "invalid cron expression")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	created, err := s.db.InsertSchedule(req.Name, req.CronExpr, req.EmailTo, enabled, database.FormatTime(next))
	if err != nil {
		s.fail(c, "creating schedule", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type updateScheduleRequest struct {
	Name     *string  `json:"name"`
	CronExpr *string  `json:"cron_expr"`
	EmailTo  []string `json:"email_to"`
	Enabled  *bool    `json:"enabled"`
}

func (s *Server) updateSchedule(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == nil && req.CronExpr == nil && req.EmailTo == nil && req.Enabled == nil {
		badRequest(c, "no update data provided")
		return
	}

	// A changed expression resets the next due time.
	var nextRunAt *string
	if req.CronExpr != nil {
		next, err := schedule.NextRun(*req.CronExpr, time.Now().UTC())
		if err != nil {
			badRequest(c, "invalid cron expression")
			return
		}
		formatted := database.FormatTime(next)
		nextRunAt = &formatted
	}

	ok, err := s.db.UpdateSchedule(c.Param("id"), req.Name, req.CronExpr, req.EmailTo, req.Enabled, nextRunAt)
	if err != nil {
		s.fail(c, "updating schedule", err)
		return
	}
	if !ok {
		notFound(c, "schedule")
		return
	}

	updated, err := s.db.GetSchedule(c.Param("id"))
	if err != nil {
		s.fail(c, "loading schedule", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	ok, err := s.db.DeleteSchedule(c.Param("id"))
	if err != nil {
		s.fail(c, "deleting schedule", err)
		return
	}
	if !ok {
		notFound(c, "schedule")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted"})
}
