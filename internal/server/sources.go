package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.fail(c, "loading sources", err)
		return
	}
	if sources == nil {
		sources = []database.Source{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

type createSourceRequest struct {
	Name     string `json:"name" binding:"required"`
	URL      string `json:"url" binding:"required"`
	Category string `json:"category"`
}

func (s *Server) createSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and url are required")
		return
	}
	if req.Category == "" {
		req.Category = "other"
	}

	source, err := s.db.InsertSource(req.Name, req.URL, req.Category)
	if err != nil {
		s.fail(c, "creating source", err)
		return
	}
	s.logger.Info("source created", zap.String("source_id", source.ID), zap.String("url", source.URL))
	c.JSON(http.StatusCreated, source)
}

type updateSourceRequest struct {
	Name     *string `json:"name"`
	URL      *string `json:"url"`
	Category *string `json:"category"`
	Active   *bool   `json:"active"`
}

func (s *Server) updateSource(c *gin.Context) {
	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == nil && req.URL == nil && req.Category == nil && req.Active == nil {
		badRequest(c, "no update data provided")
		return
	}

	ok, err := s.db.UpdateSource(c.Param("id"), req.Name, req.URL, req.Category, req.Active)
	if err != nil {
		s.fail(c, "updating source", err)
		return
	}
	if !ok {
		notFound(c, "source")
		return
	}

	updated, err := s.db.GetSource(c.Param("id"))
	if err != nil {
		s.fail(c, "loading source", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteSource(c *gin.Context) {
	ok, err := s.db.DeleteSource(c.Param("id"))
	if err != nil {
		s.fail(c, "deleting source", err)
		return
	}
	if !ok {
		notFound(c, "source")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Source deleted"})
}

func (s *Server) seedSources(c *gin.Context) {
	count, err := s.db.SeedDefaultSources()
	if err != nil {
		s.fail(c, "seeding sources", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sources seeded", "count": count})
}

func (s *Server) sourcesHealth(c *gin.Context) {
	summaries, err := s.db.GetSourceHealthSummaries()
	if err != nil {
		s.fail(c, "loading source health", err)
		return
	}
	if summaries == nil {
		summaries = []database.SourceHealthSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"health": summaries})
}
