package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/IntelWatch/internal/brief"
)

// briefSummary is the list shape: the rendered HTML stays out of list
// responses, it is fetched per brief.
type briefSummary struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	EventCount int    `json:"event_count"`
	CreatedAt  string `json:"created_at"`
}

func (s *Server) listBriefs(c *gin.Context) {
	briefs, err := s.db.GetBriefs(limitQuery(c, 50))
	if err != nil {
		s.fail(c, "loading briefs", err)
		return
	}

	summaries := make([]briefSummary, 0, len(briefs))
	for _, b := range briefs {
		summaries = append(summaries, briefSummary{
			ID:         b.ID,
			RunID:      b.RunID,
			EventCount: len(b.Events),
			CreatedAt:  b.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"briefs": summaries})
}

func (s *Server) latestBrief(c *gin.Context) {
	b, err := s.db.GetLatestBrief()
	if err != nil {
		s.fail(c, "loading latest brief", err)
		return
	}
	if b == nil {
		c.JSON(http.StatusOK, gin.H{"brief": nil, "message": "No briefs available yet"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) getBrief(c *gin.Context) {
	b, err := s.db.GetBrief(c.Param("id"))
	if err != nil {
		s.fail(c, "loading brief", err)
		return
	}
	if b == nil {
		notFound(c, "brief")
		return
	}
	c.JSON(http.StatusOK, b)
}

// briefDocument serves the paginated export of a stored brief.
func (s *Server) briefDocument(c *gin.Context) {
	b, err := s.db.GetBrief(c.Param("id"))
	if err != nil {
		s.fail(c, "loading brief", err)
		return
	}
	if b == nil {
		notFound(c, "brief")
		return
	}

	doc, err := brief.Document(b)
	if err != nil {
		s.fail(c, "rendering brief document", err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="intel-brief-`+b.ID[:8]+`.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}
