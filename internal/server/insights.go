package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/workflow"
)

func (s *Server) latestInsight(c *gin.Context) {
	insight, err := s.db.GetLatestInsight()
	if err != nil {
		s.fail(c, "loading latest insight", err)
		return
	}
	if insight == nil {
		c.JSON(http.StatusOK, gin.H{"insight": nil, "message": "No insights available yet"})
		return
	}
	c.JSON(http.StatusOK, insight)
}

func (s *Server) insightForRun(c *gin.Context) {
	insight, err := s.db.GetInsightForRun(c.Param("run_id"))
	if err != nil {
		s.fail(c, "loading insight", err)
		return
	}
	if insight == nil {
		notFound(c, "insight")
		return
	}
	c.JSON(http.StatusOK, insight)
}

func (s *Server) listActionItems(c *gin.Context) {
	items, err := s.db.GetActionItems(optionalQuery(c, "run_id"), optionalQuery(c, "status"))
	if err != nil {
		s.fail(c, "loading action items", err)
		return
	}
	if items == nil {
		items = []database.ActionItem{}
	}
	c.JSON(http.StatusOK, gin.H{"action_items": items})
}

type createActionItemRequest struct {
	Title        string  `json:"title" binding:"required"`
	Description  *string `json:"description"`
	Priority     string  `json:"priority"`
	AssignedTo   *string `json:"assigned_to"`
	AssignedRole *string `json:"assigned_role"`
	DueDate      *string `json:"due_date"`
	RunID        string  `json:"run_id"`
	Reasoning    *string `json:"reasoning"`
}

func (s *Server) createActionItem(c *gin.Context) {
	var req createActionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}

	item := &database.ActionItem{
		RunID:        req.RunID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		AssignedTo:   req.AssignedTo,
		AssignedRole: req.AssignedRole,
		DueDate:      req.DueDate,
		Reasoning:    req.Reasoning,
	}
	if err := s.db.InsertActionItem(item); err != nil {
		s.fail(c, "creating action item", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateActionItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateActionItemStatus(c *gin.Context) {
	var req updateActionItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	switch req.Status {
	case database.ActionPending, database.ActionInProgress, database.ActionCompleted:
	default:
		badRequest(c, "invalid status")
		return
	}

	ok, err := s.db.UpdateActionItemStatus(c.Param("id"), req.Status)
	if err != nil {
		s.fail(c, "updating action item", err)
		return
	}
	if !ok {
		notFound(c, "action item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
}

func (s *Server) listApprovals(c *gin.Context) {
	// Pending is the default view; status=all lists every state.
	var status *string
	if v := c.DefaultQuery("status", database.ApprovalPending); v != "" && v != "all" {
		status = &v
	}

	approvals, err := s.db.GetApprovals(status)
	if err != nil {
		s.fail(c, "loading approvals", err)
		return
	}
	if approvals == nil {
		approvals = []database.Approval{}
	}
	c.JSON(http.StatusOK, gin.H{"approvals": approvals})
}

type approveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

func (s *Server) approveAction(c *gin.Context) {
	var req approveRequest
	_ = c.ShouldBindJSON(&req)
	if req.ApprovedBy == "" {
		req.ApprovedBy = "user"
	}

	approval, err := s.approvals.Approve(c.Param("id"), req.ApprovedBy)
	if err != nil {
		s.approvalError(c, err, "approving action")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Action approved and executed",
		"action_type": approval.ActionType,
		"approval":    approval,
	})
}

func (s *Server) rejectAction(c *gin.Context) {
	approval, err := s.approvals.Reject(c.Param("id"))
	if err != nil {
		s.approvalError(c, err, "rejecting action")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Action rejected", "approval": approval})
}

func (s *Server) approvalError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		notFound(c, "approval")
	case errors.Is(err, workflow.ErrInvalidTransition):
		badRequest(c, "Approval already processed")
	default:
		s.fail(c, msg, err)
	}
}

func (s *Server) listTrends(c *gin.Context) {
	trends, err := s.db.GetTrendForecasts(optionalQuery(c, "run_id"), optionalQuery(c, "category"), limitQuery(c, 100))
	if err != nil {
		s.fail(c, "loading trends", err)
		return
	}
	if trends == nil {
		trends = []database.TrendForecast{}
	}
	c.JSON(http.StatusOK, gin.H{"trends": trends})
}

func (s *Server) listTeam(c *gin.Context) {
	members, err := s.db.GetTeamMembers()
	if err != nil {
		s.fail(c, "loading team", err)
		return
	}
	if members == nil {
		members = []database.TeamMember{}
	}
	c.JSON(http.StatusOK, gin.H{"team_members": members})
}

type addTeamMemberRequest struct {
	Name     string  `json:"name" binding:"required"`
	Title    *string `json:"title"`
	Email    *string `json:"email"`
	RoleType string  `json:"role_type"`
}

func (s *Server) addTeamMember(c *gin.Context) {
	var req addTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	if req.RoleType == "" {
		req.RoleType = "analyst"
	}

	member, err := s.db.InsertTeamMember(req.Name, req.Title, req.Email, req.RoleType)
	if err != nil {
		s.fail(c, "adding team member", err)
		return
	}
	s.logger.Info("team member added", zap.String("member_id", member.ID), zap.String("role", member.RoleType))
	c.JSON(http.StatusCreated, member)
}
