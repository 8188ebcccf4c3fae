// Package workflow applies human decisions to proposed actions and runs
// the side effect of an approved action exactly once.
package workflow

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

// ErrNotFound is returned when the referenced approval does not exist.
var ErrNotFound = errors.New("approval not found")

// ErrInvalidTransition is returned when an approval has already left the
// state the requested transition starts from.
var ErrInvalidTransition = errors.New("approval already resolved")

// Engine moves approvals through pending → approved → executed, or
// pending → rejected. Only an explicit Approve call triggers an action's
// side effect; nothing executes automatically.
type Engine struct {
	db     *database.DB
	logger *zap.Logger
}

func New(db *database.DB, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, logger: logger}
}

// Approve transitions a pending approval to approved, runs its action, and
// marks it executed. Returns the final approval record. A missing approval
// yields ErrNotFound; one that is not pending yields ErrInvalidTransition.
func (e *Engine) Approve(approvalID, approvedBy string) (*database.Approval, error) {
	ok, err := e.db.ApproveIfPending(approvalID, approvedBy)
	if err != nil {
		return nil, fmt.Errorf("approving %s: %w", approvalID, err)
	}
	if !ok {
		return nil, e.transitionError(approvalID)
	}

	approval, err := e.db.GetApproval(approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, ErrNotFound
	}

	if err := e.execute(approval); err != nil {
		return nil, fmt.Errorf("executing %s for approval %s: %w", approval.ActionType, approvalID, err)
	}

	if _, err := e.db.MarkExecuted(approvalID); err != nil {
		return nil, fmt.Errorf("marking approval %s executed: %w", approvalID, err)
	}

	e.logger.Info("approval executed",
		zap.String("approval_id", approvalID),
		zap.String("action_type", approval.ActionType),
		zap.String("approved_by", approvedBy))
	return e.db.GetApproval(approvalID)
}

// Reject transitions a pending approval to rejected. The rejection time is
// recorded and no side effect runs. Rejected approvals are terminal.
func (e *Engine) Reject(approvalID string) (*database.Approval, error) {
	ok, err := e.db.RejectIfPending(approvalID)
	if err != nil {
		return nil, fmt.Errorf("rejecting %s: %w", approvalID, err)
	}
	if !ok {
		return nil, e.transitionError(approvalID)
	}
	e.logger.Info("approval rejected", zap.String("approval_id", approvalID))
	return e.db.GetApproval(approvalID)
}

// transitionError distinguishes a missing approval from one already past
// pending.
func (e *Engine) transitionError(approvalID string) error {
	approval, err := e.db.GetApproval(approvalID)
	if err != nil {
		return err
	}
	if approval == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: status is %s", ErrInvalidTransition, approval.Status)
}

// execute dispatches on the action type. Types without an executor are
// accepted and logged so the approval still completes.
func (e *Engine) execute(approval *database.Approval) error {
	switch approval.ActionType {
	case "add_source":
		return e.addSource(approval)
	case "send_email":
		e.logger.Info("send_email action acknowledged",
			zap.String("approval_id", approval.ID))
	case "export_csv":
		e.logger.Info("export_csv action acknowledged",
			zap.String("approval_id", approval.ID))
	default:
		e.logger.Warn("no executor for action type, recording as executed",
			zap.String("approval_id", approval.ID),
			zap.String("action_type", approval.ActionType))
	}
	return nil
}

// addSource registers a new monitored source from the approval parameters.
func (e *Engine) addSource(approval *database.Approval) error {
	name := stringParam(approval.Parameters, "name")
	url := stringParam(approval.Parameters, "url")
	category := stringParam(approval.Parameters, "category")
	if name == "" || url == "" {
		return errors.New("add_source parameters missing name or url")
	}
	if category == "" {
		category = "other"
	}

	source, err := e.db.InsertSource(name, url, category)
	if err != nil {
		return fmt.Errorf("registering source: %w", err)
	}
	e.logger.Info("registered source from approval",
		zap.String("approval_id", approval.ID),
		zap.String("source_id", source.ID),
		zap.String("url", url))
	return nil
}

func stringParam(params map[string]any, key string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}
