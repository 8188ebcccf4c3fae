package database

import (
	"database/sql"

	"github.com/google/uuid"
)

// InsertApproval stores a proposed action in the pending state. The ID and
// creation time are assigned here and written back to a.
func (db *DB) InsertApproval(a *Approval) error {
	a.ID = uuid.NewString()
	a.CreatedAt = nowUTC()
	a.Status = ApprovalPending

	params, err := jsonColumn(a.Parameters)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO approvals (id, run_id, action_type, title, description, reasoning,
			confidence, parameters, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.ActionType, a.Title, a.Description, a.Reasoning,
		a.Confidence, params, a.Status, a.CreatedAt,
	)
	return err
}

// GetApproval returns a single approval by ID, or nil if missing.
func (db *DB) GetApproval(approvalID string) (*Approval, error) {
	row := db.conn.QueryRow(approvalSelect+" WHERE id = ?", approvalID)
	a, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetApprovals lists approvals, optionally filtered by status.
func (db *DB) GetApprovals(status *string) ([]Approval, error) {
	query := approvalSelect
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []Approval
	for rows.Next() {
		var a Approval
		var params *string
		if err := rows.Scan(&a.ID, &a.RunID, &a.ActionType, &a.Title, &a.Description,
			&a.Reasoning, &a.Confidence, &params, &a.Status, &a.CreatedAt,
			&a.ApprovedAt, &a.ExecutedAt, &a.ApprovedBy); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(params, &a.Parameters); err != nil {
			return nil, err
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// ApproveIfPending transitions pending → approved, recording who approved
// and when. The WHERE clause makes the transition atomic: false means the
// approval was missing or not pending.
func (db *DB) ApproveIfPending(approvalID, approvedBy string) (bool, error) {
	result, err := db.conn.Exec(
		`UPDATE approvals SET status = ?, approved_at = ?, approved_by = ?
		WHERE id = ? AND status = ?`,
		ApprovalApproved, nowUTC(), approvedBy, approvalID, ApprovalPending,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkExecuted transitions approved → executed after the side effect ran.
func (db *DB) MarkExecuted(approvalID string) (bool, error) {
	result, err := db.conn.Exec(
		`UPDATE approvals SET status = ?, executed_at = ? WHERE id = ? AND status = ?`,
		ApprovalExecuted, nowUTC(), approvalID, ApprovalApproved,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// RejectIfPending transitions pending → rejected. The rejection time is
// recorded in approved_at.
func (db *DB) RejectIfPending(approvalID string) (bool, error) {
	result, err := db.conn.Exec(
		`UPDATE approvals SET status = ?, approved_at = ? WHERE id = ? AND status = ?`,
		ApprovalRejected, nowUTC(), approvalID, ApprovalPending,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

const approvalSelect = `SELECT id, run_id, action_type, title, description, reasoning,
	confidence, parameters, status, created_at, approved_at, executed_at, approved_by
	FROM approvals`

func scanApproval(row *sql.Row) (*Approval, error) {
	var a Approval
	var params *string
	err := row.Scan(&a.ID, &a.RunID, &a.ActionType, &a.Title, &a.Description,
		&a.Reasoning, &a.Confidence, &params, &a.Status, &a.CreatedAt,
		&a.ApprovedAt, &a.ExecutedAt, &a.ApprovedBy)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(params, &a.Parameters); err != nil {
		return nil, err
	}
	return &a, nil
}
