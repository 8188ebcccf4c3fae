package database

import (
	"github.com/google/uuid"
)

// InsertActionItem stores a task. The ID and creation time are assigned
// here and written back to a.
func (db *DB) InsertActionItem(a *ActionItem) error {
	a.ID = uuid.NewString()
	a.CreatedAt = nowUTC()
	if a.Status == "" {
		a.Status = ActionPending
	}
	if a.Priority == "" {
		a.Priority = "P2"
	}

	related, err := jsonColumn(a.RelatedEvents)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO action_items (id, run_id, title, description, priority, assigned_to,
			assigned_role, due_date, status, reasoning, related_events, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.Title, a.Description, a.Priority, a.AssignedTo,
		a.AssignedRole, a.DueDate, a.Status, a.Reasoning, related, a.CreatedAt, a.CompletedAt,
	)
	return err
}

// GetActionItems lists tasks, optionally filtered by run and status.
func (db *DB) GetActionItems(runID, status *string) ([]ActionItem, error) {
	query := `SELECT id, run_id, title, description, priority, assigned_to, assigned_role,
		due_date, status, reasoning, related_events, created_at, completed_at FROM action_items`
	var conds []string
	var args []any
	if runID != nil {
		conds = append(conds, "run_id = ?")
		args = append(args, *runID)
	}
	if status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *status)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ActionItem
	for rows.Next() {
		var a ActionItem
		var related *string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Title, &a.Description, &a.Priority,
			&a.AssignedTo, &a.AssignedRole, &a.DueDate, &a.Status, &a.Reasoning,
			&related, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(related, &a.RelatedEvents); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// UpdateActionItemStatus moves a task to a new status, stamping
// completed_at when it reaches completed. Returns false when the task does
// not exist.
func (db *DB) UpdateActionItemStatus(itemID, status string) (bool, error) {
	var completedAt *string
	if status == ActionCompleted {
		now := nowUTC()
		completedAt = &now
	}
	result, err := db.conn.Exec(
		"UPDATE action_items SET status = ?, completed_at = ? WHERE id = ?",
		status, completedAt, itemID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
