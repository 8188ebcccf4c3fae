package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InsertSchedule creates a recurring run trigger. The caller validates the
// cron expression and supplies the first due time.
func (db *DB) InsertSchedule(name, cronExpr string, emailTo []string, enabled bool, nextRunAt string) (*Schedule, error) {
	if emailTo == nil {
		emailTo = []string{}
	}
	s := &Schedule{
		ID:        uuid.NewString(),
		Name:      name,
		CronExpr:  cronExpr,
		EmailTo:   emailTo,
		Enabled:   enabled,
		NextRunAt: &nextRunAt,
		CreatedAt: nowUTC(),
	}
	emailJSON, err := jsonColumn(s.EmailTo)
	if err != nil {
		return nil, err
	}
	_, err = db.conn.Exec(
		`INSERT INTO schedules (id, name, cron_expr, email_to, enabled, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.CronExpr, emailJSON, boolInt(s.Enabled), s.NextRunAt, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSchedules returns every schedule, newest first.
func (db *DB) GetSchedules() ([]Schedule, error) {
	return db.querySchedules(scheduleSelect + " ORDER BY created_at DESC")
}

// GetEnabledSchedules returns schedules the polling loop should consider.
func (db *DB) GetEnabledSchedules() ([]Schedule, error) {
	return db.querySchedules(scheduleSelect + " WHERE enabled = 1 ORDER BY created_at")
}

// GetSchedule returns a single schedule by ID, or nil if missing.
func (db *DB) GetSchedule(scheduleID string) (*Schedule, error) {
	row := db.conn.QueryRow(scheduleSelect+" WHERE id = ?", scheduleID)
	var s Schedule
	var emailJSON *string
	var enabled int
	err := row.Scan(&s.ID, &s.Name, &s.CronExpr, &emailJSON, &enabled,
		&s.LastRunAt, &s.NextRunAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Enabled = enabled != 0
	if err := decodeJSONColumn(emailJSON, &s.EmailTo); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSchedule updates the provided fields. Returns false when the
// schedule does not exist.
func (db *DB) UpdateSchedule(scheduleID string, name, cronExpr *string, emailTo []string, enabled *bool, nextRunAt *string) (bool, error) {
	var updates []string
	var args []any

	if name != nil {
		updates = append(updates, "name = ?")
		args = append(args, *name)
	}
	if cronExpr != nil {
		updates = append(updates, "cron_expr = ?")
		args = append(args, *cronExpr)
	}
	if emailTo != nil {
		emailJSON, err := jsonColumn(emailTo)
		if err != nil {
			return false, err
		}
		updates = append(updates, "email_to = ?")
		args = append(args, emailJSON)
	}
	if enabled != nil {
		updates = append(updates, "enabled = ?")
		args = append(args, boolInt(*enabled))
	}
	if nextRunAt != nil {
		updates = append(updates, "next_run_at = ?")
		args = append(args, *nextRunAt)
	}
	if len(updates) == 0 {
		return false, nil
	}

	args = append(args, scheduleID)
	query := fmt.Sprintf("UPDATE schedules SET %s WHERE id = ?", strings.Join(updates, ", "))
	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// DeleteSchedule removes a schedule. Returns false when it does not exist.
func (db *DB) DeleteSchedule(scheduleID string) (bool, error) {
	result, err := db.conn.Exec("DELETE FROM schedules WHERE id = ?", scheduleID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkScheduleRun advances a schedule after the loop launches its run.
func (db *DB) MarkScheduleRun(scheduleID, lastRunAt, nextRunAt string) error {
	_, err := db.conn.Exec(
		"UPDATE schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?",
		lastRunAt, nextRunAt, scheduleID,
	)
	return err
}

const scheduleSelect = `SELECT id, name, cron_expr, email_to, enabled, last_run_at, next_run_at, created_at
	FROM schedules`

func (db *DB) querySchedules(query string, args ...any) ([]Schedule, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		var emailJSON *string
		var enabled int
		if err := rows.Scan(&s.ID, &s.Name, &s.CronExpr, &emailJSON, &enabled,
			&s.LastRunAt, &s.NextRunAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Enabled = enabled != 0
		if err := decodeJSONColumn(emailJSON, &s.EmailTo); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
