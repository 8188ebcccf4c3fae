package database

import (
	"database/sql"

	"github.com/google/uuid"
)

// CreateRun opens a new run in the running state.
func (db *DB) CreateRun() (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		StartedAt: nowUTC(),
		Status:    RunStatusRunning,
	}
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)",
		r.ID, r.StartedAt, r.Status,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// FinishRun writes the terminal status and counters for a run.
func (db *DB) FinishRun(r *Run) error {
	finished := nowUTC()
	r.FinishedAt = &finished
	_, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ?, status = ?,
			sources_total = ?, sources_ok = ?, sources_failed = ?,
			items_total = ?, items_new = ?, items_updated = ?, items_unchanged = ?,
			events_created = ?, emails_sent = ?
		WHERE id = ?`,
		r.FinishedAt, r.Status,
		r.SourcesTotal, r.SourcesOK, r.SourcesFailed,
		r.ItemsTotal, r.ItemsNew, r.ItemsUpdated, r.ItemsUnchanged,
		r.EventsCreated, r.EmailsSent,
		r.ID,
	)
	return err
}

// GetRun returns a single run by ID, or nil if missing.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.conn.QueryRow(runSelect+" WHERE id = ?", runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRuns returns the most recent runs, newest first.
func (db *DB) GetRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(runSelect+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.SourcesTotal, &r.SourcesOK, &r.SourcesFailed,
			&r.ItemsTotal, &r.ItemsNew, &r.ItemsUpdated, &r.ItemsUnchanged,
			&r.EventsCreated, &r.EmailsSent); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLatestRun returns the most recently started run, or nil when no runs
// exist.
func (db *DB) GetLatestRun() (*Run, error) {
	row := db.conn.QueryRow(runSelect + " ORDER BY started_at DESC LIMIT 1")
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

const runSelect = `SELECT id, started_at, finished_at, status,
	sources_total, sources_ok, sources_failed,
	items_total, items_new, items_updated, items_unchanged,
	events_created, emails_sent FROM runs`

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
		&r.SourcesTotal, &r.SourcesOK, &r.SourcesFailed,
		&r.ItemsTotal, &r.ItemsNew, &r.ItemsUpdated, &r.ItemsUnchanged,
		&r.EventsCreated, &r.EmailsSent)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AppendRunLog writes one audit entry for a pipeline step.
func (db *DB) AppendRunLog(runID, level, message string, meta map[string]any) error {
	metaJSON, err := jsonColumn(meta)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		`INSERT INTO run_logs (id, run_id, level, message, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, level, message, metaJSON, nowUTC(),
	)
	return err
}

// GetRunLogs returns a run's audit trail in write order.
func (db *DB) GetRunLogs(runID string) ([]RunLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, level, message, meta, created_at
		FROM run_logs WHERE run_id = ? ORDER BY created_at`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var l RunLog
		var meta *string
		if err := rows.Scan(&l.ID, &l.RunID, &l.Level, &l.Message, &meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(meta, &l.Meta); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
