package database

import (
	"database/sql"

	"github.com/google/uuid"
)

// InsertBrief snapshots a rendered brief and the exact events it covers.
func (db *DB) InsertBrief(runID, html string, events []Event) (*Brief, error) {
	if events == nil {
		events = []Event{}
	}
	b := &Brief{
		ID:        uuid.NewString(),
		RunID:     runID,
		HTML:      html,
		Events:    events,
		CreatedAt: nowUTC(),
	}
	eventsJSON, err := jsonColumn(b.Events)
	if err != nil {
		return nil, err
	}
	_, err = db.conn.Exec(
		`INSERT INTO briefs (id, run_id, html, events, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.RunID, b.HTML, eventsJSON, b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBrief returns a single brief by ID, or nil if missing.
func (db *DB) GetBrief(briefID string) (*Brief, error) {
	row := db.conn.QueryRow(
		"SELECT id, run_id, html, events, created_at FROM briefs WHERE id = ?", briefID,
	)
	return scanBrief(row)
}

// GetLatestBrief returns the most recent brief, or nil when none exist.
func (db *DB) GetLatestBrief() (*Brief, error) {
	row := db.conn.QueryRow(
		"SELECT id, run_id, html, events, created_at FROM briefs ORDER BY created_at DESC LIMIT 1",
	)
	return scanBrief(row)
}

// GetBriefs returns the most recent briefs, newest first.
func (db *DB) GetBriefs(limit int) ([]Brief, error) {
	rows, err := db.conn.Query(
		"SELECT id, run_id, html, events, created_at FROM briefs ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var briefs []Brief
	for rows.Next() {
		var b Brief
		var eventsJSON *string
		if err := rows.Scan(&b.ID, &b.RunID, &b.HTML, &eventsJSON, &b.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(eventsJSON, &b.Events); err != nil {
			return nil, err
		}
		briefs = append(briefs, b)
	}
	return briefs, rows.Err()
}

func scanBrief(row *sql.Row) (*Brief, error) {
	var b Brief
	var eventsJSON *string
	err := row.Scan(&b.ID, &b.RunID, &b.HTML, &eventsJSON, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(eventsJSON, &b.Events); err != nil {
		return nil, err
	}
	return &b, nil
}
