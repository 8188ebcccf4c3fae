package database

import (
	"github.com/google/uuid"
)

// InsertEvent stores a classified event. The ID and creation time are
// assigned here and written back to e.
func (db *DB) InsertEvent(e *Event) error {
	e.ID = uuid.NewString()
	e.CreatedAt = nowUTC()

	entities, err := jsonColumn(e.KeyEntities)
	if err != nil {
		return err
	}
	quotes, err := jsonColumn(e.EvidenceQuotes)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO events (id, run_id, item_id, company, event_type, title, summary,
			why_it_matters, materiality_score, confidence, key_entities, evidence_quotes,
			source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.ItemID, e.Company, e.EventType, e.Title, e.Summary,
		e.WhyItMatters, e.MaterialityScore, e.Confidence, entities, quotes,
		e.SourceURL, e.CreatedAt,
	)
	return err
}

// GetEventsForRun returns a run's events ordered by materiality.
func (db *DB) GetEventsForRun(runID string) ([]Event, error) {
	return db.queryEvents(eventSelect+" WHERE run_id = ? ORDER BY materiality_score DESC", runID)
}

// GetRecentEvents returns the newest events across all runs.
func (db *DB) GetRecentEvents(limit int) ([]Event, error) {
	return db.queryEvents(eventSelect+" ORDER BY created_at DESC LIMIT ?", limit)
}

const eventSelect = `SELECT id, run_id, item_id, company, event_type, title, summary,
	why_it_matters, materiality_score, confidence, key_entities, evidence_quotes,
	source_url, created_at FROM events`

func (db *DB) queryEvents(query string, args ...any) ([]Event, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var entities, quotes *string
		if err := rows.Scan(&e.ID, &e.RunID, &e.ItemID, &e.Company, &e.EventType,
			&e.Title, &e.Summary, &e.WhyItMatters, &e.MaterialityScore, &e.Confidence,
			&entities, &quotes, &e.SourceURL, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(entities, &e.KeyEntities); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(quotes, &e.EvidenceQuotes); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
