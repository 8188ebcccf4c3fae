package database

import (
	"github.com/google/uuid"
)

// InsertHealthSample records one source check for a run.
func (db *DB) InsertHealthSample(sourceID, runID string, success bool, errMsg *string, responseTimeMS int64) error {
	_, err := db.conn.Exec(
		`INSERT INTO source_health (id, source_id, run_id, success, error, response_time_ms, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sourceID, runID, boolInt(success), errMsg, responseTimeMS, nowUTC(),
	)
	return err
}

// GetHealthSamplesForRun returns the samples written by one run.
func (db *DB) GetHealthSamplesForRun(runID string) ([]SourceHealth, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, run_id, success, error, response_time_ms, checked_at
		FROM source_health WHERE run_id = ? ORDER BY checked_at`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []SourceHealth
	for rows.Next() {
		var h SourceHealth
		var success int
		if err := rows.Scan(&h.ID, &h.SourceID, &h.RunID, &success, &h.Error,
			&h.ResponseTimeMS, &h.CheckedAt); err != nil {
			return nil, err
		}
		h.Success = success != 0
		samples = append(samples, h)
	}
	return samples, rows.Err()
}

// GetSourceHealthSummaries folds each source's sample history into success
// rate, average response time and last success/failure markers.
func (db *DB) GetSourceHealthSummaries() ([]SourceHealthSummary, error) {
	rows, err := db.conn.Query(`
		SELECT s.id, s.name,
			COUNT(h.id),
			COALESCE(SUM(CASE WHEN h.success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(h.response_time_ms), 0),
			MAX(CASE WHEN h.success = 1 THEN h.checked_at END),
			MAX(CASE WHEN h.success = 0 THEN h.checked_at END),
			(SELECT error FROM source_health
				WHERE source_id = s.id AND success = 0
				ORDER BY checked_at DESC LIMIT 1)
		FROM sources s
		LEFT JOIN source_health h ON h.source_id = s.id
		GROUP BY s.id, s.name
		ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SourceHealthSummary
	for rows.Next() {
		var sm SourceHealthSummary
		var ok int
		if err := rows.Scan(&sm.SourceID, &sm.SourceName, &sm.TotalChecks, &ok,
			&sm.AvgResponseTimeMS, &sm.LastSuccessAt, &sm.LastFailureAt, &sm.LastError); err != nil {
			return nil, err
		}
		if sm.TotalChecks > 0 {
			sm.SuccessRate = float64(ok) / float64(sm.TotalChecks) * 100
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}
