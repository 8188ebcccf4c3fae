package database

import (
	"github.com/google/uuid"
)

// InsertTrendForecast stores one predicted trend. The ID and creation time
// are assigned here and written back to tf.
func (db *DB) InsertTrendForecast(tf *TrendForecast) error {
	tf.ID = uuid.NewString()
	tf.CreatedAt = nowUTC()
	if tf.ForecastHorizon == "" {
		tf.ForecastHorizon = "next_quarter"
	}

	supporting, err := jsonColumn(tf.SupportingEvents)
	if err != nil {
		return err
	}
	indicators, err := jsonColumn(tf.KeyIndicators)
	if err != nil {
		return err
	}
	actions, err := jsonColumn(tf.RecommendedActions)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO trend_forecasts (id, run_id, trend_category, trend_name, description,
			forecast_horizon, confidence, supporting_events, key_indicators,
			potential_impact, recommended_actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tf.ID, tf.RunID, tf.TrendCategory, tf.TrendName, tf.Description,
		tf.ForecastHorizon, tf.Confidence, supporting, indicators,
		tf.PotentialImpact, actions, tf.CreatedAt,
	)
	return err
}

// GetTrendForecasts lists forecasts, optionally filtered by run and
// category, newest first.
func (db *DB) GetTrendForecasts(runID, category *string, limit int) ([]TrendForecast, error) {
	query := `SELECT id, run_id, trend_category, trend_name, description, forecast_horizon,
		confidence, supporting_events, key_indicators, potential_impact,
		recommended_actions, created_at FROM trend_forecasts`
	var conds []string
	var args []any
	if runID != nil {
		conds = append(conds, "run_id = ?")
		args = append(args, *runID)
	}
	if category != nil {
		conds = append(conds, "trend_category = ?")
		args = append(args, *category)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []TrendForecast
	for rows.Next() {
		var tf TrendForecast
		var supporting, indicators, actions *string
		if err := rows.Scan(&tf.ID, &tf.RunID, &tf.TrendCategory, &tf.TrendName,
			&tf.Description, &tf.ForecastHorizon, &tf.Confidence, &supporting,
			&indicators, &tf.PotentialImpact, &actions, &tf.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(supporting, &tf.SupportingEvents); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(indicators, &tf.KeyIndicators); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(actions, &tf.RecommendedActions); err != nil {
			return nil, err
		}
		forecasts = append(forecasts, tf)
	}
	return forecasts, rows.Err()
}
