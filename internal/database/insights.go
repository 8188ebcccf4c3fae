package database

import (
	"database/sql"

	"github.com/google/uuid"
)

// InsertInsight stores the derived analysis bundle for a run. The ID is
// assigned here and written back.
func (db *DB) InsertInsight(ins *AgenticInsight) error {
	ins.ID = uuid.NewString()
	if ins.GeneratedAt == "" {
		ins.GeneratedAt = nowUTC()
	}

	scenarios, err := jsonColumn(ins.ImpactScenarios)
	if err != nil {
		return err
	}
	widgets, err := jsonColumn(ins.DashboardRecommendations)
	if err != nil {
		return err
	}
	findings, err := jsonColumn(ins.KeyFindings)
	if err != nil {
		return err
	}
	risks, err := jsonColumn(ins.RiskAlerts)
	if err != nil {
		return err
	}
	opportunities, err := jsonColumn(ins.Opportunities)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO insights (id, run_id, impact_scenarios, dashboard_recommendations,
			trend_forecasts_summary, key_findings, risk_alerts, opportunities,
			generated_at, processing_time_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ins.ID, ins.RunID, orEmptyArray(scenarios), orEmptyArray(widgets),
		ins.TrendForecastsSummary, orEmptyArray(findings), orEmptyArray(risks),
		orEmptyArray(opportunities), ins.GeneratedAt, ins.ProcessingTimeSeconds,
	)
	return err
}

// GetInsightForRun returns the insight produced by a run, or nil.
func (db *DB) GetInsightForRun(runID string) (*AgenticInsight, error) {
	row := db.conn.QueryRow(insightSelect+" WHERE run_id = ?", runID)
	return scanInsight(row)
}

// GetLatestInsight returns the most recently generated insight, or nil.
func (db *DB) GetLatestInsight() (*AgenticInsight, error) {
	row := db.conn.QueryRow(insightSelect + " ORDER BY generated_at DESC LIMIT 1")
	return scanInsight(row)
}

const insightSelect = `SELECT id, run_id, impact_scenarios, dashboard_recommendations,
	trend_forecasts_summary, key_findings, risk_alerts, opportunities,
	generated_at, processing_time_seconds FROM insights`

func scanInsight(row *sql.Row) (*AgenticInsight, error) {
	var ins AgenticInsight
	var scenarios, widgets, findings, risks, opportunities *string
	var summary *string
	err := row.Scan(&ins.ID, &ins.RunID, &scenarios, &widgets, &summary,
		&findings, &risks, &opportunities, &ins.GeneratedAt, &ins.ProcessingTimeSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if summary != nil {
		ins.TrendForecastsSummary = *summary
	}
	if err := decodeJSONColumn(scenarios, &ins.ImpactScenarios); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(widgets, &ins.DashboardRecommendations); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(findings, &ins.KeyFindings); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(risks, &ins.RiskAlerts); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(opportunities, &ins.Opportunities); err != nil {
		return nil, err
	}
	return &ins, nil
}

// orEmptyArray keeps NOT NULL JSON columns valid for empty slices.
func orEmptyArray(s *string) string {
	if s == nil {
		return "[]"
	}
	return *s
}
