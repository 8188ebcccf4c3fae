package database

import "encoding/json"

// Run status values, derived once by the pipeline at run end.
const (
	RunStatusRunning        = "running"
	RunStatusSuccess        = "success"
	RunStatusPartialFailure = "partial_failure"
	RunStatusFailure        = "failure"
)

// Approval lifecycle states. Executed and rejected are terminal.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalExecuted = "executed"
)

// Action item statuses.
const (
	ActionPending    = "pending"
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"
	ActionCancelled  = "cancelled"
)

// Source is a monitored content origin (newsroom, feed, PDF report page).
type Source struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Category  string `json:"category"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// Item is the durable record of one fetched URL's latest known content.
type Item struct {
	ID          string  `json:"id"`
	SourceID    string  `json:"source_id"`
	URL         string  `json:"url"`
	Title       *string `json:"title"`
	ContentText *string `json:"content_text"`
	ContentHash string  `json:"content_hash"`
	FetchedAt   string  `json:"fetched_at"`
	LastSeenAt  string  `json:"last_seen_at"`
}

// Event is a structured business fact extracted from one item.
type Event struct {
	ID               string         `json:"id"`
	RunID            string         `json:"run_id"`
	ItemID           string         `json:"item_id"`
	Company          string         `json:"company"`
	EventType        string         `json:"event_type"`
	Title            string         `json:"title"`
	Summary          *string        `json:"summary"`
	WhyItMatters     *string        `json:"why_it_matters"`
	MaterialityScore int            `json:"materiality_score"`
	Confidence       float64        `json:"confidence"`
	KeyEntities      map[string]any `json:"key_entities"`
	EvidenceQuotes   []string       `json:"evidence_quotes"`
	SourceURL        *string        `json:"source_url"`
	CreatedAt        string         `json:"created_at"`
}

// Run records one end-to-end pipeline execution.
type Run struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"started_at"`
	FinishedAt     *string `json:"finished_at"`
	Status         string  `json:"status"`
	SourcesTotal   int     `json:"sources_total"`
	SourcesOK      int     `json:"sources_ok"`
	SourcesFailed  int     `json:"sources_failed"`
	ItemsTotal     int     `json:"items_total"`
	ItemsNew       int     `json:"items_new"`
	ItemsUpdated   int     `json:"items_updated"`
	ItemsUnchanged int     `json:"items_unchanged"`
	EventsCreated  int     `json:"events_created"`
	EmailsSent     int     `json:"emails_sent"`
}

// RunLog is one append-only audit entry for a pipeline step.
type RunLog struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta"`
	CreatedAt string         `json:"created_at"`
}

// SourceHealth is one health sample for a source, written per run.
type SourceHealth struct {
	ID             string  `json:"id"`
	SourceID       string  `json:"source_id"`
	RunID          string  `json:"run_id"`
	Success        bool    `json:"success"`
	Error          *string `json:"error"`
	ResponseTimeMS int64   `json:"response_time_ms"`
	CheckedAt      string  `json:"checked_at"`
}

// SourceHealthSummary is the read-time fold over a source's samples.
type SourceHealthSummary struct {
	SourceID          string  `json:"source_id"`
	SourceName        string  `json:"source_name"`
	TotalChecks       int     `json:"total_checks"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	LastSuccessAt     *string `json:"last_success_at"`
	LastFailureAt     *string `json:"last_failure_at"`
	LastError         *string `json:"last_error"`
}

// Brief snapshots the notification content and the exact events it covers.
type Brief struct {
	ID        string  `json:"id"`
	RunID     string  `json:"run_id"`
	HTML      string  `json:"html"`
	Events    []Event `json:"events"`
	CreatedAt string  `json:"created_at"`
}

// ImpactScenario is one plausible market development derived from events.
type ImpactScenario struct {
	ScenarioName      string   `json:"scenario_name"`
	Description       string   `json:"description"`
	Probability       float64  `json:"probability"`
	ImpactLevel       string   `json:"impact_level"`
	Assumptions       []string `json:"assumptions"`
	PotentialOutcomes []string `json:"potential_outcomes"`
	ConfidenceScore   float64  `json:"confidence_score"`
}

// DashboardWidget is one suggested monitoring widget.
type DashboardWidget struct {
	WidgetType  string         `json:"widget_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	DataSource  string         `json:"data_source"`
	Priority    string         `json:"priority"`
	Template    map[string]any `json:"template"`
}

// AgenticInsight bundles the derived artifacts of one run's analysis pass.
type AgenticInsight struct {
	ID                       string            `json:"id"`
	RunID                    string            `json:"run_id"`
	ImpactScenarios          []ImpactScenario  `json:"impact_scenarios"`
	DashboardRecommendations []DashboardWidget `json:"dashboard_recommendations"`
	TrendForecastsSummary    string            `json:"trend_forecasts_summary"`
	KeyFindings              []string          `json:"key_findings"`
	RiskAlerts               []string          `json:"risk_alerts"`
	Opportunities            []string          `json:"opportunities"`
	GeneratedAt              string            `json:"generated_at"`
	ProcessingTimeSeconds    float64           `json:"processing_time_seconds"`
}

// ActionItem is a prioritized task proposed for a team member.
type ActionItem struct {
	ID            string   `json:"id"`
	RunID         string   `json:"run_id"`
	Title         string   `json:"title"`
	Description   *string  `json:"description"`
	Priority      string   `json:"priority"`
	AssignedTo    *string  `json:"assigned_to"`
	AssignedRole  *string  `json:"assigned_role"`
	DueDate       *string  `json:"due_date"`
	Status        string   `json:"status"`
	Reasoning     *string  `json:"reasoning"`
	RelatedEvents []string `json:"related_events"`
	CreatedAt     string   `json:"created_at"`
	CompletedAt   *string  `json:"completed_at"`
}

// Approval is a proposed automated action gated on explicit authorization.
type Approval struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	ActionType  string         `json:"action_type"`
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	Reasoning   *string        `json:"reasoning"`
	Confidence  float64        `json:"confidence"`
	Parameters  map[string]any `json:"parameters"`
	Status      string         `json:"status"`
	CreatedAt   string         `json:"created_at"`
	ApprovedAt  *string        `json:"approved_at"`
	ExecutedAt  *string        `json:"executed_at"`
	ApprovedBy  *string        `json:"approved_by"`
}

// TrendForecast is one predicted market trend with supporting evidence.
type TrendForecast struct {
	ID                 string   `json:"id"`
	RunID              string   `json:"run_id"`
	TrendCategory      string   `json:"trend_category"`
	TrendName          string   `json:"trend_name"`
	Description        *string  `json:"description"`
	ForecastHorizon    string   `json:"forecast_horizon"`
	Confidence         float64  `json:"confidence"`
	SupportingEvents   []string `json:"supporting_events"`
	KeyIndicators      []string `json:"key_indicators"`
	PotentialImpact    *string  `json:"potential_impact"`
	RecommendedActions []string `json:"recommended_actions"`
	CreatedAt          string   `json:"created_at"`
}

// TeamMember receives round-robin task assignments by role.
type TeamMember struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Title     *string `json:"title"`
	Email     *string `json:"email"`
	RoleType  string  `json:"role_type"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

// Schedule is a recurring run trigger.
type Schedule struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CronExpr  string   `json:"cron_expr"`
	EmailTo   []string `json:"email_to"`
	Enabled   bool     `json:"enabled"`
	LastRunAt *string  `json:"last_run_at"`
	NextRunAt *string  `json:"next_run_at"`
	CreatedAt string   `json:"created_at"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalSources     int `json:"total_sources"`
	ActiveSources    int `json:"active_sources"`
	TotalItems       int `json:"total_items"`
	TotalEvents      int `json:"total_events"`
	TotalRuns        int `json:"total_runs"`
	TotalBriefs      int `json:"total_briefs"`
	PendingApprovals int `json:"pending_approvals"`
	OpenActionItems  int `json:"open_action_items"`
}

// jsonColumn marshals v for storage in a TEXT column. Nil input stays NULL.
func jsonColumn(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

// decodeJSONColumn unmarshals a TEXT column into dest, tolerating NULL.
func decodeJSONColumn(raw *string, dest any) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(*raw), dest)
}
