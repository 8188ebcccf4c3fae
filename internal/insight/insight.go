package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/llm"
)

const (
	maxScenarioEvents = 10
	maxTaskEvents     = 15
	minForecastEvents = 3

	maxScenarios = 5
	maxWidgets   = 6
	maxTasks     = 10
	maxApprovals = 5
	maxForecasts = 5
)

const scenarioInstruction = `You are a strategic intelligence analyst for the tourism industry.
Analyze the provided events and generate 3-5 impact scenarios.

Return ONLY valid JSON array with NO markdown, NO code blocks:
[
  {
    "scenario_name": "string",
    "description": "detailed scenario description",
    "probability": 0.0-1.0,
    "impact_level": "low|medium|high|critical",
    "assumptions": ["assumption 1", "assumption 2"],
    "potential_outcomes": ["outcome 1", "outcome 2"],
    "confidence_score": 0.0-1.0
  }
]`

const widgetInstruction = `You are a data visualization expert for executive dashboards.
Analyze events and recommend 4-6 dashboard widgets.

Return ONLY valid JSON array:
[
  {
    "widget_type": "chart|metric|table|alert",
    "title": "widget title",
    "description": "what this widget shows",
    "data_source": "data source description",
    "priority": "P0|P1|P2",
    "template": {
      "chart_type": "line|bar|pie|gauge",
      "metrics": ["metric1", "metric2"],
      "filters": ["filter1"]
    }
  }
]`

const taskInstruction = `You are a task management AI for tourism intelligence.
Generate 5-10 prioritized action items based on events.

Assign tasks to roles: analyst, executive, marketing, risk

Return ONLY valid JSON array:
[
  {
    "title": "task title",
    "description": "detailed description",
    "priority": "P0|P1|P2",
    "assigned_role": "analyst|executive|marketing|risk",
    "due_date": "YYYY-MM-DD",
    "reasoning": "why this task matters",
    "related_events": ["event_id1", "event_id2"]
  }
]`

const approvalInstruction = `You are an automation advisor for intelligence platforms.
Suggest 3-5 executable actions that require approval.

Action types: send_email, add_source, schedule_monitoring, export_csv, send_alert

Return ONLY valid JSON array:
[
  {
    "action_type": "send_email|add_source|schedule_monitoring|export_csv|send_alert",
    "title": "action title",
    "description": "what this action does",
    "reasoning": "why recommend this",
    "confidence": 0.0-1.0,
    "parameters": {
      "key": "value"
    }
  }
]`

const forecastInstruction = `You are a tourism industry trend analyst with predictive capabilities.
Analyze events and forecast 3-5 emerging trends.

Categories: partnerships, funding, pricing, technology, destinations

Return ONLY valid JSON array:
[
  {
    "trend_category": "partnerships|funding|pricing|technology|destinations",
    "trend_name": "trend name",
    "description": "detailed trend description",
    "forecast_horizon": "next_quarter|next_6_months|next_year",
    "confidence": 0.0-1.0,
    "supporting_events": ["event_id1"],
    "key_indicators": ["indicator 1", "indicator 2"],
    "potential_impact": "impact description",
    "recommended_actions": ["action 1", "action 2"]
  }
]`

// Generator derives the second-pass analysis artifacts from a run's events.
type Generator struct {
	db       *database.DB
	provider llm.Provider
	logger   *zap.Logger
}

// NewGenerator creates an insight generator.
func NewGenerator(db *database.DB, provider llm.Provider, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{db: db, provider: provider, logger: logger}
}

// Generate runs the five analysis stages in fixed order, derives the summary
// fields, and persists the insight bundle plus the exploded task, approval,
// and forecast rows. A stage failure empties that stage only; the returned
// error covers provider absence and persistence failures.
func (g *Generator) Generate(ctx context.Context, run *database.Run, events []database.Event) (*database.AgenticInsight, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("no reasoning provider configured")
	}
	started := time.Now()

	team, err := g.db.GetActiveTeamMembers()
	if err != nil {
		return nil, fmt.Errorf("loading team members: %w", err)
	}

	scenarios := g.impactScenarios(ctx, events)
	widgets := g.dashboardWidgets(ctx, events)
	tasks := g.actionItems(ctx, run.ID, events, team)
	approvals := g.approvals(ctx, run.ID, events)
	forecasts := g.trendForecasts(ctx, run.ID, events)

	insight := &database.AgenticInsight{
		RunID:                    run.ID,
		ImpactScenarios:          scenarios,
		DashboardRecommendations: widgets,
		TrendForecastsSummary:    trendSummary(forecasts),
		KeyFindings:              keyFindings(scenarios),
		RiskAlerts:               riskAlerts(scenarios),
		Opportunities:            opportunities(scenarios),
		ProcessingTimeSeconds:    time.Since(started).Seconds(),
	}

	if err := g.db.InsertInsight(insight); err != nil {
		return nil, fmt.Errorf("storing insight: %w", err)
	}
	for i := range tasks {
		if err := g.db.InsertActionItem(&tasks[i]); err != nil {
			return insight, fmt.Errorf("storing action item: %w", err)
		}
	}
	for i := range approvals {
		if err := g.db.InsertApproval(&approvals[i]); err != nil {
			return insight, fmt.Errorf("storing approval: %w", err)
		}
	}
	for i := range forecasts {
		if err := g.db.InsertTrendForecast(&forecasts[i]); err != nil {
			return insight, fmt.Errorf("storing trend forecast: %w", err)
		}
	}

	g.logger.Info("insight generation complete",
		zap.String("run_id", run.ID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("tasks", len(tasks)),
		zap.Int("approvals", len(approvals)),
		zap.Int("forecasts", len(forecasts)))
	return insight, nil
}

// runStage issues one reasoning call and recovers the array elements. Any
// failure logs and returns nil so stages stay independent.
func (g *Generator) runStage(ctx context.Context, name, instruction, payload string, limit int) []json.RawMessage {
	response, err := g.provider.Complete(ctx, instruction, payload)
	if err != nil {
		g.logger.Warn("insight stage failed", zap.String("stage", name), zap.Error(err))
		return nil
	}

	elements, err := llm.ExtractArray(response)
	if err != nil {
		g.logger.Warn("insight stage returned unusable JSON", zap.String("stage", name), zap.Error(err))
		return nil
	}
	if len(elements) > limit {
		elements = elements[:limit]
	}
	return elements
}

func (g *Generator) impactScenarios(ctx context.Context, events []database.Event) []database.ImpactScenario {
	type projection struct {
		Company     string  `json:"company"`
		EventType   string  `json:"event_type"`
		Title       string  `json:"title"`
		Summary     *string `json:"summary"`
		Materiality int     `json:"materiality_score"`
	}
	var projected []projection
	for i, e := range events {
		if i >= maxScenarioEvents {
			break
		}
		projected = append(projected, projection{
			Company:     e.Company,
			EventType:   e.EventType,
			Title:       e.Title,
			Summary:     e.Summary,
			Materiality: e.MaterialityScore,
		})
	}
	encoded, _ := json.MarshalIndent(projected, "", "  ")
	payload := fmt.Sprintf("Events:\n%s\n\nGenerate impact scenarios.", encoded)

	var scenarios []database.ImpactScenario
	for _, raw := range g.runStage(ctx, "impact_scenarios", scenarioInstruction, payload, maxScenarios) {
		var s database.ImpactScenario
		if err := json.Unmarshal(raw, &s); err != nil {
			g.logger.Warn("skipping malformed scenario", zap.Error(err))
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios
}

func (g *Generator) dashboardWidgets(ctx context.Context, events []database.Event) []database.DashboardWidget {
	histogram := make(map[string]int)
	for _, e := range events {
		histogram[e.EventType]++
	}
	encoded, _ := json.Marshal(histogram)
	payload := fmt.Sprintf("Event distribution: %s\nTotal events: %d\n\nRecommend dashboard widgets.", encoded, len(events))

	var widgets []database.DashboardWidget
	for _, raw := range g.runStage(ctx, "dashboard_widgets", widgetInstruction, payload, maxWidgets) {
		var w database.DashboardWidget
		if err := json.Unmarshal(raw, &w); err != nil {
			g.logger.Warn("skipping malformed widget", zap.Error(err))
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets
}

type taskProposal struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Priority      string   `json:"priority"`
	AssignedRole  string   `json:"assigned_role"`
	DueDate       *string  `json:"due_date"`
	Reasoning     string   `json:"reasoning"`
	RelatedEvents []string `json:"related_events"`
}

func (g *Generator) actionItems(ctx context.Context, runID string, events []database.Event, team []database.TeamMember) []database.ActionItem {
	roleMap := make(map[string][]database.TeamMember)
	for _, m := range team {
		roleMap[m.RoleType] = append(roleMap[m.RoleType], m)
	}
	roles := make([]string, 0, len(roleMap))
	for role := range roleMap {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	type projection struct {
		ID           string  `json:"id"`
		Company      string  `json:"company"`
		EventType    string  `json:"event_type"`
		Title        string  `json:"title"`
		WhyItMatters *string `json:"why_it_matters"`
	}
	var projected []projection
	for i, e := range events {
		if i >= maxTaskEvents {
			break
		}
		projected = append(projected, projection{
			ID:           e.ID,
			Company:      e.Company,
			EventType:    e.EventType,
			Title:        e.Title,
			WhyItMatters: e.WhyItMatters,
		})
	}
	encoded, _ := json.MarshalIndent(projected, "", "  ")
	payload := fmt.Sprintf("Events:\n%s\n\nAvailable roles: %s\n\nGenerate action items.", encoded, strings.Join(roles, ", "))

	// One counter per role keeps rotation balanced however roles interleave.
	assigned := make(map[string]int)

	var items []database.ActionItem
	for _, raw := range g.runStage(ctx, "action_items", taskInstruction, payload, maxTasks) {
		var p taskProposal
		if err := json.Unmarshal(raw, &p); err != nil {
			g.logger.Warn("skipping malformed action item", zap.Error(err))
			continue
		}

		role := p.AssignedRole
		if role == "" {
			role = "analyst"
		}

		item := database.ActionItem{
			RunID:         runID,
			Title:         p.Title,
			Description:   &p.Description,
			Priority:      p.Priority,
			AssignedRole:  &role,
			DueDate:       p.DueDate,
			Reasoning:     &p.Reasoning,
			RelatedEvents: p.RelatedEvents,
		}
		if members := roleMap[role]; len(members) > 0 {
			member := members[assigned[role]%len(members)]
			assigned[role]++
			item.AssignedTo = &member.ID
		}
		items = append(items, item)
	}
	return items
}

type approvalProposal struct {
	ActionType  string         `json:"action_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Reasoning   string         `json:"reasoning"`
	Confidence  *float64       `json:"confidence"`
	Parameters  map[string]any `json:"parameters"`
}

func (g *Generator) approvals(ctx context.Context, runID string, events []database.Event) []database.Approval {
	highPriority := 0
	typeSet := make(map[string]struct{})
	for _, e := range events {
		if e.MaterialityScore >= 70 {
			highPriority++
		}
		typeSet[e.EventType] = struct{}{}
	}
	eventTypes := make([]string, 0, len(typeSet))
	for et := range typeSet {
		eventTypes = append(eventTypes, et)
	}
	sort.Strings(eventTypes)

	summary := map[string]any{
		"events_created": len(events),
		"high_priority":  highPriority,
		"event_types":    eventTypes,
	}
	encoded, _ := json.MarshalIndent(summary, "", "  ")
	payload := fmt.Sprintf("Run summary:\n%s\n\nSuggest approval actions.", encoded)

	var approvals []database.Approval
	for _, raw := range g.runStage(ctx, "approvals", approvalInstruction, payload, maxApprovals) {
		var p approvalProposal
		if err := json.Unmarshal(raw, &p); err != nil {
			g.logger.Warn("skipping malformed approval", zap.Error(err))
			continue
		}

		actionType := p.ActionType
		if actionType == "" {
			actionType = "send_alert"
		}
		confidence := 0.5
		if p.Confidence != nil {
			confidence = *p.Confidence
		}
		parameters := p.Parameters
		if parameters == nil {
			parameters = map[string]any{}
		}

		approvals = append(approvals, database.Approval{
			RunID:       runID,
			ActionType:  actionType,
			Title:       p.Title,
			Description: &p.Description,
			Reasoning:   &p.Reasoning,
			Confidence:  confidence,
			Parameters:  parameters,
		})
	}
	return approvals
}

type forecastProposal struct {
	TrendCategory      string   `json:"trend_category"`
	TrendName          string   `json:"trend_name"`
	Description        string   `json:"description"`
	ForecastHorizon    string   `json:"forecast_horizon"`
	Confidence         *float64 `json:"confidence"`
	SupportingEvents   []string `json:"supporting_events"`
	KeyIndicators      []string `json:"key_indicators"`
	PotentialImpact    string   `json:"potential_impact"`
	RecommendedActions []string `json:"recommended_actions"`
}

func (g *Generator) trendForecasts(ctx context.Context, runID string, events []database.Event) []database.TrendForecast {
	if len(events) < minForecastEvents {
		return nil
	}

	type projection struct {
		ID          string         `json:"id"`
		Company     string         `json:"company"`
		EventType   string         `json:"event_type"`
		Title       string         `json:"title"`
		Summary     *string        `json:"summary"`
		KeyEntities map[string]any `json:"key_entities"`
	}
	projected := make([]projection, 0, len(events))
	for _, e := range events {
		projected = append(projected, projection{
			ID:          e.ID,
			Company:     e.Company,
			EventType:   e.EventType,
			Title:       e.Title,
			Summary:     e.Summary,
			KeyEntities: e.KeyEntities,
		})
	}
	encoded, _ := json.MarshalIndent(projected, "", "  ")
	payload := fmt.Sprintf("Historical events:\n%s\n\nForecast emerging trends.", encoded)

	var forecasts []database.TrendForecast
	for _, raw := range g.runStage(ctx, "trend_forecasts", forecastInstruction, payload, maxForecasts) {
		var p forecastProposal
		if err := json.Unmarshal(raw, &p); err != nil {
			g.logger.Warn("skipping malformed forecast", zap.Error(err))
			continue
		}

		category := p.TrendCategory
		if category == "" {
			category = "partnerships"
		}
		confidence := 0.5
		if p.Confidence != nil {
			confidence = *p.Confidence
		}

		forecasts = append(forecasts, database.TrendForecast{
			RunID:              runID,
			TrendCategory:      category,
			TrendName:          p.TrendName,
			Description:        &p.Description,
			ForecastHorizon:    p.ForecastHorizon,
			Confidence:         confidence,
			SupportingEvents:   p.SupportingEvents,
			KeyIndicators:      p.KeyIndicators,
			PotentialImpact:    &p.PotentialImpact,
			RecommendedActions: p.RecommendedActions,
		})
	}
	return forecasts
}

func keyFindings(scenarios []database.ImpactScenario) []string {
	var findings []string
	for i, s := range scenarios {
		if i >= 3 {
			break
		}
		desc := s.Description
		if len(desc) > 100 {
			desc = desc[:100]
		}
		findings = append(findings, fmt.Sprintf("%s: %s...", s.ScenarioName, desc))
	}
	return findings
}

func riskAlerts(scenarios []database.ImpactScenario) []string {
	var alerts []string
	for _, s := range scenarios {
		if s.ImpactLevel == "high" || s.ImpactLevel == "critical" {
			alerts = append(alerts, s.ScenarioName)
		}
	}
	return alerts
}

func opportunities(scenarios []database.ImpactScenario) []string {
	var out []string
	for _, s := range scenarios {
		if strings.Contains(strings.ToLower(s.Description), "opportunity") {
			out = append(out, s.ScenarioName)
		}
	}
	return out
}

func trendSummary(forecasts []database.TrendForecast) string {
	categories := make(map[string]struct{})
	for _, f := range forecasts {
		categories[f.TrendCategory] = struct{}{}
	}
	return fmt.Sprintf("Identified %d emerging trends across %d categories", len(forecasts), len(categories))
}
