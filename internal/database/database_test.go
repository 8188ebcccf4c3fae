package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestInsertSource(t *testing.T) {
	db := openTestDB(t)
	s, err := db.InsertSource("Marriott News", "https://news.marriott.com", "hotel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Error("expected non-empty source ID")
	}
	if !s.Active {
		t.Error("expected new source to be active")
	}

	got, err := db.GetSource(s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "Marriott News" {
		t.Errorf("expected stored source, got %+v", got)
	}
}

func TestGetMissingSource(t *testing.T) {
	db := openTestDB(t)
	s, err := db.GetSource("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Error("expected nil for missing source")
	}
}

func TestSeedDefaultSources(t *testing.T) {
	db := openTestDB(t)
	n, err := db.SeedDefaultSources()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(DefaultSources) {
		t.Errorf("expected %d seeded sources, got %d", len(DefaultSources), n)
	}

	// Seeding is a no-op once sources exist.
	n, err = db.SeedDefaultSources()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 on second seed, got %d", n)
	}
}

func TestUpdateAndDeleteSource(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.InsertSource("Old Name", "https://old.example.com", "news")

	found, err := db.UpdateSource(s.ID, ptr("New Name"), nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected update to find the source")
	}
	got, _ := db.GetSource(s.ID)
	if got.Name != "New Name" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if got.URL != "https://old.example.com" {
		t.Errorf("expected url untouched, got %q", got.URL)
	}

	inactive := false
	db.UpdateSource(s.ID, nil, nil, nil, &inactive)
	active, _ := db.GetActiveSources()
	if len(active) != 0 {
		t.Errorf("expected 0 active sources, got %d", len(active))
	}

	found, err = db.DeleteSource(s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected delete to find the source")
	}
	found, _ = db.DeleteSource(s.ID)
	if found {
		t.Error("expected second delete to report missing")
	}
}

func TestDeleteSourceKeepsItems(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.InsertSource("Keep Items", "https://keep.example.com", "news")
	_, err := db.InsertItem(s.ID, "https://keep.example.com/post", ptr("Post"), ptr("text"), "hash-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := db.DeleteSource(s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, _ := db.GetItemByURL("https://keep.example.com/post")
	if item == nil {
		t.Error("expected item to survive source deletion")
	}
}

func TestItemLifecycle(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.InsertSource("Src", "https://src.example.com", "news")

	item, err := db.InsertItem(s.ID, "https://src.example.com/a", ptr("A"), ptr("body"), "hash-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.FetchedAt != item.LastSeenAt {
		t.Error("expected fetched_at == last_seen_at on insert")
	}

	if err := db.UpdateItemContent(item.ID, ptr("A2"), ptr("body2"), "hash-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetItemByURL("https://src.example.com/a")
	if got.ContentHash != "hash-b" {
		t.Errorf("expected updated hash, got %q", got.ContentHash)
	}
	if got.Title == nil || *got.Title != "A2" {
		t.Error("expected updated title")
	}

	before := got.LastSeenAt
	if err := db.TouchItem(item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = db.GetItemByURL("https://src.example.com/a")
	if got.LastSeenAt < before {
		t.Error("expected last_seen_at to advance")
	}
	if got.ContentHash != "hash-b" {
		t.Error("expected touch to leave the hash alone")
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected running status, got %q", run.Status)
	}

	run.Status = RunStatusPartialFailure
	run.SourcesTotal = 3
	run.SourcesOK = 2
	run.SourcesFailed = 1
	run.ItemsTotal = 5
	run.ItemsNew = 2
	run.EventsCreated = 1
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.GetRun(run.ID)
	if got.Status != RunStatusPartialFailure {
		t.Errorf("expected partial_failure, got %q", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if got.SourcesOK != 2 || got.SourcesFailed != 1 {
		t.Errorf("expected counters persisted, got %+v", got)
	}

	latest, _ := db.GetLatestRun()
	if latest == nil || latest.ID != run.ID {
		t.Error("expected latest run to match")
	}
}

func TestRunLogs(t *testing.T) {
	db := openTestDB(t)
	run, _ := db.CreateRun()

	if err := db.AppendRunLog(run.ID, "info", "run started", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.AppendRunLog(run.ID, "error", "source failed", map[string]any{"source": "X"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logs, err := db.GetRunLogs(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(logs))
	}
	if logs[0].Message != "run started" {
		t.Errorf("expected write order, got %q first", logs[0].Message)
	}
	if logs[1].Meta["source"] != "X" {
		t.Errorf("expected meta round-trip, got %+v", logs[1].Meta)
	}
}

func TestEventRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, _ := db.CreateRun()

	e := &Event{
		RunID:            run.ID,
		ItemID:           "item-1",
		Company:          "Marriott",
		EventType:        "partnership",
		Title:            "Marriott partners with a tour operator",
		Summary:          ptr("Joint bundle announced"),
		WhyItMatters:     ptr("Signals a distribution push"),
		MaterialityScore: 80,
		Confidence:       0.9,
		KeyEntities:      map[string]any{"partners": []any{"Acme Tours"}},
		EvidenceQuotes:   []string{"we are thrilled to partner"},
		SourceURL:        ptr("https://news.marriott.com/a"),
	}
	if err := db.InsertEvent(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == "" {
		t.Error("expected event ID to be assigned")
	}

	events, err := db.GetEventsForRun(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Company != "Marriott" || events[0].MaterialityScore != 80 {
		t.Errorf("unexpected event %+v", events[0])
	}
	if len(events[0].EvidenceQuotes) != 1 {
		t.Error("expected evidence quotes round-trip")
	}
}

func TestSourceHealthSummaries(t *testing.T) {
	db := openTestDB(t)
	s, _ := db.InsertSource("Healthy", "https://h.example.com", "news")
	run, _ := db.CreateRun()

	db.InsertHealthSample(s.ID, run.ID, true, nil, 120)
	db.InsertHealthSample(s.ID, run.ID, true, nil, 80)
	db.InsertHealthSample(s.ID, run.ID, false, ptr("timeout"), 30000)

	summaries, err := db.GetSourceHealthSummaries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	sm := summaries[0]
	if sm.TotalChecks != 3 {
		t.Errorf("expected 3 checks, got %d", sm.TotalChecks)
	}
	if sm.SuccessRate < 66 || sm.SuccessRate > 67 {
		t.Errorf("expected ~66.7%% success rate, got %f", sm.SuccessRate)
	}
	if sm.LastError == nil || *sm.LastError != "timeout" {
		t.Error("expected last error from the failed sample")
	}
	if sm.LastSuccessAt == nil || sm.LastFailureAt == nil {
		t.Error("expected both success and failure timestamps")
	}
}

func TestBriefLifecycle(t *testing.T) {
	db := openTestDB(t)
	run, _ := db.CreateRun()

	e := &Event{RunID: run.ID, ItemID: "i", Company: "Hilton", EventType: "funding", Title: "Hilton raises"}
	db.InsertEvent(e)
	events, _ := db.GetEventsForRun(run.ID)

	b, err := db.InsertBrief(run.ID, "<html>brief</html>", events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.GetBrief(b.ID)
	if got == nil {
		t.Fatal("expected brief")
	}
	if len(got.Events) != 1 || got.Events[0].Company != "Hilton" {
		t.Errorf("expected event snapshot, got %+v", got.Events)
	}

	latest, _ := db.GetLatestBrief()
	if latest == nil || latest.ID != b.ID {
		t.Error("expected latest brief to match")
	}

	missing, err := db.GetBrief("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing brief")
	}
}

func TestInsightRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run, _ := db.CreateRun()

	ins := &AgenticInsight{
		RunID: run.ID,
		ImpactScenarios: []ImpactScenario{{
			ScenarioName: "Loyalty war",
			Description:  "Chains escalate loyalty perks",
			Probability:  0.7,
			ImpactLevel:  "high",
		}},
		DashboardRecommendations: []DashboardWidget{{WidgetType: "chart", Title: "Events by type"}},
		TrendForecastsSummary:    "Identified 2 emerging trends across 2 categories",
		KeyFindings:              []string{"Loyalty war: Chains escalate loyalty perks"},
		RiskAlerts:               []string{"Loyalty war"},
		Opportunities:            []string{},
		ProcessingTimeSeconds:    1.25,
	}
	if err := db.InsertInsight(ins); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetInsightForRun(run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected insight")
	}
	if len(got.ImpactScenarios) != 1 || got.ImpactScenarios[0].ImpactLevel != "high" {
		t.Errorf("expected scenario round-trip, got %+v", got.ImpactScenarios)
	}
	if got.ProcessingTimeSeconds != 1.25 {
		t.Errorf("expected processing time, got %f", got.ProcessingTimeSeconds)
	}

	latest, _ := db.GetLatestInsight()
	if latest == nil || latest.RunID != run.ID {
		t.Error("expected latest insight to match")
	}
}

func TestActionItemStatusUpdate(t *testing.T) {
	db := openTestDB(t)

	a := &ActionItem{RunID: "run-1", Title: "Review Marriott bundle", Priority: "P1", RelatedEvents: []string{"e1"}}
	if err := db.InsertActionItem(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != ActionPending {
		t.Errorf("expected pending default, got %q", a.Status)
	}

	found, err := db.UpdateActionItemStatus(a.ID, ActionCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected update to find the item")
	}

	runID := "run-1"
	items, _ := db.GetActionItems(&runID, nil)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].CompletedAt == nil {
		t.Error("expected completed_at to be stamped")
	}

	status := ActionCompleted
	items, _ = db.GetActionItems(nil, &status)
	if len(items) != 1 {
		t.Errorf("expected status filter to match, got %d", len(items))
	}
}

func TestApprovalTransitions(t *testing.T) {
	db := openTestDB(t)

	a := &Approval{
		RunID:      "run-1",
		ActionType: "add_source",
		Title:      "Add Expedia newsroom",
		Confidence: 0.8,
		Parameters: map[string]any{"name": "Expedia", "url": "https://www.expediagroup.com/news"},
	}
	if err := db.InsertApproval(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := db.ApproveIfPending(a.ID, "analyst@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected pending approval to approve")
	}

	// A second approve must not fire.
	ok, _ = db.ApproveIfPending(a.ID, "analyst@example.com")
	if ok {
		t.Error("expected approve to fail once not pending")
	}

	ok, _ = db.MarkExecuted(a.ID)
	if !ok {
		t.Error("expected approved approval to execute")
	}

	got, _ := db.GetApproval(a.ID)
	if got.Status != ApprovalExecuted {
		t.Errorf("expected executed, got %q", got.Status)
	}
	if got.ApprovedAt == nil || got.ExecutedAt == nil {
		t.Fatal("expected both timestamps")
	}
	if *got.ExecutedAt < *got.ApprovedAt {
		t.Error("expected executed_at >= approved_at")
	}
	if got.Parameters["name"] != "Expedia" {
		t.Errorf("expected parameters round-trip, got %+v", got.Parameters)
	}
}

func TestRejectApproval(t *testing.T) {
	db := openTestDB(t)

	a := &Approval{RunID: "run-1", ActionType: "send_email", Title: "Alert the team"}
	db.InsertApproval(a)

	ok, err := db.RejectIfPending(a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected pending approval to reject")
	}

	got, _ := db.GetApproval(a.ID)
	if got.Status != ApprovalRejected {
		t.Errorf("expected rejected, got %q", got.Status)
	}
	if got.ApprovedAt == nil {
		t.Error("expected rejection timestamp in approved_at")
	}

	// Rejected is terminal.
	ok, _ = db.ApproveIfPending(a.ID, "someone")
	if ok {
		t.Error("expected approve after reject to fail")
	}
}

func TestTrendForecasts(t *testing.T) {
	db := openTestDB(t)

	tf := &TrendForecast{
		RunID:            "run-1",
		TrendCategory:    "partnerships",
		TrendName:        "Airline-hotel bundles",
		Description:      ptr("Bundling accelerates"),
		Confidence:       0.7,
		SupportingEvents: []string{"e1", "e2"},
		KeyIndicators:    []string{"co-marketing announcements"},
	}
	if err := db.InsertTrendForecast(tf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf.ForecastHorizon != "next_quarter" {
		t.Errorf("expected default horizon, got %q", tf.ForecastHorizon)
	}

	category := "partnerships"
	forecasts, err := db.GetTrendForecasts(nil, &category, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("expected 1 forecast, got %d", len(forecasts))
	}
	if len(forecasts[0].SupportingEvents) != 2 {
		t.Error("expected supporting events round-trip")
	}
}

func TestTeamMembers(t *testing.T) {
	db := openTestDB(t)

	m1, err := db.InsertTeamMember("Alice", ptr("Senior Analyst"), ptr("alice@example.com"), "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.InsertTeamMember("Bob", nil, nil, "analyst")

	members, _ := db.GetActiveTeamMembers()
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	// Join order is stable for round-robin assignment.
	if members[0].ID != m1.ID {
		t.Error("expected members in join order")
	}
}

func TestScheduleLifecycle(t *testing.T) {
	db := openTestDB(t)

	s, err := db.InsertSchedule("Morning sweep", "0 9 * * *", []string{"team@example.com"}, true, "2026-08-26T09:00:00.000000Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enabled, _ := db.GetEnabledSchedules()
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled schedule, got %d", len(enabled))
	}
	if len(enabled[0].EmailTo) != 1 {
		t.Error("expected email_to round-trip")
	}

	if err := db.MarkScheduleRun(s.ID, "2026-08-26T09:00:01.000000Z", "2026-08-27T09:00:00.000000Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetSchedule(s.ID)
	if got.LastRunAt == nil || got.NextRunAt == nil {
		t.Fatal("expected run markers")
	}
	if *got.NextRunAt != "2026-08-27T09:00:00.000000Z" {
		t.Errorf("expected advanced next_run_at, got %q", *got.NextRunAt)
	}

	off := false
	found, _ := db.UpdateSchedule(s.ID, nil, nil, nil, &off, nil)
	if !found {
		t.Error("expected update to find the schedule")
	}
	enabled, _ = db.GetEnabledSchedules()
	if len(enabled) != 0 {
		t.Error("expected 0 enabled schedules after disable")
	}

	found, _ = db.DeleteSchedule(s.ID)
	if !found {
		t.Error("expected delete to find the schedule")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSources != 0 {
		t.Errorf("expected 0 sources, got %d", stats.TotalSources)
	}

	s, _ := db.InsertSource("S", "https://s.example.com", "news")
	db.InsertItem(s.ID, "https://s.example.com/a", nil, nil, "h")
	db.InsertApproval(&Approval{RunID: "r", ActionType: "send_alert", Title: "T"})

	stats, _ = db.GetStats()
	if stats.TotalSources != 1 || stats.ActiveSources != 1 {
		t.Errorf("expected 1 source, got %+v", stats)
	}
	if stats.TotalItems != 1 {
		t.Errorf("expected 1 item, got %d", stats.TotalItems)
	}
	if stats.PendingApprovals != 1 {
		t.Errorf("expected 1 pending approval, got %d", stats.PendingApprovals)
	}
}
