// Package brief composes the per-run intelligence brief and delivers it
// by email. A run that produced events gets a freshly rendered brief,
// stored with its exact event snapshot; a run with no events re-sends the
// latest stored brief so recipients still hear from the pipeline.
package brief

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

//go:embed templates/brief.html
var templateFS embed.FS

const (
	highPriorityScore = 70
	maxSectionCards   = 5
	maxQuotes         = 2
	maxQuoteLen       = 150
)

var briefTmpl = template.Must(template.New("brief.html").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"typeLabel": typeLabel,
	"quotes":    clipQuotes,
}).ParseFS(templateFS, "templates/brief.html"))

// Mailer delivers a rendered brief to the configured recipients and
// reports how many deliveries succeeded.
type Mailer interface {
	Send(ctx context.Context, subject, html string) (int, error)
}

// Dispatcher renders, stores, and emails briefs. A nil mailer disables
// delivery but briefs are still rendered and stored.
type Dispatcher struct {
	db     *database.DB
	mailer Mailer
	logger *zap.Logger
}

func NewDispatcher(db *database.DB, mailer Mailer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{db: db, mailer: mailer, logger: logger}
}

// Dispatch delivers the brief for a finished run and returns the number of
// emails sent. Delivery failures are logged, never returned: a brief that
// could not be sent must not fail the run that produced it.
func (d *Dispatcher) Dispatch(ctx context.Context, run *database.Run, events []database.Event) (int, error) {
	if len(events) > 0 {
		html, err := Render(run, events)
		if err != nil {
			return 0, fmt.Errorf("rendering brief: %w", err)
		}
		stored, err := d.db.InsertBrief(run.ID, html, events)
		if err != nil {
			return 0, fmt.Errorf("storing brief: %w", err)
		}
		d.logger.Info("brief stored",
			zap.String("brief_id", stored.ID),
			zap.String("run_id", run.ID),
			zap.Int("events", len(events)))
		return d.send(ctx, html), nil
	}

	latest, err := d.db.GetLatestBrief()
	if err != nil {
		return 0, fmt.Errorf("loading latest brief: %w", err)
	}
	if latest == nil {
		d.logger.Info("no events and no previous brief, nothing to send")
		return 0, nil
	}

	// Re-render the previous event set so the stats reflect this run.
	html, err := Render(run, latest.Events)
	if err != nil {
		return 0, fmt.Errorf("re-rendering brief %s: %w", latest.ID, err)
	}
	d.logger.Info("no new events, resending latest brief",
		zap.String("brief_id", latest.ID),
		zap.String("brief_created_at", latest.CreatedAt))
	return d.send(ctx, html), nil
}

func (d *Dispatcher) send(ctx context.Context, html string) int {
	if d.mailer == nil {
		d.logger.Info("email delivery disabled")
		return 0
	}
	subject := fmt.Sprintf("Daily Competitive Intel Brief - %s", time.Now().UTC().Format("2006-01-02"))
	sent, err := d.mailer.Send(ctx, subject, html)
	if err != nil {
		d.logger.Error("brief delivery failed", zap.Error(err))
	}
	return sent
}

type briefData struct {
	Date          string
	Time          string
	TotalEvents   int
	HighPriority  int
	SourcesOK     int
	SourcesTotal  int
	Status        string
	ItemsNew      int
	ItemsUpdated  int
	EventsCreated int
	Sections      []briefSection
}

type briefSection struct {
	Title  string
	Count  int
	Events []database.Event
}

// Render produces the brief HTML for a run and its events.
func Render(run *database.Run, events []database.Event) (string, error) {
	now := time.Now().UTC()
	data := briefData{
		Date:          now.Format("January 2, 2006"),
		Time:          now.Format("15:04 UTC"),
		TotalEvents:   len(events),
		HighPriority:  countHighPriority(events),
		SourcesOK:     run.SourcesOK,
		SourcesTotal:  run.SourcesTotal,
		Status:        strings.ToUpper(run.Status),
		ItemsNew:      run.ItemsNew,
		ItemsUpdated:  run.ItemsUpdated,
		EventsCreated: run.EventsCreated,
		Sections:      buildSections(events),
	}

	var buf bytes.Buffer
	if err := briefTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// buildSections groups events into the brief's fixed sections. Sections
// with no matching events are omitted; each keeps at most five cards.
func buildSections(events []database.Event) []briefSection {
	defs := []struct {
		title string
		match func(database.Event) bool
	}{
		{"Top Movers", func(e database.Event) bool { return e.MaterialityScore >= highPriorityScore }},
		{"Partnerships & Alliances", typeIn("partnership")},
		{"Funding & Investment", typeIn("funding", "acquisition")},
		{"Campaigns & Deals", typeIn("campaign_deal", "pricing_change")},
	}

	var sections []briefSection
	for _, def := range defs {
		var matched []database.Event
		for _, e := range events {
			if def.match(e) {
				matched = append(matched, e)
			}
		}
		if len(matched) == 0 {
			continue
		}
		count := len(matched)
		if len(matched) > maxSectionCards {
			matched = matched[:maxSectionCards]
		}
		sections = append(sections, briefSection{Title: def.title, Count: count, Events: matched})
	}
	return sections
}

func typeIn(types ...string) func(database.Event) bool {
	return func(e database.Event) bool {
		for _, t := range types {
			if e.EventType == t {
				return true
			}
		}
		return false
	}
}

func countHighPriority(events []database.Event) int {
	n := 0
	for _, e := range events {
		if e.MaterialityScore >= highPriorityScore {
			n++
		}
	}
	return n
}

// typeLabel turns an event type into its display form, e.g.
// "campaign_deal" becomes "CAMPAIGN DEAL".
func typeLabel(eventType string) string {
	if eventType == "" {
		eventType = "other"
	}
	return strings.ToUpper(strings.ReplaceAll(eventType, "_", " "))
}

func clipQuotes(quotes []string) []string {
	if len(quotes) > maxQuotes {
		quotes = quotes[:maxQuotes]
	}
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if len(q) > maxQuoteLen {
			q = q[:maxQuoteLen] + "..."
		}
		out = append(out, q)
	}
	return out
}
