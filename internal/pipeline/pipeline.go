package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/crawl"
	"github.com/TobiSchelling/IntelWatch/internal/database"
)

// Content longer than this is truncated before storage.
const maxStoredContentBytes = 50000

// Fetcher retrieves one URL as normalized text plus outbound links.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*crawl.Result, error)
	FetchDocument(ctx context.Context, docURL string) (*crawl.Result, error)
}

// Classifier extracts at most one structured event from fetched content.
type Classifier interface {
	Classify(ctx context.Context, content, sourceURL, title string) (*database.Event, error)
}

// Notifier renders and delivers the run brief, returning emails sent.
type Notifier interface {
	Dispatch(ctx context.Context, run *database.Run, events []database.Event) (int, error)
}

// InsightGenerator derives the second-pass artifacts from a finished run.
type InsightGenerator interface {
	Generate(ctx context.Context, run *database.Run, events []database.Event) (*database.AgenticInsight, error)
}

// Pipeline executes one intelligence run: fetch all active sources,
// deduplicate and classify their content, aggregate counters into a run
// record, dispatch the brief, and trigger insight generation.
type Pipeline struct {
	db         *database.DB
	fetcher    Fetcher
	classifier Classifier
	notifier   Notifier
	insights   InsightGenerator
	logger     *zap.Logger
}

// New creates a pipeline. Notifier and insight generator may be nil, which
// skips those stages.
func New(db *database.DB, fetcher Fetcher, classifier Classifier, notifier Notifier, insights InsightGenerator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:         db,
		fetcher:    fetcher,
		classifier: classifier,
		notifier:   notifier,
		insights:   insights,
		logger:     logger,
	}
}

type counters struct {
	sourcesOK      int
	sourcesFailed  int
	itemsTotal     int
	itemsNew       int
	itemsUpdated   int
	itemsUnchanged int
	eventsCreated  int
}

// Execute runs the full pipeline and returns the finished run record.
// Source failures are absorbed into the counters; only run-record writes
// can fail the call itself.
func (p *Pipeline) Execute(ctx context.Context) (*database.Run, error) {
	run, err := p.db.CreateRun()
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return p.ExecuteRun(ctx, run)
}

// ExecuteRun processes an already-created run record. The HTTP trigger
// creates the record first so the caller has the run ID while the
// pipeline works in the background.
func (p *Pipeline) ExecuteRun(ctx context.Context, run *database.Run) (*database.Run, error) {
	p.logRun(run.ID, "info", "Starting pipeline execution", nil)

	sources, err := p.db.GetActiveSources()
	if err != nil {
		p.logRun(run.ID, "error", "Failed to load sources", map[string]any{"error": err.Error()})
		run.Status = database.RunStatusFailure
		if finishErr := p.db.FinishRun(run); finishErr != nil {
			return run, fmt.Errorf("finishing run: %w", finishErr)
		}
		return run, fmt.Errorf("loading sources: %w", err)
	}

	c := counters{}
	var allEvents []database.Event

	for _, source := range sources {
		started := time.Now()
		events, err := p.processSource(ctx, run.ID, source, &c)

		elapsed := time.Since(started).Milliseconds()
		if err != nil {
			c.sourcesFailed++
			msg := err.Error()
			p.logRun(run.ID, "error", "Failed to process source: "+source.Name, map[string]any{"error": msg})
			if healthErr := p.db.InsertHealthSample(source.ID, run.ID, false, &msg, elapsed); healthErr != nil {
				p.logger.Warn("health sample write failed", zap.Error(healthErr))
			}
			continue
		}

		c.sourcesOK++
		allEvents = append(allEvents, events...)
		if healthErr := p.db.InsertHealthSample(source.ID, run.ID, true, nil, elapsed); healthErr != nil {
			p.logger.Warn("health sample write failed", zap.Error(healthErr))
		}
	}

	run.SourcesTotal = len(sources)
	run.SourcesOK = c.sourcesOK
	run.SourcesFailed = c.sourcesFailed
	run.ItemsTotal = c.itemsTotal
	run.ItemsNew = c.itemsNew
	run.ItemsUpdated = c.itemsUpdated
	run.ItemsUnchanged = c.itemsUnchanged
	run.EventsCreated = c.eventsCreated
	run.Status = deriveStatus(c)

	if p.notifier != nil {
		sent, err := p.notifier.Dispatch(ctx, run, allEvents)
		if err != nil {
			p.logRun(run.ID, "error", "Brief dispatch failed", map[string]any{"error": err.Error()})
		}
		run.EmailsSent = sent
	}

	if err := p.db.FinishRun(run); err != nil {
		return run, fmt.Errorf("finishing run: %w", err)
	}

	if len(allEvents) > 0 && p.insights != nil {
		p.logRun(run.ID, "info", fmt.Sprintf("Generating insights for %d events", len(allEvents)), nil)
		if _, err := p.insights.Generate(ctx, run, allEvents); err != nil {
			p.logRun(run.ID, "error", "Insight generation failed", map[string]any{"error": err.Error()})
		}
	}

	p.logRun(run.ID, "info", fmt.Sprintf("Run finished: %s (%d events from %d/%d sources)",
		run.Status, run.EventsCreated, run.SourcesOK, run.SourcesTotal), nil)
	return run, nil
}

// processSource fetches one source's primary URL and its kept child links.
// Primary failures fail the source; child link failures only log.
func (p *Pipeline) processSource(ctx context.Context, runID string, source database.Source, c *counters) ([]database.Event, error) {
	p.logRun(runID, "info", "Processing source: "+source.Name, map[string]any{"url": source.URL})

	content, err := p.fetchURL(ctx, source.URL, source.Name)
	if err != nil {
		return nil, err
	}

	kept := FilterLinks(content.Links)
	p.logRun(runID, "info", fmt.Sprintf("Found %d relevant links from %s", len(kept), source.Name), nil)

	var events []database.Event
	event, err := p.processItem(ctx, runID, source.ID, content, c)
	if err != nil {
		return nil, err
	}
	if event != nil {
		events = append(events, *event)
	}

	fetches := kept
	if len(fetches) > maxLinkFetches {
		fetches = fetches[:maxLinkFetches]
	}
	for _, link := range fetches {
		child, err := p.fetchURL(ctx, link, link)
		if err != nil {
			p.logRun(runID, "warn", "Failed to process link: "+link, map[string]any{"error": err.Error()})
			continue
		}
		event, err := p.processItem(ctx, runID, source.ID, child, c)
		if err != nil {
			p.logRun(runID, "warn", "Failed to process link: "+link, map[string]any{"error": err.Error()})
			continue
		}
		if event != nil {
			events = append(events, *event)
		}
	}

	return events, nil
}

// fetchURL routes document URLs through the PDF parser with a page-fetch
// fallback, everything else through the page fetcher.
func (p *Pipeline) fetchURL(ctx context.Context, rawURL, fallbackTitle string) (*crawl.Result, error) {
	var result *crawl.Result
	var err error

	if crawl.IsDocumentURL(rawURL) {
		result, err = p.fetcher.FetchDocument(ctx, rawURL)
		if err != nil {
			p.logger.Warn("document parse failed, trying page fetch",
				zap.String("url", rawURL), zap.Error(err))
			result, err = p.fetcher.FetchPage(ctx, rawURL)
		}
	} else {
		result, err = p.fetcher.FetchPage(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	if result.Title == "" {
		result.Title = fallbackTitle
	}
	return result, nil
}

// processItem runs the dedup compare for one URL and classifies new or
// updated content. Unchanged content only refreshes last_seen_at.
func (p *Pipeline) processItem(ctx context.Context, runID, sourceID string, content *crawl.Result, c *counters) (*database.Event, error) {
	hash := Fingerprint(content.Text)

	existing, err := p.db.GetItemByURL(content.URL)
	if err != nil {
		return nil, fmt.Errorf("looking up item: %w", err)
	}

	stored := content.Text
	if len(stored) > maxStoredContentBytes {
		stored = stored[:maxStoredContentBytes]
	}

	var itemID string
	switch {
	case existing == nil:
		item, err := p.db.InsertItem(sourceID, content.URL, &content.Title, &stored, hash)
		if err != nil {
			return nil, fmt.Errorf("inserting item: %w", err)
		}
		itemID = item.ID
		c.itemsNew++
	case existing.ContentHash != hash:
		if err := p.db.UpdateItemContent(existing.ID, &content.Title, &stored, hash); err != nil {
			return nil, fmt.Errorf("updating item: %w", err)
		}
		itemID = existing.ID
		c.itemsUpdated++
	default:
		if err := p.db.TouchItem(existing.ID); err != nil {
			return nil, fmt.Errorf("touching item: %w", err)
		}
		c.itemsUnchanged++
		c.itemsTotal++
		return nil, nil
	}
	c.itemsTotal++

	event, err := p.classifier.Classify(ctx, content.Text, content.URL, content.Title)
	if err != nil {
		p.logger.Warn("classification failed", zap.String("url", content.URL), zap.Error(err))
		return nil, nil
	}
	if event == nil {
		return nil, nil
	}

	event.RunID = runID
	event.ItemID = itemID
	if err := p.db.InsertEvent(event); err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	c.eventsCreated++
	return event, nil
}

// deriveStatus folds the counters into the run status: any source failure
// downgrades success, any source success keeps the run partial.
func deriveStatus(c counters) string {
	switch {
	case c.sourcesFailed == 0:
		return database.RunStatusSuccess
	case c.sourcesOK > 0:
		return database.RunStatusPartialFailure
	default:
		return database.RunStatusFailure
	}
}

func (p *Pipeline) logRun(runID, level, message string, meta map[string]any) {
	if err := p.db.AppendRunLog(runID, level, message, meta); err != nil {
		p.logger.Warn("run log write failed", zap.Error(err))
	}
	switch level {
	case "error":
		p.logger.Error(message, zap.String("run_id", runID))
	case "warn":
		p.logger.Warn(message, zap.String("run_id", runID))
	default:
		p.logger.Info(message, zap.String("run_id", runID))
	}
}
