package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/crawl"
	"github.com/TobiSchelling/IntelWatch/internal/database"
)

type stubFetcher struct {
	pages    map[string]*crawl.Result
	docs     map[string]*crawl.Result
	pageErrs map[string]error
	docErrs  map[string]error
	fetched  []string
}

func (f *stubFetcher) FetchPage(_ context.Context, url string) (*crawl.Result, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.pageErrs[url]; ok {
		return nil, err
	}
	if r, ok := f.pages[url]; ok {
		c := *r
		return &c, nil
	}
	return nil, fmt.Errorf("no page for %s", url)
}

func (f *stubFetcher) FetchDocument(_ context.Context, url string) (*crawl.Result, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.docErrs[url]; ok {
		return nil, err
	}
	if r, ok := f.docs[url]; ok {
		c := *r
		return &c, nil
	}
	return nil, fmt.Errorf("no document for %s", url)
}

type stubClassifier struct {
	events map[string]*database.Event
	err    error
	calls  int
}

func (c *stubClassifier) Classify(_ context.Context, _, url, _ string) (*database.Event, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if ev, ok := c.events[url]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, nil
}

type stubNotifier struct {
	calls  int
	events []database.Event
	sent   int
}

func (n *stubNotifier) Dispatch(_ context.Context, _ *database.Run, events []database.Event) (int, error) {
	n.calls++
	n.events = events
	return n.sent, nil
}

type stubInsights struct {
	calls  int
	events []database.Event
}

func (i *stubInsights) Generate(_ context.Context, _ *database.Run, events []database.Event) (*database.AgenticInsight, error) {
	i.calls++
	i.events = events
	return &database.AgenticInsight{}, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func page(url, title, text string, links ...string) *crawl.Result {
	return &crawl.Result{URL: url, Title: title, Text: text, Links: links}
}

func testEvent(company string) *database.Event {
	summary := company + " announced a notable development."
	why := "Shifts the competitive landscape."
	return &database.Event{
		Company:          company,
		EventType:        "partnership",
		Title:            company + " update",
		Summary:          &summary,
		WhyItMatters:     &why,
		MaterialityScore: 80,
		Confidence:       0.9,
		KeyEntities:      map[string]any{},
		EvidenceQuotes:   []string{"a quoted passage"},
	}
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	db := openTestDB(t)
	a, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")
	b, _ := db.InsertSource("Bravo", "https://bravo.test/news", "hotel")
	db.InsertSource("Charlie", "https://charlie.test/news", "news")

	fetcher := &stubFetcher{
		pages: map[string]*crawl.Result{
			a.URL:                      page(a.URL, "Alpha News", "alpha content"),
			"https://charlie.test/news": page("https://charlie.test/news", "Charlie News", "charlie content"),
		},
		pageErrs: map[string]error{b.URL: errors.New("connection refused")},
	}
	classifier := &stubClassifier{events: map[string]*database.Event{a.URL: testEvent("Alpha Corp")}}

	p := New(db, fetcher, classifier, nil, nil, zap.NewNop())
	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.SourcesTotal != 3 || run.SourcesOK != 2 || run.SourcesFailed != 1 {
		t.Errorf("sources = %d/%d/%d, want 3/2/1", run.SourcesTotal, run.SourcesOK, run.SourcesFailed)
	}
	if run.Status != database.RunStatusPartialFailure {
		t.Errorf("status = %q, want partial_failure", run.Status)
	}
	if run.EventsCreated != 1 {
		t.Errorf("events_created = %d, want 1", run.EventsCreated)
	}

	samples, err := db.GetHealthSamplesForRun(run.ID)
	if err != nil {
		t.Fatalf("GetHealthSamplesForRun: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 health samples, got %d", len(samples))
	}
	var failedSample *database.SourceHealth
	for i := range samples {
		if !samples[i].Success {
			failedSample = &samples[i]
		}
	}
	if failedSample == nil {
		t.Fatal("expected a failed health sample")
	}
	if failedSample.Error == nil || !strings.Contains(*failedSample.Error, "connection refused") {
		t.Errorf("failed sample error = %v", failedSample.Error)
	}

	logs, _ := db.GetRunLogs(run.ID)
	var sawError bool
	for _, l := range logs {
		if l.Level == "error" && strings.Contains(l.Message, "Bravo") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error run log for the failing source")
	}
}

func TestFingerprintDeterministicAndTruncated(t *testing.T) {
	base := strings.Repeat("a", fingerprintBytes)

	if Fingerprint(base) != Fingerprint(base) {
		t.Error("fingerprint not deterministic")
	}
	if len(Fingerprint("short")) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(Fingerprint("short")))
	}

	if Fingerprint(base) != Fingerprint(base+"trailing growth") {
		t.Error("content beyond the window changed the fingerprint")
	}

	flipped := base[:fingerprintBytes-1] + "b"
	if Fingerprint(base) == Fingerprint(flipped) {
		t.Error("change inside the window did not change the fingerprint")
	}
}

func TestRunIdempotentReprocessing(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "stable content"),
	}}
	classifier := &stubClassifier{events: map[string]*database.Event{src.URL: testEvent("Alpha Corp")}}
	p := New(db, fetcher, classifier, nil, nil, zap.NewNop())

	first, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.ItemsNew != 1 || first.EventsCreated != 1 {
		t.Fatalf("first run: items_new=%d events=%d", first.ItemsNew, first.EventsCreated)
	}
	before, _ := db.GetItemByURL(src.URL)

	second, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second.ItemsUnchanged != 1 || second.ItemsNew != 0 || second.ItemsUpdated != 0 {
		t.Errorf("second run items = new %d / updated %d / unchanged %d, want 0/0/1",
			second.ItemsNew, second.ItemsUpdated, second.ItemsUnchanged)
	}
	if second.EventsCreated != 0 {
		t.Errorf("second run created %d events, want 0", second.EventsCreated)
	}
	if classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (unchanged content is not reclassified)", classifier.calls)
	}

	after, _ := db.GetItemByURL(src.URL)
	if after == nil || before == nil {
		t.Fatal("item missing")
	}
	if after.FetchedAt != before.FetchedAt {
		t.Error("unchanged content must not alter fetched_at")
	}
	if after.LastSeenAt < before.LastSeenAt {
		t.Error("expected last_seen_at refreshed")
	}
	if after.ContentHash != before.ContentHash {
		t.Error("unchanged content must keep its hash")
	}
}

func TestRunReclassifiesUpdatedContent(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "original content"),
	}}
	classifier := &stubClassifier{events: map[string]*database.Event{src.URL: testEvent("Alpha Corp")}}
	p := New(db, fetcher, classifier, nil, nil, zap.NewNop())

	if _, err := p.Execute(context.Background()); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	fetcher.pages[src.URL] = page(src.URL, "Alpha News", "revised content")
	second, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if second.ItemsUpdated != 1 || second.ItemsNew != 0 {
		t.Errorf("items = new %d / updated %d, want 0/1", second.ItemsNew, second.ItemsUpdated)
	}
	if second.EventsCreated != 1 {
		t.Errorf("events_created = %d, want 1", second.EventsCreated)
	}
	if classifier.calls != 2 {
		t.Errorf("classifier called %d times, want 2", classifier.calls)
	}

	events, _ := db.GetEventsForRun(second.ID)
	if len(events) != 1 {
		t.Errorf("expected 1 event attached to second run, got %d", len(events))
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		ok, failed int
		want       string
	}{
		{2, 0, database.RunStatusSuccess},
		{0, 0, database.RunStatusSuccess},
		{1, 1, database.RunStatusPartialFailure},
		{0, 2, database.RunStatusFailure},
	}
	for _, tc := range cases {
		got := deriveStatus(counters{sourcesOK: tc.ok, sourcesFailed: tc.failed})
		if got != tc.want {
			t.Errorf("deriveStatus(ok=%d failed=%d) = %q, want %q", tc.ok, tc.failed, got, tc.want)
		}
	}
}

func TestFilterLinks(t *testing.T) {
	links := []string{
		"https://facebook.com/press-release",
		"https://example.com/press/expansion",
		"https://example.com/about-us",
		"https://example.com/q3-report.pdf",
		"https://x.com/deal-announcement",
	}
	kept := FilterLinks(links)

	want := []string{
		"https://example.com/press/expansion",
		"https://example.com/q3-report.pdf",
	}
	if len(kept) != len(want) {
		t.Fatalf("kept %v, want %v", kept, want)
	}
	for i := range want {
		if kept[i] != want[i] {
			t.Errorf("kept[%d] = %q, want %q", i, kept[i], want[i])
		}
	}
}

func TestFilterLinksCap(t *testing.T) {
	var links []string
	for i := 0; i < 15; i++ {
		links = append(links, fmt.Sprintf("https://example.com/news/story-%d", i))
	}
	if kept := FilterLinks(links); len(kept) != maxKeptLinks {
		t.Errorf("kept %d links, want %d", len(kept), maxKeptLinks)
	}
}

func TestRunFetchesAtMostThreeChildLinks(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	childURLs := []string{
		"https://alpha.test/news/story-1",
		"https://alpha.test/news/story-2",
		"https://alpha.test/news/story-3",
		"https://alpha.test/news/story-4",
		"https://alpha.test/news/story-5",
	}
	pages := map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "index content", childURLs...),
	}
	for i, u := range childURLs {
		pages[u] = page(u, fmt.Sprintf("Story %d", i+1), "story content "+u)
	}

	fetcher := &stubFetcher{pages: pages}
	p := New(db, fetcher, &stubClassifier{}, nil, nil, zap.NewNop())
	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(fetcher.fetched) != 1+maxLinkFetches {
		t.Errorf("fetched %d URLs (%v), want %d", len(fetcher.fetched), fetcher.fetched, 1+maxLinkFetches)
	}
	if run.ItemsTotal != 1+maxLinkFetches {
		t.Errorf("items_total = %d, want %d", run.ItemsTotal, 1+maxLinkFetches)
	}
}

func TestRunChildLinkFailureKeepsSourceOK(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	good := "https://alpha.test/news/story-good"
	bad := "https://alpha.test/news/story-bad"
	fetcher := &stubFetcher{
		pages: map[string]*crawl.Result{
			src.URL: page(src.URL, "Alpha News", "index content", good, bad),
			good:    page(good, "Good Story", "good content"),
		},
		pageErrs: map[string]error{bad: errors.New("timeout")},
	}

	p := New(db, fetcher, &stubClassifier{}, nil, nil, zap.NewNop())
	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.SourcesOK != 1 || run.SourcesFailed != 0 {
		t.Errorf("sources ok/failed = %d/%d, want 1/0", run.SourcesOK, run.SourcesFailed)
	}
	if run.Status != database.RunStatusSuccess {
		t.Errorf("status = %q, want success", run.Status)
	}
	if run.ItemsTotal != 2 {
		t.Errorf("items_total = %d, want 2", run.ItemsTotal)
	}

	logs, _ := db.GetRunLogs(run.ID)
	var sawWarn bool
	for _, l := range logs {
		if l.Level == "warn" && strings.Contains(l.Message, bad) {
			sawWarn = true
		}
	}
	if !sawWarn {
		t.Error("expected a warn run log for the failing child link")
	}
}

func TestRunDocumentFallback(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Annual Report", "https://alpha.test/annual.pdf", "association")

	fetcher := &stubFetcher{
		docErrs: map[string]error{src.URL: errors.New("malformed PDF")},
		pages: map[string]*crawl.Result{
			src.URL: page(src.URL, "", "report landing page text"),
		},
	}
	p := New(db, fetcher, &stubClassifier{}, nil, nil, zap.NewNop())
	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.SourcesOK != 1 {
		t.Errorf("sources_ok = %d, want 1 (page fetch fallback)", run.SourcesOK)
	}

	item, _ := db.GetItemByURL(src.URL)
	if item == nil {
		t.Fatal("item missing")
	}
	if item.Title == nil || *item.Title != "Annual Report" {
		t.Errorf("expected source name as fallback title, got %v", item.Title)
	}
}

func TestRunClassifierErrorDegrades(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "content"),
	}}
	p := New(db, fetcher, &stubClassifier{err: errors.New("provider down")}, nil, nil, zap.NewNop())

	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.Status != database.RunStatusSuccess {
		t.Errorf("status = %q, want success (classification failure is not a source failure)", run.Status)
	}
	if run.ItemsNew != 1 {
		t.Errorf("items_new = %d, want 1", run.ItemsNew)
	}
	if run.EventsCreated != 0 {
		t.Errorf("events_created = %d, want 0", run.EventsCreated)
	}
}

func TestRunDispatchesBriefAndInsights(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "content"),
	}}
	classifier := &stubClassifier{events: map[string]*database.Event{src.URL: testEvent("Alpha Corp")}}
	notifier := &stubNotifier{sent: 2}
	insights := &stubInsights{}

	p := New(db, fetcher, classifier, notifier, insights, zap.NewNop())
	run, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls)
	}
	if len(notifier.events) != 1 {
		t.Errorf("notifier got %d events, want 1", len(notifier.events))
	}
	if run.EmailsSent != 2 {
		t.Errorf("emails_sent = %d, want 2", run.EmailsSent)
	}
	if insights.calls != 1 {
		t.Errorf("insights called %d times, want 1", insights.calls)
	}

	stored, _ := db.GetRun(run.ID)
	if stored == nil || stored.Status != database.RunStatusSuccess {
		t.Fatalf("stored run = %+v", stored)
	}
	if stored.FinishedAt == nil {
		t.Error("expected finished_at set")
	}
}

func TestRunWithoutEventsSkipsInsights(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", "content"),
	}}
	notifier := &stubNotifier{}
	insights := &stubInsights{}

	p := New(db, fetcher, &stubClassifier{}, notifier, insights, zap.NewNop())
	if _, err := p.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1 (zero-event runs still dispatch)", notifier.calls)
	}
	if insights.calls != 0 {
		t.Errorf("insights called %d times, want 0", insights.calls)
	}
}

func TestRunTruncatesStoredContent(t *testing.T) {
	db := openTestDB(t)
	src, _ := db.InsertSource("Alpha", "https://alpha.test/news", "hotel")

	long := strings.Repeat("x", maxStoredContentBytes+1000)
	fetcher := &stubFetcher{pages: map[string]*crawl.Result{
		src.URL: page(src.URL, "Alpha News", long),
	}}
	p := New(db, fetcher, &stubClassifier{}, nil, nil, zap.NewNop())
	if _, err := p.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	item, _ := db.GetItemByURL(src.URL)
	if item == nil || item.ContentText == nil {
		t.Fatal("item or content missing")
	}
	if len(*item.ContentText) != maxStoredContentBytes {
		t.Errorf("stored content length = %d, want %d", len(*item.ContentText), maxStoredContentBytes)
	}
}
