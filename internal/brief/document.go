package brief

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/IntelWatch/internal/database"
)

const maxDocumentEvents = 20

var md = goldmark.New()

// Document renders a stored brief as a page-numbered HTML document: a title
// page followed by one page per event, capped at twenty events. Each page
// is written as markdown and converted, so the output prints cleanly.
func Document(b *database.Brief) (string, error) {
	events := b.Events
	if len(events) > maxDocumentEvents {
		events = events[:maxDocumentEvents]
	}

	pages := make([]string, 0, len(events)+1)
	pages = append(pages, titlePage(b, len(events)))
	for _, e := range events {
		pages = append(pages, eventPage(e))
	}

	var doc strings.Builder
	doc.WriteString(documentHead)
	for i, page := range pages {
		var buf bytes.Buffer
		if err := md.Convert([]byte(page), &buf); err != nil {
			return "", fmt.Errorf("converting page %d: %w", i+1, err)
		}
		fmt.Fprintf(&doc, "<section class=\"page\">\n%s<footer>Page %d of %d</footer>\n</section>\n",
			buf.String(), i+1, len(pages))
	}
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}

func titlePage(b *database.Brief, eventCount int) string {
	var sb strings.Builder
	sb.WriteString("# IntelWatch Intelligence Brief\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", b.CreatedAt)
	fmt.Fprintf(&sb, "Run: %s\n\n", b.RunID)
	fmt.Fprintf(&sb, "%d event%s in this brief.\n", eventCount, plural(eventCount))
	return sb.String()
}

// eventPage writes one event as markdown. Raw HTML in classifier text is
// neutralized by the converter's safe default rendering.
func eventPage(e database.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## [%s] %s\n\n", typeLabel(e.EventType), e.Title)
	fmt.Fprintf(&sb, "**Company:** %s\n\n", e.Company)
	if e.Summary != nil && *e.Summary != "" {
		sb.WriteString(*e.Summary + "\n\n")
	}
	if e.WhyItMatters != nil && *e.WhyItMatters != "" {
		fmt.Fprintf(&sb, "*Why it matters:* %s\n", *e.WhyItMatters)
	}
	return sb.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

const documentHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>IntelWatch Intelligence Brief</title>
<style>
body { font-family: Georgia, serif; margin: 0; background: #fff; color: #111; }
.page { padding: 48px 56px; min-height: 90vh; page-break-after: always; border-bottom: 1px solid #ddd; position: relative; }
.page footer { position: absolute; bottom: 16px; right: 56px; color: #999; font-size: 12px; }
h1 { font-size: 28px; } h2 { font-size: 20px; }
</style>
</head>
<body>
`
