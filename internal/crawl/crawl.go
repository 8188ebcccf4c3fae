package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const maxFeedEntries = 20

// Result is the normalized outcome of fetching one URL, whatever the
// underlying format (HTML page, RSS/Atom feed, or PDF document) was.
type Result struct {
	URL   string
	Title string
	Text  string
	Links []string
}

// Fetcher retrieves source content over HTTP and normalizes it into text
// plus outbound links.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger,
	}
}

// IsDocumentURL reports whether the URL points at a document that needs a
// binary parser rather than an HTML fetch.
func IsDocumentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// FetchPage retrieves an HTML page or feed and extracts readable text and
// outbound links. Pages without extractable content are an error.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*Result, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if looksLikeFeed(body) {
		return parseFeed(pageURL, body)
	}
	return parsePage(pageURL, body)
}

// FetchDocument retrieves a PDF and extracts its plain text. The title is
// left empty; callers substitute the source name.
func (f *Fetcher) FetchDocument(ctx context.Context, docURL string) (*Result, error) {
	body, err := f.get(ctx, docURL)
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("reading PDF text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, fmt.Errorf("no extractable text in PDF")
	}

	return &Result{URL: docURL, Text: text}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "IntelWatch/1.0 (competitive intelligence monitor)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func parsePage(pageURL string, body []byte) (*Result, error) {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) <= 100 {
		return nil, fmt.Errorf("no extractable content at %s", pageURL)
	}

	return &Result{
		URL:   pageURL,
		Title: strings.TrimSpace(article.Title),
		Text:  text,
		Links: extractLinks(parsedURL, body),
	}, nil
}

func parseFeed(feedURL string, body []byte) (*Result, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed %s has no entries", feedURL)
	}

	var text strings.Builder
	var links []string
	for i, item := range feed.Items {
		if i >= maxFeedEntries {
			break
		}
		text.WriteString(strings.TrimSpace(item.Title))
		text.WriteString("\n")
		if item.Description != "" {
			text.WriteString(stripHTML(item.Description))
		} else if item.Content != "" {
			text.WriteString(stripHTML(item.Content))
		}
		text.WriteString("\n\n")
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}

	return &Result{
		URL:   feedURL,
		Title: strings.TrimSpace(feed.Title),
		Text:  strings.TrimSpace(text.String()),
		Links: links,
	}, nil
}

func extractLinks(base *url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := ref
		if base != nil {
			resolved = base.ResolveReference(ref)
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

func looksLikeFeed(body []byte) bool {
	head := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	if bytes.HasPrefix(head, []byte("<?xml")) {
		rest := head
		if idx := bytes.IndexByte(rest, '>'); idx >= 0 {
			rest = bytes.TrimLeft(rest[idx+1:], " \t\r\n")
		}
		return bytes.HasPrefix(rest, []byte("<rss")) || bytes.HasPrefix(rest, []byte("<feed"))
	}
	return bytes.HasPrefix(head, []byte("<rss")) || bytes.HasPrefix(head, []byte("<feed"))
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
