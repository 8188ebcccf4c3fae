package pipeline

import (
	"strings"

	"github.com/TobiSchelling/IntelWatch/internal/crawl"
)

// Social platforms whose links never carry primary-source intelligence.
var blockedDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"linkedin.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"x.com",
}

var relevanceKeywords = []string{
	"press",
	"news",
	"blog",
	"partnership",
	"partner",
	"alliance",
	"collaboration",
	"funding",
	"investment",
	"acquisition",
	"campaign",
	"deal",
	"package",
	"offer",
	"discount",
	"promotion",
	"vacation",
	"resort",
	"special offer",
	"announcement",
}

const (
	maxKeptLinks   = 8
	maxLinkFetches = 3
)

// FilterLinks applies the outbound-link policy: links on a blocked domain
// are dropped, the rest survive when a relevance keyword matches or the link
// is a document, and the kept set is capped at 8.
func FilterLinks(links []string) []string {
	var kept []string
	for _, link := range links {
		if len(kept) >= maxKeptLinks {
			break
		}
		if keepLink(link) {
			kept = append(kept, link)
		}
	}
	return kept
}

func keepLink(link string) bool {
	lower := strings.ToLower(link)
	for _, domain := range blockedDomains {
		if strings.Contains(lower, domain) {
			return false
		}
	}
	for _, keyword := range relevanceKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return crawl.IsDocumentURL(link)
}
