package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/llm"
)

const classifyPrompt = `You are a competitive intelligence analyst for the tourism and hospitality industry.
Analyze the provided content and extract structured intelligence.
You MUST return ONLY valid JSON with NO markdown formatting, NO code blocks, NO explanation.

Return this exact JSON structure:
{
  "company": "string - company name mentioned",
  "event_type": "one of: partnership | funding | campaign_deal | pricing_change | acquisition | hiring_exec | other",
  "title": "string - brief title of the event",
  "summary": "1-2 sentences summarizing the key information",
  "why_it_matters": "1-2 sentences explaining relevance to tourism executives",
  "materiality_score": 0-100 integer indicating business impact,
  "confidence": 0-1 float indicating extraction confidence,
  "key_entities": {
    "partners": [],
    "campaigns": [],
    "packages": [],
    "discounts": [],
    "locations": [],
    "amounts": [],
    "dates": []
  },
  "evidence_quotes": ["2-3 short snippets from the content"],
  "source_url": "the source url"
}

If content is not relevant to tourism/hospitality intelligence, return null.`

const maxContentBytes = 8000

// Classifier turns fetched content into at most one structured event per item.
type Classifier struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewClassifier creates a classifier backed by the given reasoning provider.
func NewClassifier(provider llm.Provider, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{provider: provider, logger: logger}
}

// Classify asks the reasoning provider to extract one event from the content.
// A nil event with a nil error means the content is not relevant. Provider
// and parse failures surface as errors; callers degrade to "no event".
func (c *Classifier) Classify(ctx context.Context, content, sourceURL, title string) (*database.Event, error) {
	if c.provider == nil {
		return nil, fmt.Errorf("no reasoning provider configured")
	}

	if len(content) > maxContentBytes {
		content = content[:maxContentBytes]
	}
	user := fmt.Sprintf("URL: %s\nTitle: %s\n\nContent:\n%s", sourceURL, title, content)

	response, err := c.provider.Complete(ctx, classifyPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}

	parsed, err := llm.ExtractObject(response)
	if err != nil {
		return nil, fmt.Errorf("classification response: %w", err)
	}
	if parsed == nil {
		return nil, nil
	}

	eventType := strings.TrimSpace(getString(parsed, "event_type", ""))
	if eventType == "" {
		return nil, fmt.Errorf("classification missing event_type")
	}

	summary := getString(parsed, "summary", "")
	why := getString(parsed, "why_it_matters", "")
	event := &database.Event{
		Company:          getString(parsed, "company", "Unknown"),
		EventType:        eventType,
		Title:            getString(parsed, "title", title),
		Summary:          &summary,
		WhyItMatters:     &why,
		MaterialityScore: clampInt(getInt(parsed, "materiality_score", 0), 0, 100),
		Confidence:       clampFloat(getFloat(parsed, "confidence", 0), 0, 1),
		KeyEntities:      getMap(parsed, "key_entities"),
		EvidenceQuotes:   getStringSlice(parsed, "evidence_quotes"),
		SourceURL:        &sourceURL,
	}

	c.logger.Debug("classified content",
		zap.String("url", sourceURL),
		zap.String("event_type", event.EventType),
		zap.Int("materiality", event.MaterialityScore))

	return event, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func getInt(m map[string]any, key string, fallback int) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return fallback
}

func getFloat(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
	}
	return fallback
}

func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]any); ok {
			return sub
		}
	}
	return map[string]any{}
}

func getStringSlice(m map[string]any, key string) []string {
	var out []string
	if v, ok := m[key]; ok {
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
