package gemini

import (
	"context"
	"regexp"
	"strings"

	"github.com/arashthr/lodekeep/internal/ai"
)

const parseQueryPrompt = `You split a natural-language bookmark search query into a residual semantic search string and structured filters. Return FOUR outputs using the following structured format:

===QUERY===
[the query with filter phrasing removed]
===END QUERY===

===DOMAIN===
[a single hostname such as producthunt.com, or empty]
===END DOMAIN===

===REFERENCE===
[a substring describing how the bookmark was found, or empty]
===END REFERENCE===

===DATE_RANGE===
[one of: today, last_week, last_month, last_3_months, last_year, all_time, or empty]
===END DATE_RANGE===

Instructions:
- Only extract a filter you are confident about; when unsure leave its section empty
- "from producthunt" or "on github" names a domain; map well-known site names to their hostname
- Phrases like "I found via the newsletter" describe a reference
- Time phrases like "last week" or "this month" map to a date range bucket
- QUERY keeps everything else, with extracted phrasing removed and whitespace normalized
- Never invent filters that are not in the query

Query to split:
`

// ParseQuery extracts structured filters from a free-text search query.
// Callers degrade to using the whole query as the semantic string when
// this fails.
func (c *Client) ParseQuery(ctx context.Context, query string) (*ai.ParsedQuery, error) {
	responseText, err := c.generate(ctx, parseQueryPrompt+query)
	if err != nil {
		return nil, err
	}
	return parseQueryResponse(query, responseText), nil
}

var (
	queryRe     = regexp.MustCompile(`(?s)===QUERY===\n(.*?)\n===END QUERY===`)
	domainRe    = regexp.MustCompile(`(?s)===DOMAIN===\n(.*?)\n===END DOMAIN===`)
	referenceRe = regexp.MustCompile(`(?s)===REFERENCE===\n(.*?)\n===END REFERENCE===`)
	dateRangeRe = regexp.MustCompile(`(?s)===DATE_RANGE===\n(.*?)\n===END DATE_RANGE===`)
)

var knownDateRanges = map[string]bool{
	"today":         true,
	"last_week":     true,
	"last_month":    true,
	"last_3_months": true,
	"last_year":     true,
	"all_time":      true,
}

func parseQueryResponse(original, responseText string) *ai.ParsedQuery {
	parsed := &ai.ParsedQuery{SemanticQuery: strings.TrimSpace(original)}

	if match := queryRe.FindStringSubmatch(responseText); len(match) > 1 {
		parsed.SemanticQuery = strings.TrimSpace(match[1])
	}
	if match := domainRe.FindStringSubmatch(responseText); len(match) > 1 {
		parsed.Domain = strings.ToLower(strings.TrimSpace(match[1]))
	}
	if match := referenceRe.FindStringSubmatch(responseText); len(match) > 1 {
		parsed.Reference = strings.TrimSpace(match[1])
	}
	if match := dateRangeRe.FindStringSubmatch(responseText); len(match) > 1 {
		bucket := strings.ToLower(strings.TrimSpace(match[1]))
		if knownDateRanges[bucket] {
			parsed.DateRange = bucket
		}
	}
	return parsed
}
