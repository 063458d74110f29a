package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amansearch/internal/search"
)

var markReplacer = strings.NewReplacer("<mark>", "**", "</mark>", "**")

// FormatSearchResults formats a search response as markdown. offset numbers
// the hits by their position in the full result list.
func FormatSearchResults(query string, resp *search.Response, offset int) string {
	var sb strings.Builder

	if resp.Suggestion != nil {
		sb.WriteString(fmt.Sprintf("Showing results for \"%s\"\n\n", resp.Suggestion.Text))
	}

	if resp.Total == 0 {
		if query == "" {
			sb.WriteString("No results found")
		} else {
			sb.WriteString(fmt.Sprintf("No results found for \"%s\"", query))
		}
		return sb.String()
	}

	if query == "" {
		sb.WriteString("## Search Results\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	}
	sb.WriteString(fmt.Sprintf("Found %d result", resp.Total))
	if resp.Total != 1 {
		sb.WriteString("s")
	}
	if len(resp.Results) > 0 && len(resp.Results) < resp.Total {
		sb.WriteString(fmt.Sprintf(", showing %d-%d", offset+1, offset+len(resp.Results)))
	}
	sb.WriteString("\n\n")

	for i, rec := range resp.Results {
		formatRecord(&sb, offset+i+1, rec)
	}

	formatAggregations(&sb, resp.Aggregations)
	return sb.String()
}

func formatRecord(sb *strings.Builder, num int, rec search.ResultRecord) {
	title := recordString(rec, search.FieldTitle)
	if title == "" {
		title = "(untitled)"
	}
	sb.WriteString(fmt.Sprintf("### %d. %s\n\n", num, markReplacer.Replace(title)))

	if path := recordString(rec, search.FieldPath); path != "" {
		sb.WriteString(fmt.Sprintf("`%s`\n\n", path))
	}
	if desc := recordString(rec, search.FieldDescription); desc != "" {
		sb.WriteString(markReplacer.Replace(desc))
		sb.WriteString("\n\n")
	}
	if changed := recordString(rec, search.FieldChanged); changed != "" {
		sb.WriteString(fmt.Sprintf("Changed: %s\n\n", changed))
	}
}

func formatAggregations(sb *strings.Builder, aggs []search.Aggregation) {
	if len(aggs) == 0 {
		return
	}
	sb.WriteString("## Facets\n\n")
	for _, agg := range aggs {
		sb.WriteString(fmt.Sprintf("**%s**\n", agg.Field))
		for _, b := range agg.Buckets {
			sb.WriteString(fmt.Sprintf("- %s (%d)\n", b.Key, b.DocCount))
		}
		sb.WriteString("\n")
	}
}

// recordString returns a field as text. Multi-valued fields are joined.
func recordString(rec search.ResultRecord, field string) string {
	switch v := rec[field].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " … ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " … ")
	default:
		return ""
	}
}

// clampLimit constrains a limit value within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
