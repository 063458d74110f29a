package output

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amansearch/internal/search"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// RenderHighlight replaces <mark> spans with the highlight style. Without
// color the span is wrapped in asterisks so matches stay visible.
func (w *Writer) RenderHighlight(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, markOpen)
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], markClose)
		if end < 0 {
			break
		}
		end += start

		b.WriteString(s[:start])
		span := s[start+len(markOpen) : end]
		if w.useColor {
			b.WriteString(w.styles.Highlight.Render(span))
		} else {
			b.WriteString("*" + span + "*")
		}
		s = s[end+len(markClose):]
	}
	b.WriteString(s)
	return b.String()
}

// Results prints a search response: suggestion, numbered hits with their
// highlighted title and description, then facet buckets.
func (w *Writer) Results(resp *search.Response, offset int) {
	if resp.Suggestion != nil {
		w.Statusf("💡", "Showing results for %s", w.RenderHighlight(resp.Suggestion.Highlighted))
	}
	if resp.Total == 0 {
		w.Status("🔍", "No results")
		return
	}

	w.Statusf("🔍", "%d results", resp.Total)
	w.Newline()
	for i, rec := range resp.Results {
		title := stringField(rec, search.FieldTitle)
		if title == "" {
			title = "(untitled)"
		}
		_, _ = fmt.Fprintf(w.out, "%3d. %s\n", offset+i+1, w.styles.Title.Render(w.RenderHighlight(title)))
		if path := stringField(rec, search.FieldPath); path != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Path.Render(path))
		}
		if desc := stringField(rec, search.FieldDescription); desc != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", w.RenderHighlight(desc))
		}
		if changed := stringField(rec, search.FieldChanged); changed != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Label.Render("changed "+changed))
		}
	}

	if len(resp.Aggregations) > 0 {
		w.Newline()
		for _, agg := range resp.Aggregations {
			_, _ = fmt.Fprintf(w.out, "%s\n", w.styles.Title.Render(agg.Field))
			for _, b := range agg.Buckets {
				w.KeyValue(b.Key, b.DocCount)
			}
		}
	}
}

func stringField(rec search.ResultRecord, name string) string {
	s, _ := rec[name].(string)
	return s
}
