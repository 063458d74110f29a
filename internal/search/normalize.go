package search

import (
	"fmt"
	"math"
	"strings"

	"github.com/Aman-CERP/amansearch/internal/query"
)

const (
	// fragmentSeparator joins multiple highlighted fragments of one field.
	fragmentSeparator = " ... "

	// highlightMark opens a highlighted span in an engine fragment.
	highlightMark = "<mark>"
)

// Normalizer maps raw engine hits to ResultRecords.
type Normalizer struct {
	highlight map[string]bool
	lists     map[string]bool
}

// NewNormalizer creates a normalizer for the configured highlight and list
// fields.
func NewNormalizer(config EngineConfig) *Normalizer {
	n := &Normalizer{
		highlight: make(map[string]bool, len(config.HighlightFields)),
		lists:     make(map[string]bool, len(config.ListFields)),
	}
	for _, f := range config.HighlightFields {
		n.highlight[f] = true
	}
	for _, f := range config.ListFields {
		n.lists[f] = true
	}
	return n
}

// Normalize builds the record for hit. Only fields the source document
// actually has are emitted.
func (n *Normalizer) Normalize(hit Hit, fields []string, spec query.QuerySpec) ResultRecord {
	rec := make(ResultRecord, len(fields))
	preferExact := len(spec.Phrases) > 0

	for _, field := range fields {
		if n.highlight[field] {
			if frag, ok := n.fragment(hit, field, preferExact); ok {
				rec[field] = frag
				continue
			}
		}

		raw, ok := hit.Fields[field]
		if !ok || raw == nil {
			continue
		}
		rec[field] = n.coerce(field, raw)
	}

	return rec
}

// NormalizeAll normalizes a page of hits in order.
func (n *Normalizer) NormalizeAll(hits []Hit, fields []string, spec query.QuerySpec) []ResultRecord {
	out := make([]ResultRecord, 0, len(hits))
	for _, h := range hits {
		out = append(out, n.Normalize(h, fields, spec))
	}
	return out
}

// fragment returns the highlighted value of field. With phrases the exact
// companion wins, so only the literal span is marked. Fragments without a
// marked span are ignored: the engine returns a leading excerpt for every
// requested field, matched or not.
func (n *Normalizer) fragment(hit Hit, field string, preferExact bool) (string, bool) {
	if len(hit.Fragments) == 0 {
		return "", false
	}

	order := []string{field, field + ExactSuffix}
	if preferExact {
		order = []string{field + ExactSuffix, field}
	}
	for _, name := range order {
		if frags := marked(hit.Fragments[name]); len(frags) > 0 {
			return strings.Join(frags, fragmentSeparator), true
		}
	}
	return "", false
}

func (n *Normalizer) coerce(field string, raw interface{}) interface{} {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(coerceScalar(item)))
		}
		return out
	case []string:
		return append([]string(nil), v...)
	}

	if n.lists[field] {
		if s, ok := raw.(string); ok {
			return []string{s}
		}
		return []string{fmt.Sprint(coerceScalar(raw))}
	}
	return coerceScalar(raw)
}

// coerceScalar turns whole float64 values back into integers. The engine
// stores every number as float64.
func coerceScalar(v interface{}) interface{} {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func marked(frags []string) []string {
	out := frags[:0:0]
	for _, f := range frags {
		if strings.Contains(f, highlightMark) {
			out = append(out, f)
		}
	}
	return out
}
