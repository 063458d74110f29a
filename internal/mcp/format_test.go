package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amansearch/internal/search"
)

func TestFormatSearchResults_Basic(t *testing.T) {
	// Given: a response with one highlighted hit
	resp := &search.Response{
		Total: 1,
		Results: []search.ResultRecord{{
			search.FieldTitle:       "Monthly <mark>billing</mark> report",
			search.FieldPath:        "https://docs.example.com/billing/report",
			search.FieldDescription: "How the <mark>billing</mark> run works",
			search.FieldChanged:     "2026-09-30T10:00:00Z",
		}},
	}

	// When: formatting
	md := FormatSearchResults("billing", resp, 0)

	// Then: marks become bold and every field is rendered
	assert.Contains(t, md, `## Search Results for "billing"`)
	assert.Contains(t, md, "Found 1 result\n")
	assert.Contains(t, md, "### 1. Monthly **billing** report")
	assert.Contains(t, md, "`https://docs.example.com/billing/report`")
	assert.Contains(t, md, "How the **billing** run works")
	assert.Contains(t, md, "Changed: 2026-09-30T10:00:00Z")
	assert.NotContains(t, md, "<mark>")
}

func TestFormatSearchResults_PageWindow(t *testing.T) {
	// Given: the second page of a larger result set
	resp := &search.Response{
		Total:   25,
		Results: []search.ResultRecord{{search.FieldTitle: "eleventh"}, {}},
	}

	// When: formatting with offset 10
	md := FormatSearchResults("q", resp, 10)

	// Then: numbering continues from the offset
	assert.Contains(t, md, "Found 25 results, showing 11-12")
	assert.Contains(t, md, "### 11. eleventh")
	assert.Contains(t, md, "### 12. (untitled)")
}

func TestFormatSearchResults_NoResults(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"with query", "nothing", `No results found for "nothing"`},
		{"browse", "", "No results found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := FormatSearchResults(tt.query, &search.Response{Results: []search.ResultRecord{}}, 0)
			assert.Equal(t, tt.want, md)
		})
	}
}

func TestFormatSearchResults_Suggestion(t *testing.T) {
	resp := &search.Response{
		Total:      1,
		Results:    []search.ResultRecord{{search.FieldTitle: "Billing"}},
		Suggestion: &search.Suggestion{Text: "billing", Highlighted: "<mark>billing</mark>"},
	}

	md := FormatSearchResults("biling", resp, 0)

	assert.True(t, strings.HasPrefix(md, `Showing results for "billing"`))
}

func TestFormatSearchResults_Aggregations(t *testing.T) {
	resp := &search.Response{
		Total:   3,
		Results: []search.ResultRecord{{search.FieldTitle: "a"}},
		Aggregations: []search.Aggregation{
			{Field: "tags", Buckets: []search.AggregationBucket{{Key: "finance", DocCount: 2}, {Key: "ops", DocCount: 1}}},
		},
	}

	md := FormatSearchResults("a", resp, 0)

	assert.Contains(t, md, "## Facets")
	assert.Contains(t, md, "**tags**\n- finance (2)\n- ops (1)\n")
}

func TestRecordString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "x", "x"},
		{"string slice", []string{"a", "b"}, "a … b"},
		{"any slice", []any{"a", 1, "b"}, "a … b"},
		{"number", 3.0, ""},
		{"missing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := search.ResultRecord{}
			if tt.value != nil {
				rec["f"] = tt.value
			}
			assert.Equal(t, tt.want, recordString(rec, "f"))
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 20},
		{"negative uses default", -5, 20},
		{"within bounds", 7, 7},
		{"above max", 500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit, 20, 1, 100))
		})
	}
}
