package search

import (
	"encoding/json"
	"testing"

	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansearch/internal/query"
)

func compileFor(t *testing.T, req Request) *CompiledQuery {
	t.Helper()
	req, err := prepareRequest(req, DefaultConfig())
	require.NoError(t, err)
	return NewCompiler(DefaultConfig(), fakeAnalyzer{}).Compile(req, query.Parse(req.Query), aggNow)
}

func TestCompiler_TextQuery(t *testing.T) {
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "passport", Size: 10, Offset: 20})

	assert.Equal(t, "passport", cq.Spec().Text)
	assert.NotEmpty(t, cq.Aggregations())
	offset, size := cq.Window()
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, size)

	req := cq.SearchRequest()
	assert.Equal(t, DefaultConfig().Ranking.RescoreWindow, req.Size, "text queries fetch the rescore window")
	assert.Contains(t, req.Fields, FieldClickCount)
	assert.Equal(t, 0, req.From)
	require.NotNil(t, req.Highlight)
	assert.Contains(t, req.Highlight.Fields, FieldTitle)
	assert.Contains(t, req.Highlight.Fields, FieldTitle+ExactSuffix)
	assert.Len(t, req.Facets, len(cq.Aggregations()))
}

func TestCompiledQuery_FetchSize(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		clickWeight float64
		want        int
	}{
		{"text query below the rescore window", Request{Query: "passport", Size: 10, Offset: 20}, 0.1, 100},
		{"text query past the rescore window", Request{Query: "passport", Size: 50, Offset: 120}, 0.1, 170},
		{"click bonus disabled", Request{Query: "passport", Size: 10, Offset: 20}, 0, 30},
		{"browse query", Request{Size: 10, Offset: 20}, 0.1, 30},
		{"sorted by date", Request{Query: "passport", Size: 10, Offset: 20, SortByDate: true}, 0.1, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Ranking.ClickWeight = tt.clickWeight
			tt.req.Handles = []string{"docs"}
			req, err := prepareRequest(tt.req, cfg)
			require.NoError(t, err)

			cq := NewCompiler(cfg, fakeAnalyzer{}).Compile(req, query.Parse(req.Query), aggNow)

			assert.Equal(t, tt.want, cq.SearchRequest().Size)
		})
	}
}

func TestCompiler_BrowseQuery(t *testing.T) {
	cq := compileFor(t, Request{Handles: []string{"docs"}, Size: 10})

	assert.Nil(t, cq.Aggregations())
	req := cq.SearchRequest()
	assert.Nil(t, req.Highlight)
	assert.Nil(t, req.Facets)
}

func TestCompiler_FieldsMergedWithoutDuplicates(t *testing.T) {
	cq := compileFor(t, Request{
		Handles: []string{"docs"},
		Include: []string{"content_type", FieldTitle, "", "tags"},
	})

	fields := cq.Fields()
	assert.Equal(t, DefaultConfig().DefaultFields, fields[:len(DefaultConfig().DefaultFields)])
	assert.Equal(t, []string{"content_type", "tags"}, fields[len(DefaultConfig().DefaultFields):])
	assert.Equal(t, fields, cq.SearchRequest().Fields)
}

func TestCompiler_SortByDate(t *testing.T) {
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "budget", SortByDate: true})

	assert.True(t, cq.SortByDate())
	req := cq.SearchRequest()
	require.Len(t, req.Sort, 2)
	sf, ok := req.Sort[0].(*bsearch.SortField)
	require.True(t, ok)
	assert.Equal(t, FieldChanged, sf.Field)
	assert.True(t, sf.Desc)
	assert.Equal(t, bsearch.SortFieldMissingLast, sf.Missing)
}

func TestCompiler_FreshRequestPerCall(t *testing.T) {
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "budget", Size: 5})

	a := cq.SearchRequest()
	b := cq.SearchRequest()
	assert.NotSame(t, a, b)
	a.Fields[0] = "mutated"
	assert.NotEqual(t, "mutated", b.Fields[0])
	assert.NotEqual(t, "mutated", cq.Fields()[0])
}

func TestCompiledQuery_MarshalJSON(t *testing.T) {
	cq := compileFor(t, Request{Handles: []string{"docs"}, Query: "budget (site:agency.gov)", Size: 5})

	data, err := json.Marshal(cq)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "query")
	assert.Equal(t, float64(5), decoded["size"])
	assert.Contains(t, string(data), "agency.gov")
}

func TestMergeFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeFields([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{}, mergeFields(nil, nil))
}
