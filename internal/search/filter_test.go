package search

import (
	"testing"
	"time"

	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansearch/internal/query"
)

func TestFilterCompiler_LanguageAlwaysApplied(t *testing.T) {
	f := NewFilterCompiler().Compile(Request{Language: "es"}, query.QuerySpec{})

	require.Len(t, f.Must, 1)
	tq, ok := f.Must[0].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, FieldLanguage, tq.Field())
	assert.Equal(t, "es", tq.Term)
	assert.Empty(t, f.MustNot)
}

func TestFilterCompiler_Facets(t *testing.T) {
	req := Request{
		Language: "en",
		Facets: map[string][]string{
			"searchgov_custom1": {"Alpha", " "},
			"content_type":      {"article", "form"},
			"mime_type":         {},
		},
	}

	f := NewFilterCompiler().Compile(req, query.QuerySpec{})

	// language + two non-empty facets, in field order
	require.Len(t, f.Must, 3)

	ct, ok := f.Must[1].(*bquery.DisjunctionQuery)
	require.True(t, ok, "multiple values are OR'd")
	assert.Len(t, ct.Disjuncts, 2)

	custom, ok := f.Must[2].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "searchgov_custom1", custom.Field())
	assert.Equal(t, "Alpha", custom.Term, "facet values keep their case")
}

func TestFilterCompiler_Tags(t *testing.T) {
	req := Request{
		Language:   "en",
		Tags:       []string{"Health"},
		IgnoreTags: []string{"Archive", "Draft"},
	}

	f := NewFilterCompiler().Compile(req, query.QuerySpec{})

	require.Len(t, f.Must, 2)
	tag, ok := f.Must[1].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, FieldTags, tag.Field())
	assert.Equal(t, "health", tag.Term)

	require.Len(t, f.MustNot, 1)
	ignored, ok := f.MustNot[0].(*bquery.DisjunctionQuery)
	require.True(t, ok)
	assert.Len(t, ignored.Disjuncts, 2)
}

func TestFilterCompiler_DateRanges(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{"changed both bounds", Request{MinTimestamp: &from, MaxTimestamp: &to}, FieldChanged},
		{"changed lower bound", Request{MinTimestamp: &from}, FieldChanged},
		{"created upper bound", Request{MaxTimestampCreated: &to}, FieldCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Language = "en"
			f := NewFilterCompiler().Compile(tt.req, query.QuerySpec{})

			require.Len(t, f.Must, 2)
			dq, ok := f.Must[1].(*bquery.DateRangeQuery)
			require.True(t, ok)
			assert.Equal(t, tt.wantField, dq.Field())
		})
	}
}

func TestFilterCompiler_SiteFilters(t *testing.T) {
	spec := query.Parse("benefits (site:agency.gov/dir1 OR site:other.gov) (-site:agency.gov/dir1/old)")
	require.Len(t, spec.Include, 2)
	require.Len(t, spec.Exclude, 1)

	f := NewFilterCompiler().Compile(Request{Language: "en"}, spec)

	// language + the OR'd inclusions
	require.Len(t, f.Must, 2)
	incl, ok := f.Must[1].(*bquery.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, incl.Disjuncts, 2)

	withPath, ok := incl.Disjuncts[0].(*bquery.ConjunctionQuery)
	require.True(t, ok)
	require.Len(t, withPath.Conjuncts, 2)
	host := withPath.Conjuncts[0].(*bquery.TermQuery)
	assert.Equal(t, FieldDomainName, host.Field())
	assert.Equal(t, "agency.gov", host.Term)
	path := withPath.Conjuncts[1].(*bquery.TermQuery)
	assert.Equal(t, FieldURLPath, path.Field())
	assert.Equal(t, "/dir1", path.Term)

	hostOnly, ok := incl.Disjuncts[1].(*bquery.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "other.gov", hostOnly.Term)

	require.Len(t, f.MustNot, 1)
	excl, ok := f.MustNot[0].(*bquery.ConjunctionQuery)
	require.True(t, ok)
	assert.Equal(t, "/dir1/old", excl.Conjuncts[1].(*bquery.TermQuery).Term)
}
