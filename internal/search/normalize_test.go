package search

import (
	"testing"

	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amansearch/internal/query"
)

func hitWithFragments(fields map[string]interface{}, frags bsearch.FieldFragmentMap) Hit {
	return Hit{DocumentMatch: &bsearch.DocumentMatch{ID: "1", Fields: fields, Fragments: frags}}
}

func TestNormalizer_RawFields(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	h := hitWithFragments(map[string]interface{}{
		FieldTitle:      "Passport renewal",
		FieldPath:       "https://a.gov/p",
		FieldClickCount: 12.0,
		"score":         0.5,
		FieldLanguage:   nil,
	}, nil)

	rec := n.Normalize(h, []string{FieldTitle, FieldPath, FieldClickCount, "score", FieldLanguage, FieldDescription}, query.QuerySpec{})

	assert.Equal(t, ResultRecord{
		FieldTitle:      "Passport renewal",
		FieldPath:       "https://a.gov/p",
		FieldClickCount: int64(12),
		"score":         0.5,
	}, rec)
}

func TestNormalizer_ListFields(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	single := n.Normalize(hitWithFragments(map[string]interface{}{FieldTags: "health"}, nil), []string{FieldTags}, query.QuerySpec{})
	assert.Equal(t, []string{"health"}, single[FieldTags])

	multi := n.Normalize(hitWithFragments(map[string]interface{}{FieldTags: []interface{}{"a", "b"}}, nil), []string{FieldTags}, query.QuerySpec{})
	assert.Equal(t, []string{"a", "b"}, multi[FieldTags])

	other := n.Normalize(hitWithFragments(map[string]interface{}{"searchgov_custom1": []interface{}{"x", 2.0}}, nil), []string{"searchgov_custom1"}, query.QuerySpec{})
	assert.Equal(t, []string{"x", "2"}, other["searchgov_custom1"])
}

func TestNormalizer_Highlight(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	fields := map[string]interface{}{
		FieldTitle:   "Health care benefits",
		FieldContent: "Long content about care",
	}

	tests := []struct {
		name  string
		frags bsearch.FieldFragmentMap
		spec  query.QuerySpec
		want  string
	}{
		{
			name:  "stemmed fragment",
			frags: bsearch.FieldFragmentMap{FieldTitle: {"<mark>Health</mark> care benefits"}},
			spec:  query.QuerySpec{Text: "health"},
			want:  "<mark>Health</mark> care benefits",
		},
		{
			name: "exact fragment preferred for phrases",
			frags: bsearch.FieldFragmentMap{
				FieldTitle:               {"<mark>Health</mark> <mark>care</mark> <mark>benefits</mark>"},
				FieldTitle + ExactSuffix: {"<mark>Health</mark> <mark>care</mark> benefits"},
			},
			spec: query.QuerySpec{Phrases: []string{"health care"}},
			want: "<mark>Health</mark> <mark>care</mark> benefits",
		},
		{
			name:  "exact fragment used when stemmed one is missing",
			frags: bsearch.FieldFragmentMap{FieldTitle + ExactSuffix: {"<mark>Health</mark> care benefits"}},
			spec:  query.QuerySpec{Text: "health"},
			want:  "<mark>Health</mark> care benefits",
		},
		{
			name:  "fragments joined",
			frags: bsearch.FieldFragmentMap{FieldTitle: {"first <mark>a</mark>", " ", "second <mark>a</mark>"}},
			spec:  query.QuerySpec{Text: "a"},
			want:  "first <mark>a</mark> ... second <mark>a</mark>",
		},
		{
			name:  "unmarked excerpt ignored",
			frags: bsearch.FieldFragmentMap{FieldTitle: {"Health care benefits"}},
			spec:  query.QuerySpec{Text: "care"},
			want:  "Health care benefits",
		},
		{
			name:  "raw value without fragments",
			frags: bsearch.FieldFragmentMap{FieldContent: {"about <mark>care</mark>"}},
			spec:  query.QuerySpec{Text: "care"},
			want:  "Health care benefits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := n.Normalize(hitWithFragments(fields, tt.frags), []string{FieldTitle}, tt.spec)
			assert.Equal(t, tt.want, rec[FieldTitle])
		})
	}
}

func TestNormalizer_HighlightOnlyForConfiguredFields(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	h := hitWithFragments(
		map[string]interface{}{FieldPath: "https://a.gov/care"},
		bsearch.FieldFragmentMap{FieldPath: {"https://a.gov/<mark>care</mark>"}},
	)

	rec := n.Normalize(h, []string{FieldPath}, query.QuerySpec{Text: "care"})
	assert.Equal(t, "https://a.gov/care", rec[FieldPath])
}

func TestNormalizer_NormalizeAll(t *testing.T) {
	n := NewNormalizer(DefaultConfig())

	assert.Equal(t, []ResultRecord{}, n.NormalizeAll(nil, []string{FieldTitle}, query.QuerySpec{}))

	hits := []Hit{
		hitWithFragments(map[string]interface{}{FieldTitle: "one"}, nil),
		hitWithFragments(map[string]interface{}{FieldTitle: "two"}, nil),
	}
	recs := n.NormalizeAll(hits, []string{FieldTitle}, query.QuerySpec{})
	assert.Equal(t, "one", recs[0][FieldTitle])
	assert.Equal(t, "two", recs[1][FieldTitle])
}
