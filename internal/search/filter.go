package search

import (
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/amansearch/internal/query"
)

// Filters is the conjunctive filter clause: every Must query must match and
// no MustNot query may match.
type Filters struct {
	Must    []bquery.Query
	MustNot []bquery.Query
}

// FilterCompiler turns structured request filters and parsed site filters
// into engine filter clauses.
type FilterCompiler struct{}

// NewFilterCompiler creates a filter compiler.
func NewFilterCompiler() *FilterCompiler {
	return &FilterCompiler{}
}

// Compile builds the filter clause for a request. Language is always
// applied; every other filter only when present.
func (c *FilterCompiler) Compile(req Request, spec query.QuerySpec) Filters {
	var f Filters

	f.Must = append(f.Must, termQuery(FieldLanguage, req.Language))

	// Sorted for a deterministic query description in logs.
	fields := make([]string, 0, len(req.Facets))
	for field := range req.Facets {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if q := anyOf(field, req.Facets[field], false); q != nil {
			f.Must = append(f.Must, q)
		}
	}

	if q := anyOf(FieldTags, req.Tags, true); q != nil {
		f.Must = append(f.Must, q)
	}
	if q := anyOf(FieldTags, req.IgnoreTags, true); q != nil {
		f.MustNot = append(f.MustNot, q)
	}

	if q := dateRange(FieldChanged, req.MinTimestamp, req.MaxTimestamp); q != nil {
		f.Must = append(f.Must, q)
	}
	if q := dateRange(FieldCreated, req.MinTimestampCreated, req.MaxTimestampCreated); q != nil {
		f.Must = append(f.Must, q)
	}

	if len(spec.Include) > 0 {
		sites := make([]bquery.Query, 0, len(spec.Include))
		for _, sf := range spec.Include {
			sites = append(sites, siteQuery(sf))
		}
		f.Must = append(f.Must, bleve.NewDisjunctionQuery(sites...))
	}
	for _, sf := range spec.Exclude {
		f.MustNot = append(f.MustNot, siteQuery(sf))
	}

	return f
}

// anyOf matches documents whose field holds at least one of values, by exact
// term. Tag values are lower-cased to match the tag analyzer.
func anyOf(field string, values []string, lower bool) bquery.Query {
	terms := make([]bquery.Query, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		terms = append(terms, termQuery(field, v))
	}
	if len(terms) == 0 {
		return nil
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// dateRange bounds field inclusively on both sides. A nil bound is open.
// Documents without a value for field never match.
func dateRange(field string, from, to *time.Time) bquery.Query {
	if from == nil && to == nil {
		return nil
	}

	var start, end time.Time
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	inclusive := true
	q := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

// siteQuery matches a document whose host is covered by the filter host and,
// when the filter has a path, whose path starts with the filter's segments.
func siteQuery(sf query.SiteFilter) bquery.Query {
	host := termQuery(FieldDomainName, sf.Host)
	if sf.Path() == "" {
		return host
	}
	return bleve.NewConjunctionQuery(host, termQuery(FieldURLPath, sf.Path()))
}

func termQuery(field, term string) *bquery.TermQuery {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}
