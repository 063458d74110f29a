package search

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/blevesearch/bleve/v2"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/amansearch/internal/query"
)

// CompiledQuery is the engine-ready description of one search. It is
// immutable once built; every physical index gets its own SearchRequest.
type CompiledQuery struct {
	spec         query.QuerySpec
	relevance    Relevance
	filters      Filters
	aggregations []AggregationSpec
	fields       []string
	highlight    []string
	offset       int
	size         int
	sortByDate   bool
	ranking      RankingConfig
	rescore      bool // add the click bonus when merging
}

// Spec returns the parsed query the compiled query was built from.
func (c *CompiledQuery) Spec() query.QuerySpec { return c.spec }

// Aggregations returns the facet specs, or nil when aggregations are suppressed.
func (c *CompiledQuery) Aggregations() []AggregationSpec { return c.aggregations }

// Fields returns the stored fields requested for each hit.
func (c *CompiledQuery) Fields() []string { return c.fields }

// Window returns the pagination offset and size.
func (c *CompiledQuery) Window() (offset, size int) { return c.offset, c.size }

// SortByDate reports whether hits are ordered by changed date.
func (c *CompiledQuery) SortByDate() bool { return c.sortByDate }

// Query assembles the full boolean query: relevance and filters must match,
// exclusions must not, boosts only add score.
func (c *CompiledQuery) Query() bquery.Query {
	bq := bleve.NewBooleanQuery()
	if must := append(append([]bquery.Query(nil), c.relevance.Must...), c.filters.Must...); len(must) > 0 {
		bq.AddMust(must...)
	}
	if len(c.filters.MustNot) > 0 {
		bq.AddMustNot(c.filters.MustNot...)
	}
	if len(c.relevance.Should) > 0 {
		bq.AddShould(c.relevance.Should...)
	}
	return bq
}

// SearchRequest builds a fresh engine request covering [0, offset+size) so
// per-index results can be merged before the window is applied. With click
// rescoring at least RescoreWindow hits are fetched, and click_count is
// loaded for every hit.
func (c *CompiledQuery) SearchRequest() *bleve.SearchRequest {
	req := bleve.NewSearchRequestOptions(c.Query(), c.fetchSize(), 0, false)
	req.Fields = append([]string(nil), c.fields...)
	if c.rescore && !slices.Contains(req.Fields, FieldClickCount) {
		req.Fields = append(req.Fields, FieldClickCount)
	}
	req.Facets = FacetRequests(c.aggregations)

	if len(c.highlight) > 0 {
		hl := bleve.NewHighlightWithStyle(html.Name)
		for _, f := range c.highlight {
			hl.AddField(f)
		}
		req.Highlight = hl
	}

	if c.sortByDate {
		req.SortByCustom(bsearch.SortOrder{
			&bsearch.SortField{
				Field:   FieldChanged,
				Desc:    true,
				Type:    bsearch.SortFieldAsDate,
				Missing: bsearch.SortFieldMissingLast,
			},
			&bsearch.SortScore{Desc: true},
		})
	}

	return req
}

func (c *CompiledQuery) fetchSize() int {
	n := c.offset + c.size
	if c.rescore && !c.sortByDate && n < c.ranking.RescoreWindow {
		n = c.ranking.RescoreWindow
	}
	return n
}

// MarshalJSON describes the query for diagnostics.
func (c *CompiledQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Query        bquery.Query `json:"query"`
		Offset       int          `json:"offset"`
		Size         int          `json:"size"`
		SortByDate   bool         `json:"sort_by_date,omitempty"`
		Aggregations int          `json:"aggregations"`
	}{c.Query(), c.offset, c.size, c.sortByDate, len(c.aggregations)})
}

// Compiler composes the parser output, filters, ranking and aggregations
// into one CompiledQuery.
type Compiler struct {
	config   RankingConfig
	filters  *FilterCompiler
	ranking  *RankingComposer
	aggs     *AggregationBuilder
	defaults []string
	hlFields []string
}

// NewCompiler creates a compiler from the pipeline configuration.
func NewCompiler(config EngineConfig, analyzer Analyzer) *Compiler {
	return &Compiler{
		config:   config.Ranking,
		filters:  NewFilterCompiler(),
		ranking:  NewRankingComposer(config.Ranking, analyzer),
		aggs:     NewAggregationBuilder(config.Aggregation),
		defaults: config.DefaultFields,
		hlFields: config.HighlightFields,
	}
}

// Compile builds the query for req using an already parsed spec. Aggregations
// are only requested when the query has free text.
func (c *Compiler) Compile(req Request, spec query.QuerySpec, now time.Time) *CompiledQuery {
	cq := &CompiledQuery{
		spec:       spec,
		relevance:  c.ranking.Compose(spec),
		filters:    c.filters.Compile(req, spec),
		fields:     mergeFields(c.defaults, req.Include),
		offset:     req.Offset,
		size:       req.Size,
		sortByDate: req.SortByDate,
		ranking:    c.config,
	}

	if spec.HasText() {
		cq.rescore = c.config.ClickWeight > 0
		cq.aggregations = c.aggs.Build(now)
		for _, f := range c.hlFields {
			cq.highlight = append(cq.highlight, f, f+ExactSuffix)
		}
	}

	return cq
}

// mergeFields returns defaults followed by any extra include fields, without
// duplicates.
func mergeFields(defaults, include []string) []string {
	seen := make(map[string]struct{}, len(defaults)+len(include))
	out := make([]string, 0, len(defaults)+len(include))
	for _, list := range [][]string{defaults, include} {
		for _, f := range list {
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
