package search

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aggNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestAggregationBuilder_Build(t *testing.T) {
	cfg := DefaultAggregationConfig()
	specs := NewAggregationBuilder(cfg).Build(aggNow)

	require.Len(t, specs, len(cfg.TermFields)+len(cfg.DateFields))
	for i, field := range cfg.TermFields {
		assert.Equal(t, field, specs[i].Field)
		assert.Equal(t, AggregationTerms, specs[i].Kind)
		assert.Equal(t, cfg.TermSize, specs[i].Size)
	}

	changed := specs[len(cfg.TermFields)]
	assert.Equal(t, FieldChanged, changed.Field)
	assert.Equal(t, AggregationDates, changed.Kind)
	require.Len(t, changed.Ranges, 3)

	week := changed.Ranges[0]
	assert.Equal(t, "Last Week", week.Label)
	assert.Equal(t, aggNow.AddDate(0, 0, -7), week.From)
	assert.Equal(t, aggNow, week.To)

	year := changed.Ranges[2]
	assert.Equal(t, "Last Year", year.Label)
	assert.Equal(t, aggNow.AddDate(0, 0, -365), year.From)
	assert.Equal(t, aggNow.AddDate(0, 0, -30), year.To)
}

func TestAggregationBuilder_Build_NoDateBuckets(t *testing.T) {
	cfg := DefaultAggregationConfig()
	cfg.DateBuckets = nil

	specs := NewAggregationBuilder(cfg).Build(aggNow)
	assert.Len(t, specs, len(cfg.TermFields))
}

func TestFacetRequests(t *testing.T) {
	assert.Nil(t, FacetRequests(nil))

	specs := NewAggregationBuilder(DefaultAggregationConfig()).Build(aggNow)
	facets := FacetRequests(specs)

	require.Contains(t, facets, FieldTags)
	assert.Equal(t, FieldTags, facets[FieldTags].Field)
	assert.Empty(t, facets[FieldTags].DateTimeRanges)

	require.Contains(t, facets, FieldChanged)
	assert.Len(t, facets[FieldChanged].DateTimeRanges, 3)
}

func TestFacetCounts_Add(t *testing.T) {
	fc := make(FacetCounts)
	fc.Add("tags", "health", 2)
	fc.Add("tags", "health", 3)
	fc.Add("tags", "empty", 0)

	assert.Equal(t, 5, fc["tags"]["health"])
	assert.NotContains(t, fc["tags"], "empty")
}

func TestAggregationBuilder_Buckets_Terms(t *testing.T) {
	b := NewAggregationBuilder(AggregationConfig{TermFields: []string{FieldTags}, TermSize: 2})
	specs := b.Build(aggNow)

	counts := FacetCounts{FieldTags: {"some": 2, "just": 2, "tags": 3, "rare": 1}}
	aggs := b.Buckets(specs, counts)

	require.Len(t, aggs, 1)
	assert.Equal(t, FieldTags, aggs[0].Field)
	assert.Equal(t, []AggregationBucket{
		{Key: "tags", DocCount: 3},
		{Key: "just", DocCount: 2},
	}, aggs[0].Buckets)
}

func TestAggregationBuilder_Buckets_Dates(t *testing.T) {
	b := NewAggregationBuilder(DefaultAggregationConfig())
	specs := b.Build(aggNow)

	counts := FacetCounts{FieldChanged: {"Last Week": 1, "Last Year": 4}}
	aggs := b.Buckets(specs, counts)

	require.Len(t, aggs, 1)
	require.Len(t, aggs[0].Buckets, 2, "zero-count buckets are omitted")

	week := aggs[0].Buckets[0]
	assert.Equal(t, "Last Week", week.Key)
	assert.Equal(t, 1, week.DocCount)
	assert.Equal(t, "10/8/2026", week.FromAsString)
	assert.Equal(t, "10/15/2026", week.ToAsString)
	require.NotNil(t, week.From)
	assert.Equal(t, aggNow.AddDate(0, 0, -7), *week.From)

	assert.Equal(t, "Last Year", aggs[0].Buckets[1].Key)
}

func TestAggregationBuilder_Buckets_EmptyNeverNil(t *testing.T) {
	b := NewAggregationBuilder(DefaultAggregationConfig())
	aggs := b.Buckets(b.Build(aggNow), FacetCounts{})

	assert.NotNil(t, aggs)
	assert.Empty(t, aggs)
}

func TestAggregation_MarshalJSON(t *testing.T) {
	agg := Aggregation{Field: "content_type", Buckets: []AggregationBucket{{Key: "article", DocCount: 2}}}

	data, err := json.Marshal(agg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content_type":[{"agg_key":"article","doc_count":2}]}`, string(data))
}
