package mcp

import (
	"time"

	"github.com/Aman-CERP/amansearch/internal/search"
)

// Tool and resource names.
const (
	ToolSearch      = "search"
	ToolCollections = "collections"

	QueryMetricsURI = "amansearch://query_metrics"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Handles    []string            `json:"handles" jsonschema:"collections to search, in order"`
	Query      string              `json:"query,omitempty" jsonschema:"query text; supports \"quoted phrases\", site:host/path and -site: operators"`
	Language   string              `json:"language,omitempty" jsonschema:"result language, default en"`
	Size       int                 `json:"size,omitempty" jsonschema:"page size, default from configuration"`
	Offset     int                 `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Include    []string            `json:"include,omitempty" jsonschema:"extra stored fields to return"`
	Tags       []string            `json:"tags,omitempty" jsonschema:"results must carry every one of these tags"`
	IgnoreTags []string            `json:"ignore_tags,omitempty" jsonschema:"results must carry none of these tags"`
	Facets     map[string][]string `json:"facets,omitempty" jsonschema:"facet field to accepted values (OR within a field)"`

	MinTimestamp        string `json:"min_timestamp,omitempty" jsonschema:"RFC3339 lower bound on the changed date"`
	MaxTimestamp        string `json:"max_timestamp,omitempty" jsonschema:"RFC3339 upper bound on the changed date"`
	MinTimestampCreated string `json:"min_timestamp_created,omitempty" jsonschema:"RFC3339 lower bound on the created date"`
	MaxTimestampCreated string `json:"max_timestamp_created,omitempty" jsonschema:"RFC3339 upper bound on the created date"`

	SortByDate bool `json:"sort_by_date,omitempty" jsonschema:"order by changed date, newest first"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Total        int                   `json:"total" jsonschema:"full match count"`
	Results      []search.ResultRecord `json:"results" jsonschema:"the requested page of results"`
	Aggregations []AggregationOutput   `json:"aggregations,omitempty" jsonschema:"facet buckets, present for free-text queries"`
	Suggestion   *search.Suggestion    `json:"suggestion,omitempty" jsonschema:"spelling the results were computed for, if the literal query found nothing"`
}

// AggregationOutput is one facet field with its buckets.
type AggregationOutput struct {
	Field   string         `json:"field"`
	Buckets []BucketOutput `json:"buckets"`
}

// BucketOutput is one facet value. Date buckets carry their bounds.
type BucketOutput struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
	From     string `json:"from,omitempty" jsonschema:"lower bound of a date bucket"`
	To       string `json:"to,omitempty" jsonschema:"upper bound of a date bucket"`
}

// CollectionsInput defines the input schema for the collections tool.
type CollectionsInput struct{}

// CollectionsOutput lists the handles the server can search.
type CollectionsOutput struct {
	Handles []string `json:"handles" jsonschema:"searchable collection handles"`
}

// toSearchOutput converts an engine response to the tool output schema.
func toSearchOutput(resp *search.Response) SearchOutput {
	out := SearchOutput{
		Total:      resp.Total,
		Results:    resp.Results,
		Suggestion: resp.Suggestion,
	}
	if out.Results == nil {
		out.Results = []search.ResultRecord{}
	}
	for _, agg := range resp.Aggregations {
		buckets := make([]BucketOutput, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			buckets = append(buckets, BucketOutput{
				Key:      b.Key,
				DocCount: b.DocCount,
				From:     b.FromAsString,
				To:       b.ToAsString,
			})
		}
		out.Aggregations = append(out.Aggregations, AggregationOutput{Field: agg.Field, Buckets: buckets})
	}
	return out
}

// toRequest builds an engine request. An unset size falls back to
// defaultSize; larger sizes are clamped to maxSize.
func (in SearchInput) toRequest(defaultSize, maxSize int) (search.Request, error) {
	req := search.Request{
		Handles:    in.Handles,
		Language:   in.Language,
		Query:      in.Query,
		Size:       clampLimit(in.Size, defaultSize, 1, maxSize),
		Offset:     in.Offset,
		Include:    in.Include,
		Tags:       in.Tags,
		IgnoreTags: in.IgnoreTags,
		Facets:     in.Facets,
		SortByDate: in.SortByDate,
	}
	bounds := []struct {
		name  string
		value string
		dst   **time.Time
	}{
		{"min_timestamp", in.MinTimestamp, &req.MinTimestamp},
		{"max_timestamp", in.MaxTimestamp, &req.MaxTimestamp},
		{"min_timestamp_created", in.MinTimestampCreated, &req.MinTimestampCreated},
		{"max_timestamp_created", in.MaxTimestampCreated, &req.MaxTimestampCreated},
	}
	for _, b := range bounds {
		if b.value == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, b.value)
		if err != nil {
			return search.Request{}, NewInvalidParamsError(b.name + " must be an RFC3339 timestamp")
		}
		*b.dst = &ts
	}
	return req, nil
}
