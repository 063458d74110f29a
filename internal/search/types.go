package search

import (
	"encoding/json"
	"time"
)

// Indexed field names shared by the compiler, the normalizer and the index
// mapping in internal/store.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldContent      = "content"
	FieldPath         = "path"
	FieldLanguage     = "language"
	FieldCreated      = "created"
	FieldChanged      = "changed"
	FieldThumbnailURL = "thumbnail_url"
	FieldTags         = "tags"
	FieldPromote      = "promote"
	FieldClickCount   = "click_count"

	// Derived at index time from path.
	FieldDomainName = "domain_name"
	FieldURLPath    = "url_path"
	FieldExtension  = "extension"

	// ExactSuffix names the unstemmed companion of a text field.
	ExactSuffix = "_exact"
)

// DefaultLanguage is applied when a request carries no language.
const DefaultLanguage = "en"

// Request is the caller's search intent. It is immutable once submitted.
type Request struct {
	// Handles are the logical collections to search, in order. Required.
	Handles []string `json:"handles"`

	// Language filters results; defaults to "en".
	Language string `json:"language,omitempty"`

	// Query is the raw query string, including site: operators and quoted phrases.
	Query string `json:"query,omitempty"`

	Size   int `json:"size"`
	Offset int `json:"offset"`

	// Include lists extra stored fields to return besides the defaults.
	Include []string `json:"include,omitempty"`

	Tags       []string `json:"tags,omitempty"`
	IgnoreTags []string `json:"ignore_tags,omitempty"`

	// Facets maps a facet field to the values it must match (OR within a field).
	Facets map[string][]string `json:"facets,omitempty"`

	MinTimestamp        *time.Time `json:"min_timestamp,omitempty"`
	MaxTimestamp        *time.Time `json:"max_timestamp,omitempty"`
	MinTimestampCreated *time.Time `json:"min_timestamp_created,omitempty"`
	MaxTimestampCreated *time.Time `json:"max_timestamp_created,omitempty"`

	// SortByDate orders by changed date, newest first, instead of relevance.
	SortByDate bool `json:"sort_by_date,omitempty"`
}

// Response is the final search output.
type Response struct {
	// Total is the full match count, independent of the pagination window.
	Total int `json:"total"`

	Results []ResultRecord `json:"results"`

	// Aggregations is nil when the request had no free-text query.
	Aggregations []Aggregation `json:"aggregations"`

	// Suggestion is set only when the literal query found nothing and the
	// suggested spelling did.
	Suggestion *Suggestion `json:"suggestion"`
}

// emptyResponse is the degraded response returned on engine failure.
func emptyResponse() *Response {
	return &Response{Results: []ResultRecord{}}
}

// ResultRecord is one normalized hit, keyed by field name.
type ResultRecord map[string]any

// Aggregation holds the buckets computed for one facet field.
type Aggregation struct {
	Field   string
	Buckets []AggregationBucket
}

// MarshalJSON renders the aggregation as {"<field>": [buckets...]}.
func (a Aggregation) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]AggregationBucket{a.Field: a.Buckets})
}

// AggregationBucket is one facet value with its document count. Date buckets
// also carry their time boundaries.
type AggregationBucket struct {
	Key      string `json:"agg_key"`
	DocCount int    `json:"doc_count"`

	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	FromAsString string     `json:"from_as_string,omitempty"`
	ToAsString   string     `json:"to_as_string,omitempty"`
}

// Suggestion is an alternate spelling of the query.
type Suggestion struct {
	Text        string `json:"text"`
	Highlighted string `json:"highlighted"`
}

// EngineConfig configures the search pipeline.
type EngineConfig struct {
	// MaxSize caps the page size a caller may request.
	MaxSize int

	// MaxOffset rejects deeper pagination. 0 disables the check.
	MaxOffset int

	// MaxQueryLength rejects longer raw query strings. 0 disables the check.
	MaxQueryLength int

	// Timeout bounds one engine round trip, including fan-out.
	Timeout time.Duration

	// MaxConcurrency bounds parallel per-index sub-queries.
	MaxConcurrency int

	// Suggest enables the zero-result spelling fallback.
	Suggest bool

	// DefaultFields are returned for every hit when present in the source.
	DefaultFields []string

	// HighlightFields are replaced by highlighted fragments when they match.
	HighlightFields []string

	// ListFields are always returned as string lists.
	ListFields []string

	Ranking     RankingConfig
	Aggregation AggregationConfig
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		MaxSize:        100,
		MaxOffset:      10000,
		MaxQueryLength: 2048,
		Timeout:        5 * time.Second,
		MaxConcurrency: 4,
		Suggest:        true,
		DefaultFields: []string{
			FieldTitle, FieldPath, FieldCreated, FieldChanged,
			FieldLanguage, FieldDescription, FieldThumbnailURL,
		},
		HighlightFields: []string{FieldTitle, FieldDescription, FieldContent},
		ListFields:      []string{FieldTags},
		Ranking:         DefaultRankingConfig(),
		Aggregation:     DefaultAggregationConfig(),
	}
}
