package search

import (
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// DateFormat renders date bucket boundaries as month/day/year without zero
// padding, e.g. "1/2/2026".
const DateFormat = "1/2/2006"

// DateBucket is one row of the date bucket table: documents dated between
// FromDays and ToDays days before now. ToDays 0 means now.
type DateBucket struct {
	Label    string `yaml:"label" json:"label"`
	FromDays int    `yaml:"from_days" json:"from_days"`
	ToDays   int    `yaml:"to_days" json:"to_days"`
}

// AggregationConfig lists the facet fields and bucket boundaries.
type AggregationConfig struct {
	// TermFields get one bucket per distinct value.
	TermFields []string

	// DateFields get the labeled DateBuckets.
	DateFields []string

	// TermSize caps the buckets returned per term field.
	TermSize int

	// DateBuckets are non-overlapping; documents older than the last bucket
	// or without a date fall outside all of them and are not reported.
	DateBuckets []DateBucket
}

// DefaultAggregationConfig returns the default facet table.
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		TermFields: []string{
			"content_type", "mime_type", "created_by",
			"searchgov_custom1", "searchgov_custom2", "searchgov_custom3",
			FieldTags,
		},
		DateFields: []string{FieldChanged, FieldCreated},
		TermSize:   100,
		DateBuckets: []DateBucket{
			{Label: "Last Week", FromDays: 7, ToDays: 0},
			{Label: "Last Month", FromDays: 30, ToDays: 7},
			{Label: "Last Year", FromDays: 365, ToDays: 30},
		},
	}
}

// AggregationKind distinguishes categorical from temporal facets.
type AggregationKind int

const (
	AggregationTerms AggregationKind = iota
	AggregationDates
)

// DateRange is a date bucket resolved against a concrete "now".
type DateRange struct {
	Label string
	From  time.Time
	To    time.Time
}

// AggregationSpec describes one facet computation.
type AggregationSpec struct {
	Field  string
	Kind   AggregationKind
	Size   int
	Ranges []DateRange
}

// AggregationBuilder builds facet requests and turns counts back into
// labeled buckets.
type AggregationBuilder struct {
	config AggregationConfig
}

// NewAggregationBuilder creates a builder for the given facet table.
func NewAggregationBuilder(config AggregationConfig) *AggregationBuilder {
	return &AggregationBuilder{config: config}
}

// Build resolves the facet table against now. Term facets come first, in
// configuration order, followed by date facets.
func (b *AggregationBuilder) Build(now time.Time) []AggregationSpec {
	specs := make([]AggregationSpec, 0, len(b.config.TermFields)+len(b.config.DateFields))

	for _, field := range b.config.TermFields {
		specs = append(specs, AggregationSpec{
			Field: field,
			Kind:  AggregationTerms,
			Size:  b.config.TermSize,
		})
	}

	if len(b.config.DateBuckets) > 0 {
		ranges := make([]DateRange, 0, len(b.config.DateBuckets))
		for _, db := range b.config.DateBuckets {
			ranges = append(ranges, DateRange{
				Label: db.Label,
				From:  now.AddDate(0, 0, -db.FromDays),
				To:    now.AddDate(0, 0, -db.ToDays),
			})
		}
		for _, field := range b.config.DateFields {
			specs = append(specs, AggregationSpec{
				Field:  field,
				Kind:   AggregationDates,
				Size:   len(ranges),
				Ranges: ranges,
			})
		}
	}

	return specs
}

// FacetRequests converts specs to the engine's facet requests, keyed by field.
func FacetRequests(specs []AggregationSpec) bleve.FacetsRequest {
	if len(specs) == 0 {
		return nil
	}

	facets := make(bleve.FacetsRequest, len(specs))
	for _, spec := range specs {
		fr := bleve.NewFacetRequest(spec.Field, spec.Size)
		for _, r := range spec.Ranges {
			fr.AddDateTimeRange(r.Label, r.From, r.To)
		}
		facets[spec.Field] = fr
	}
	return facets
}

// FacetCounts holds document counts per field and bucket key, summed across
// every physical index a query ran on.
type FacetCounts map[string]map[string]int

// Add accumulates count for field/key.
func (fc FacetCounts) Add(field, key string, count int) {
	if count <= 0 {
		return
	}
	m, ok := fc[field]
	if !ok {
		m = make(map[string]int)
		fc[field] = m
	}
	m[key] += count
}

// Buckets turns merged counts into aggregations. Zero-count buckets and
// fields without buckets are omitted; the result is never nil.
func (b *AggregationBuilder) Buckets(specs []AggregationSpec, counts FacetCounts) []Aggregation {
	aggs := make([]Aggregation, 0, len(specs))

	for _, spec := range specs {
		byKey := counts[spec.Field]
		if len(byKey) == 0 {
			continue
		}

		var buckets []AggregationBucket
		switch spec.Kind {
		case AggregationDates:
			buckets = dateBuckets(spec.Ranges, byKey)
		default:
			buckets = termBuckets(byKey, spec.Size)
		}

		if len(buckets) > 0 {
			aggs = append(aggs, Aggregation{Field: spec.Field, Buckets: buckets})
		}
	}

	return aggs
}

// termBuckets orders by count descending, then key ascending.
func termBuckets(byKey map[string]int, size int) []AggregationBucket {
	buckets := make([]AggregationBucket, 0, len(byKey))
	for key, count := range byKey {
		if count > 0 {
			buckets = append(buckets, AggregationBucket{Key: key, DocCount: count})
		}
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key < buckets[j].Key
	})

	if size > 0 && len(buckets) > size {
		buckets = buckets[:size]
	}
	return buckets
}

// dateBuckets keeps the table order (most recent first).
func dateBuckets(ranges []DateRange, byKey map[string]int) []AggregationBucket {
	buckets := make([]AggregationBucket, 0, len(ranges))
	for _, r := range ranges {
		count := byKey[r.Label]
		if count <= 0 {
			continue
		}
		from, to := r.From, r.To
		buckets = append(buckets, AggregationBucket{
			Key:          r.Label,
			DocCount:     count,
			From:         &from,
			To:           &to,
			FromAsString: from.Format(DateFormat),
			ToAsString:   to.Format(DateFormat),
		})
	}
	return buckets
}
