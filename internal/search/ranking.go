package search

import (
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/amansearch/internal/query"
)

// FieldWeight is one row of the field weighting table.
type FieldWeight struct {
	Field  string  `yaml:"field" json:"field"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// MinShouldMatch decides how many analyzed terms a document must match.
//
//	n <= AllBelow             all terms
//	n <= OneMissingBelow      n-1 terms
//	otherwise                 ceil(Ratio * n)
type MinShouldMatch struct {
	AllBelow        int     `yaml:"all_below" json:"all_below"`
	OneMissingBelow int     `yaml:"one_missing_below" json:"one_missing_below"`
	Ratio           float64 `yaml:"ratio" json:"ratio"`
}

// Required returns the number of terms that must match out of n.
func (m MinShouldMatch) Required(n int) int {
	switch {
	case n <= 0:
		return 0
	case n <= m.AllBelow:
		return n
	case n <= m.OneMissingBelow:
		return n - 1
	}
	req := int(math.Ceil(m.Ratio * float64(n)))
	if req < 1 {
		req = 1
	}
	if req > n {
		req = n
	}
	return req
}

// RankingConfig is the reviewable table of ranking weights and boosts.
type RankingConfig struct {
	// Fields is ordered from highest to lowest weight.
	Fields []FieldWeight

	// PhraseBoost multiplies field weights for quoted exact phrases.
	PhraseBoost float64

	// TagBoost applies when the whole query equals a tag.
	TagBoost float64

	// PromoteBoost applies to documents flagged promote=true.
	PromoteBoost float64

	// ClickWeight scales the popularity bonus ClickWeight*ln(1+click_count)
	// added to each hit's score when results are merged. The bonus grows
	// strictly with the count; a document without one gets none.
	ClickWeight float64

	// RescoreWindow is the minimum number of hits fetched per index so the
	// popularity bonus can lift a document into the requested page.
	RescoreWindow int

	// DemotedExtensions lose DemotionBonus, which every other document gets.
	DemotedExtensions []string
	DemotionBonus     float64

	MinShouldMatch MinShouldMatch
}

// DefaultRankingConfig returns the default ranking table.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		Fields: []FieldWeight{
			{Field: FieldTitle, Weight: 4},
			{Field: FieldDescription, Weight: 2},
			{Field: FieldContent, Weight: 1},
		},
		PhraseBoost:   3,
		TagBoost:      8,
		PromoteBoost:  10,
		ClickWeight:   0.1,
		RescoreWindow: 100,
		DemotedExtensions: []string{"doc", "docx", "pdf", "ppt", "pptx", "xls", "xlsx"},
		DemotionBonus:     1,
		MinShouldMatch: MinShouldMatch{
			AllBelow:        2,
			OneMissingBelow: 5,
			Ratio:           0.75,
		},
	}
}

// Analyzer turns free text into the analyzed terms the index holds for the
// stemmed text fields (lower-cased, stop words removed, stemmed).
type Analyzer interface {
	Terms(text string) []string
}

// Relevance is the composed ranking clause: Must restricts and scores,
// Should only adds score.
type Relevance struct {
	Must   []bquery.Query
	Should []bquery.Query
}

// ClickBonus returns the popularity bonus for a click count. It is zero for
// no clicks and strictly increasing after that.
func (c RankingConfig) ClickBonus(clicks float64) float64 {
	if c.ClickWeight <= 0 || clicks <= 0 {
		return 0
	}
	return c.ClickWeight * math.Log1p(clicks)
}

// RankingComposer builds the relevance clause for a parsed query.
type RankingComposer struct {
	config   RankingConfig
	analyzer Analyzer
}

// NewRankingComposer creates a composer for the given ranking table.
func NewRankingComposer(config RankingConfig, analyzer Analyzer) *RankingComposer {
	return &RankingComposer{config: config, analyzer: analyzer}
}

// Compose builds the relevance clause. Without free text the clause is
// match-all and no boosts apply.
func (r *RankingComposer) Compose(spec query.QuerySpec) Relevance {
	if !spec.HasText() {
		return Relevance{Must: []bquery.Query{bleve.NewMatchAllQuery()}}
	}

	var rel Relevance

	if spec.Text != "" {
		rel.Must = append(rel.Must, r.termsClause(spec.Text))
	}
	for _, phrase := range spec.Phrases {
		rel.Must = append(rel.Must, r.phraseClause(phrase))
	}

	if spec.Text != "" && r.config.TagBoost > 0 {
		tq := bleve.NewTermQuery(strings.ToLower(spec.Text))
		tq.SetField(FieldTags)
		tq.SetBoost(r.config.TagBoost)
		rel.Should = append(rel.Should, tq)
	}

	if r.config.PromoteBoost > 0 {
		pq := bleve.NewBoolFieldQuery(true)
		pq.SetField(FieldPromote)
		pq.SetBoost(r.config.PromoteBoost)
		rel.Should = append(rel.Should, pq)
	}

	if len(r.config.DemotedExtensions) > 0 && r.config.DemotionBonus > 0 {
		rel.Should = append(rel.Should, r.demotionClause())
	}

	return rel
}

// termsClause matches each analyzed term across the weighted fields and
// requires MinShouldMatch of them.
func (r *RankingComposer) termsClause(text string) bquery.Query {
	terms := dedupe(r.analyzer.Terms(text))
	if len(terms) == 0 {
		// only stop words
		return bleve.NewMatchNoneQuery()
	}

	perTerm := make([]bquery.Query, 0, len(terms))
	for _, term := range terms {
		fields := make([]bquery.Query, 0, len(r.config.Fields))
		for _, fw := range r.config.Fields {
			tq := bleve.NewTermQuery(term)
			tq.SetField(fw.Field)
			tq.SetBoost(fw.Weight)
			fields = append(fields, tq)
		}
		perTerm = append(perTerm, bleve.NewDisjunctionQuery(fields...))
	}

	dq := bleve.NewDisjunctionQuery(perTerm...)
	dq.SetMin(float64(r.config.MinShouldMatch.Required(len(terms))))
	return dq
}

// phraseClause matches the phrase verbatim in any unstemmed companion field.
func (r *RankingComposer) phraseClause(phrase string) bquery.Query {
	fields := make([]bquery.Query, 0, len(r.config.Fields))
	for _, fw := range r.config.Fields {
		pq := bleve.NewMatchPhraseQuery(phrase)
		pq.SetField(fw.Field + ExactSuffix)
		pq.SetBoost(fw.Weight * r.config.PhraseBoost)
		fields = append(fields, pq)
	}
	return bleve.NewDisjunctionQuery(fields...)
}

// demotionClause gives DemotionBonus to every document whose extension is
// not in the demoted set.
func (r *RankingComposer) demotionClause() bquery.Query {
	exts := make([]bquery.Query, 0, len(r.config.DemotedExtensions))
	for _, ext := range r.config.DemotedExtensions {
		tq := bleve.NewTermQuery(strings.ToLower(strings.TrimPrefix(ext, ".")))
		tq.SetField(FieldExtension)
		exts = append(exts, tq)
	}

	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(bleve.NewDisjunctionQuery(exts...))
	bq.SetBoost(r.config.DemotionBonus)
	return bq
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
