package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/amansearch/internal/search"
)

const (
	// ExactAnalyzerName splits on word boundaries and lower-cases, without
	// stemming or stop words. Phrases, highlighting and spelling suggestions
	// use it.
	ExactAnalyzerName = "exact_text"

	// TagAnalyzerName keeps each tag whole and lower-cases it.
	TagAnalyzerName = "tag_keyword"

	// TextAnalyzerName is the stemming analyzer for title, description
	// and content.
	TextAnalyzerName = en.AnalyzerName
)

// TextFields are the stemmed full-text fields; each has an unstemmed
// "_exact" companion.
var TextFields = []string{search.FieldTitle, search.FieldDescription, search.FieldContent}

// KeywordFields are exact-term fields that are stored for display or facets.
var KeywordFields = []string{
	search.FieldLanguage, search.FieldPath, search.FieldThumbnailURL,
	"content_type", "mime_type", "created_by",
	"searchgov_custom1", "searchgov_custom2", "searchgov_custom3",
}

// BuildMapping returns the index mapping every physical index is created
// with. Fields not listed here are indexed dynamically as stored keywords,
// so arbitrary facet fields get exact-term semantics.
func BuildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(ExactAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("add %s analyzer: %w", ExactAnalyzerName, err)
	}
	if err := im.AddCustomAnalyzer(TagAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("add %s analyzer: %w", TagAnalyzerName, err)
	}

	doc := bleve.NewDocumentMapping()

	for _, f := range TextFields {
		doc.AddFieldMappingsAt(f, textField(TextAnalyzerName))
		doc.AddFieldMappingsAt(f+search.ExactSuffix, textField(ExactAnalyzerName))
	}

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = TagAnalyzerName
	tags.Store = true
	tags.IncludeInAll = false
	doc.AddFieldMappingsAt(search.FieldTags, tags)

	for _, f := range KeywordFields {
		doc.AddFieldMappingsAt(f, keywordField(true))
	}
	for _, f := range []string{search.FieldDomainName, search.FieldURLPath, search.FieldExtension} {
		doc.AddFieldMappingsAt(f, keywordField(false))
	}

	promote := bleve.NewBooleanFieldMapping()
	promote.Store = true
	promote.IncludeInAll = false
	doc.AddFieldMappingsAt(search.FieldPromote, promote)

	clicks := bleve.NewNumericFieldMapping()
	clicks.Store = true
	clicks.IncludeInAll = false
	doc.AddFieldMappingsAt(search.FieldClickCount, clicks)

	for _, f := range []string{search.FieldCreated, search.FieldChanged} {
		dt := bleve.NewDateTimeFieldMapping()
		dt.Store = true
		dt.IncludeInAll = false
		doc.AddFieldMappingsAt(f, dt)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	im.StoreDynamic = true
	im.IndexDynamic = true

	return im, nil
}

func textField(analyzer string) *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = analyzer
	fm.Store = true
	fm.IncludeTermVectors = true
	fm.IncludeInAll = false
	return fm
}

func keywordField(store bool) *mapping.FieldMapping {
	fm := bleve.NewKeywordFieldMapping()
	fm.Store = store
	fm.IncludeInAll = false
	return fm
}
