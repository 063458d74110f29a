package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/amansearch/internal/search"
)

// TextAnalyzer produces query terms with the same analyzer the index uses
// for the stemmed text fields. It implements search.Analyzer.
type TextAnalyzer struct {
	analyzer analysis.Analyzer
}

// Ensure TextAnalyzer implements search.Analyzer.
var _ search.Analyzer = (*TextAnalyzer)(nil)

// NewTextAnalyzer looks up name in the mapping's analyzer registry.
func NewTextAnalyzer(m *mapping.IndexMappingImpl, name string) (*TextAnalyzer, error) {
	a := m.AnalyzerNamed(name)
	if a == nil {
		return nil, fmt.Errorf("analyzer %q not registered", name)
	}
	return &TextAnalyzer{analyzer: a}, nil
}

// Analyzer returns the stemming text analyzer for c's mapping.
func (c *Catalog) Analyzer() (*TextAnalyzer, error) {
	return NewTextAnalyzer(c.mapping, TextAnalyzerName)
}

// Terms implements search.Analyzer.
func (t *TextAnalyzer) Terms(text string) []string {
	if text == "" {
		return nil
	}
	stream := t.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) > 0 {
			terms = append(terms, string(tok.Term))
		}
	}
	return terms
}
