package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/xrash/smetrics"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/search"
)

const (
	// maxEditDistance bounds how far a suggested term may be from the
	// query term.
	maxEditDistance = 2

	// minSuggestLength is the shortest term considered for replacement.
	minSuggestLength = 3

	markOpen  = "<mark>"
	markClose = "</mark>"
)

// dictionary maps each unstemmed term to its document frequency.
type dictionary map[string]uint64

// Suggest implements search.EngineClient. Each query term missing from the
// unstemmed dictionaries of indexes is replaced by the closest known term.
// It reports false when no term needed replacing or none had a candidate.
// The language filter is applied by the caller's re-run of the query.
func (c *Catalog) Suggest(ctx context.Context, text, _ string, indexes []string) (search.Suggestion, bool, error) {
	tokens := c.mapping.AnalyzerNamed(ExactAnalyzerName).Analyze([]byte(text))
	if len(tokens) == 0 {
		return search.Suggestion{}, false, nil
	}

	dict, err := c.dictionary(ctx, indexes)
	if err != nil {
		return search.Suggestion{}, false, amerrors.New(amerrors.ErrCodeSuggestFailed, "failed to read term dictionary", err)
	}

	var plain, marked strings.Builder
	last := 0
	changed := false

	for _, tok := range tokens {
		term := string(tok.Term)
		replacement, ok := dict.closest(term)
		if !ok {
			continue
		}

		plain.WriteString(text[last:tok.Start])
		marked.WriteString(text[last:tok.Start])
		plain.WriteString(replacement)
		marked.WriteString(markOpen + replacement + markClose)
		last = tok.End
		changed = true
	}
	if !changed {
		return search.Suggestion{}, false, nil
	}

	plain.WriteString(text[last:])
	marked.WriteString(text[last:])

	return search.Suggestion{
		Text:        strings.ToLower(plain.String()),
		Highlighted: strings.ToLower(marked.String()),
	}, true, nil
}

// closest returns the best replacement for term, or false when term is
// already known, too short, numeric, or has no candidate within
// maxEditDistance. Ties go to the more frequent term, then the lexically
// smaller one.
func (d dictionary) closest(term string) (string, bool) {
	if _, known := d[term]; known {
		return "", false
	}
	if len([]rune(term)) < minSuggestLength || isNumeric(term) {
		return "", false
	}

	best, bestDist := "", maxEditDistance+1
	var bestFreq uint64
	termLen := len([]rune(term))

	for cand, freq := range d {
		diff := len([]rune(cand)) - termLen
		if diff > maxEditDistance || -diff > maxEditDistance {
			continue
		}
		dist := smetrics.WagnerFischer(term, cand, 1, 1, 1)
		if dist > maxEditDistance {
			continue
		}
		if dist < bestDist ||
			(dist == bestDist && freq > bestFreq) ||
			(dist == bestDist && freq == bestFreq && cand < best) {
			best, bestDist, bestFreq = cand, dist, freq
		}
	}
	return best, best != ""
}

// dictionary merges the exact-field term dictionaries of indexes.
func (c *Catalog) dictionary(ctx context.Context, indexes []string) (dictionary, error) {
	dict := make(dictionary)

	for _, name := range indexes {
		idx, err := c.open(name, false)
		if err != nil {
			return nil, err
		}

		for _, field := range TextFields {
			fd, err := idx.FieldDict(field + search.ExactSuffix)
			if err != nil {
				return nil, fmt.Errorf("field dict %s/%s: %w", name, field, err)
			}

			for {
				if err := ctx.Err(); err != nil {
					_ = fd.Close()
					return nil, err
				}
				entry, err := fd.Next()
				if err != nil {
					_ = fd.Close()
					return nil, fmt.Errorf("field dict %s/%s: %w", name, field, err)
				}
				if entry == nil {
					break
				}
				dict[entry.Term] += entry.Count
			}
			if err := fd.Close(); err != nil {
				return nil, fmt.Errorf("field dict %s/%s: %w", name, field, err)
			}
		}
	}
	return dict, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
