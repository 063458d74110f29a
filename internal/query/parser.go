// Package query parses the mini query-language embedded in free-text searches.
//
// Supported syntax:
//   - "exact phrase"          quoted spans, matched verbatim
//   - (site:host/path)        inclusion filter, OR'd with other inclusions
//   - (-site:host/path)       exclusion filter, AND'd with other exclusions
//
// Everything else is the free-text remainder. Parsing never fails: malformed
// operators are dropped and logged at debug level.
package query

import (
	"log/slog"
	"strings"
	"unicode"
)

const (
	sitePrefix        = "site:"
	excludeSitePrefix = "-site:"
)

// QuerySpec is the parsed decomposition of a raw query string.
type QuerySpec struct {
	// Text is the free-text remainder, trimmed. May be empty.
	Text string

	// Phrases are the quoted exact phrases in order of appearance.
	Phrases []string

	// Include holds site: filters. A document must match at least one.
	Include []SiteFilter

	// Exclude holds -site: filters. A document must match none.
	Exclude []SiteFilter
}

// HasText reports whether the query carries any free text or phrases.
// Relevance ranking and aggregations are only computed when it does.
func (q QuerySpec) HasText() bool {
	return q.Text != "" || len(q.Phrases) > 0
}

// FullText returns the remainder and phrases joined back into one string.
func (q QuerySpec) FullText() string {
	parts := make([]string, 0, len(q.Phrases)+1)
	parts = append(parts, q.Phrases...)
	if q.Text != "" {
		parts = append(parts, q.Text)
	}
	return strings.Join(parts, " ")
}

// Parse decomposes a raw query into phrases, site filters and free text.
// It is a pure function with no engine dependency.
func Parse(raw string) QuerySpec {
	var spec QuerySpec
	var rest []string

	for _, tok := range tokenize(raw) {
		switch tok.kind {
		case tokenPhrase:
			if p := strings.TrimSpace(tok.text); p != "" {
				spec.Phrases = append(spec.Phrases, p)
			}
		case tokenGroup:
			rest = append(rest, spec.addGroup(tok.text)...)
		case tokenWord:
			if isSiteOperator(tok.text) {
				spec.addSite(tok.text)
				continue
			}
			rest = append(rest, tok.text)
		}
	}

	spec.Text = strings.TrimSpace(strings.Join(rest, " "))
	return spec
}

// addGroup classifies the tokens of one parenthesized group. Non-site tokens
// are returned so they stay part of the free text.
func (q *QuerySpec) addGroup(body string) []string {
	var words []string
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return unicode.IsSpace(r) || r == '|'
	})
	for _, f := range fields {
		switch {
		case isSiteOperator(f):
			q.addSite(f)
		case f == "OR":
			// separator between site operators
		default:
			words = append(words, f)
		}
	}
	return words
}

func (q *QuerySpec) addSite(token string) {
	exclude := strings.HasPrefix(token, excludeSitePrefix)
	value := strings.TrimPrefix(strings.TrimPrefix(token, "-"), sitePrefix)

	filter, ok := ParseSiteFilter(value, exclude)
	if !ok {
		slog.Debug("query_token_ignored",
			slog.String("token", token),
			slog.String("reason", "empty site value"))
		return
	}

	if exclude {
		q.Exclude = append(q.Exclude, filter)
	} else {
		q.Include = append(q.Include, filter)
	}
}

func isSiteOperator(tok string) bool {
	return strings.HasPrefix(tok, sitePrefix) || strings.HasPrefix(tok, excludeSitePrefix)
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPhrase
	tokenGroup
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits the raw query into quoted spans, parenthesized groups and
// whitespace separated words. Unbalanced quotes and parens are treated as
// literal separators.
func tokenize(raw string) []token {
	var tokens []token
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, token{kind: tokenWord, text: word.String()})
			word.Reset()
		}
	}

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			end := indexRune(runes, i+1, '"')
			flush()
			if end < 0 {
				// unterminated quote: drop it and keep scanning
				continue
			}
			tokens = append(tokens, token{kind: tokenPhrase, text: string(runes[i+1 : end])})
			i = end
		case r == '(':
			end := indexRune(runes, i+1, ')')
			flush()
			if end < 0 {
				continue
			}
			tokens = append(tokens, token{kind: tokenGroup, text: string(runes[i+1 : end])})
			i = end
		case r == ')':
			flush()
		case unicode.IsSpace(r):
			flush()
		default:
			word.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
