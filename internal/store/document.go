package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/query"
	"github.com/Aman-CERP/amansearch/internal/search"
)

// Document is one searchable page as loaded by the indexer.
type Document struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Content      string     `json:"content,omitempty"`
	Path         string     `json:"path"`
	Language     string     `json:"language,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Tags         TagList    `json:"tags,omitempty"`
	Promote      bool       `json:"promote,omitempty"`
	ClickCount   int        `json:"click_count,omitempty"`
	Created      *time.Time `json:"created,omitempty"`
	Changed      *time.Time `json:"changed,omitempty"`

	// Facets holds keyword fields such as content_type or searchgov_custom1,
	// each with one or more values.
	Facets map[string][]string `json:"facets,omitempty"`
}

// TagList accepts either a JSON array of tags or one comma-separated string.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = SplitTags(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags must be a string or a list of strings: %w", err)
	}
	var out TagList
	for _, item := range list {
		out = append(out, SplitTags(item)...)
	}
	*t = out
	return nil
}

// SplitTags splits a comma-separated tag string, trimming blanks:
// "just, some, tags" -> [just some tags].
func SplitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// DocID returns the document ID, falling back to its path.
func (d Document) DocID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Path
}

// Validate checks the fields the index relies on.
func (d Document) Validate() error {
	if d.DocID() == "" {
		return fmt.Errorf("document has neither id nor path")
	}
	if d.ClickCount < 0 {
		return fmt.Errorf("document %s: negative click_count", d.DocID())
	}
	for field := range d.Facets {
		if reservedField(field) {
			return fmt.Errorf("document %s: facet %q shadows a built-in field", d.DocID(), field)
		}
	}
	return nil
}

// Fields flattens the document into the indexed field map, adding the
// derived site and extension terms and the exact-text companions.
func (d Document) Fields() map[string]interface{} {
	f := map[string]interface{}{
		search.FieldPath:     d.Path,
		search.FieldLanguage: d.Language,
	}
	if d.Language == "" {
		f[search.FieldLanguage] = search.DefaultLanguage
	}

	for field, value := range map[string]string{
		search.FieldTitle:       d.Title,
		search.FieldDescription: d.Description,
		search.FieldContent:     d.Content,
	} {
		if value == "" {
			continue
		}
		f[field] = value
		f[field+search.ExactSuffix] = value
	}

	if d.ThumbnailURL != "" {
		f[search.FieldThumbnailURL] = d.ThumbnailURL
	}
	if len(d.Tags) > 0 {
		f[search.FieldTags] = []string(d.Tags)
	}
	if d.Promote {
		f[search.FieldPromote] = true
	}
	if d.ClickCount > 0 {
		f[search.FieldClickCount] = float64(d.ClickCount)
	}
	if d.Created != nil {
		f[search.FieldCreated] = d.Created.UTC()
	}
	if d.Changed != nil {
		f[search.FieldChanged] = d.Changed.UTC()
	}

	domains, paths := query.SiteTerms(d.Path)
	if len(domains) > 0 {
		f[search.FieldDomainName] = domains
	}
	if len(paths) > 0 {
		f[search.FieldURLPath] = paths
	}
	if ext := Extension(d.Path); ext != "" {
		f[search.FieldExtension] = ext
	}

	for field, values := range d.Facets {
		if len(values) == 1 {
			f[field] = values[0]
		} else if len(values) > 1 {
			f[field] = values
		}
	}

	return f
}

// Extension returns the lower-cased file extension of a URL's path, without
// the dot, or "" when the last segment has none.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if len(ext) < 2 {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func reservedField(field string) bool {
	switch field {
	case search.FieldTitle, search.FieldDescription, search.FieldContent,
		search.FieldPath, search.FieldLanguage, search.FieldThumbnailURL,
		search.FieldTags, search.FieldPromote, search.FieldClickCount,
		search.FieldCreated, search.FieldChanged,
		search.FieldDomainName, search.FieldURLPath, search.FieldExtension:
		return true
	}
	return strings.HasSuffix(field, search.ExactSuffix)
}

// ReadDocuments decodes a stream of JSON documents, one after another
// (JSON Lines or concatenated objects).
func ReadDocuments(r io.Reader) ([]Document, error) {
	dec := json.NewDecoder(r)
	var docs []Document
	for n := 1; ; n++ {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, amerrors.ValidationError(fmt.Sprintf("document %d: %v", n, err), err)
		}
		if err := doc.Validate(); err != nil {
			return nil, amerrors.ValidationError(fmt.Sprintf("document %d: %v", n, err), err)
		}
		docs = append(docs, doc)
	}
}
