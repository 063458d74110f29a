package query

import (
	"net/url"
	"strings"
)

// SiteFilter is one site: or -site: operator occurrence.
type SiteFilter struct {
	// Host is the lower-cased host. A two-label domain such as agency.gov
	// also matches its subdomains; any other host matches only itself.
	Host string

	// Segments are the unescaped path segments the candidate path must
	// start with. Empty means the whole host matches.
	Segments []string

	// Exclude marks a -site: filter.
	Exclude bool
}

// Path returns the normalized path prefix, or "" when the filter has none.
func (f SiteFilter) Path() string {
	if len(f.Segments) == 0 {
		return ""
	}
	return "/" + strings.Join(f.Segments, "/")
}

// String renders the filter back into operator form.
func (f SiteFilter) String() string {
	prefix := sitePrefix
	if f.Exclude {
		prefix = excludeSitePrefix
	}
	return prefix + f.Host + f.Path()
}

// ParseSiteFilter parses the value of a site: operator, e.g.
// "www.agency.gov/dir1/". It returns false when no host is present.
func ParseSiteFilter(value string, exclude bool) (SiteFilter, bool) {
	value = strings.TrimSpace(value)
	if i := strings.Index(value, "://"); i >= 0 {
		value = value[i+3:]
	}

	host, path, _ := strings.Cut(value, "/")
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return SiteFilter{}, false
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}

	return SiteFilter{
		Host:     host,
		Segments: splitSegments(path),
		Exclude:  exclude,
	}, true
}

// DomainTerms returns the terms a document host is indexed under: the host
// itself and, for a deeper host, its two-label parent domain. A filter on
// agency.gov therefore covers www.agency.gov and a.b.agency.gov, while a
// filter on sub.agency.gov or on gov matches only that exact host:
// "www.sub.agency.gov" -> ["www.sub.agency.gov", "agency.gov"].
func DomainTerms(host string) []string {
	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" {
		return nil
	}

	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return []string{host}
	}
	return []string{host, strings.Join(labels[len(labels)-2:], ".")}
}

// PathTerms returns every segment-aligned prefix of path, so a filter path
// matches only whole leading segments:
// "/dir1/dir2/page.html" -> ["/dir1", "/dir1/dir2", "/dir1/dir2/page.html"].
func PathTerms(path string) []string {
	segments := splitSegments(path)
	if len(segments) == 0 {
		return nil
	}

	terms := make([]string, 0, len(segments))
	var b strings.Builder
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(seg)
		terms = append(terms, b.String())
	}
	return terms
}

// SiteTerms splits a document URL into its domain and path terms. Paths are
// unescaped, the same as filter paths. Unparseable URLs yield no terms and
// are therefore never matched by a site filter.
func SiteTerms(rawURL string) (domains, paths []string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, nil
	}
	return DomainTerms(u.Hostname()), PathTerms(u.Path)
}

func splitSegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
