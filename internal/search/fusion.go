// Package search compiles structured search requests into engine queries,
// runs them across one or more physical indexes, and turns the raw hits into
// normalized, paginated responses with facet buckets and spelling
// suggestions.
//
// Per-index hit lists are fused into one ranking by score (or by changed date
// when the request sorts by date) before pagination.
package search

import (
	"sort"
	"strconv"
	"time"

	bsearch "github.com/blevesearch/bleve/v2/search"
)

// Hit is a raw engine hit tagged with where it came from, so ties between
// indexes break deterministically.
type Hit struct {
	*bsearch.DocumentMatch

	indexPos int     // position of the source index in the resolved list
	rank     int     // position within the source index's own ranking
	bonus    float64 // popularity bonus added to the engine score
}

// score is the merged ranking score.
func (h Hit) score() float64 {
	return h.Score + h.bonus
}

// rankHits orders hits by merged score descending, or by changed date descending
// (missing dates last, then score) when byDate is set. Ties fall back to
// index order and then per-index rank.
func rankHits(hits []Hit, byDate bool) []Hit {
	var changed map[*bsearch.DocumentMatch]time.Time
	if byDate {
		changed = make(map[*bsearch.DocumentMatch]time.Time, len(hits))
		for _, h := range hits {
			if t, ok := fieldTime(h.Fields, FieldChanged); ok {
				changed[h.DocumentMatch] = t
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]

		if byDate {
			ta, okA := changed[a.DocumentMatch]
			tb, okB := changed[b.DocumentMatch]
			if okA != okB {
				return okA
			}
			if okA && !ta.Equal(tb) {
				return ta.After(tb)
			}
		}

		if sa, sb := a.score(), b.score(); sa != sb {
			return sa > sb
		}
		if a.indexPos != b.indexPos {
			return a.indexPos < b.indexPos
		}
		return a.rank < b.rank
	})

	return hits
}

// paginate returns hits[offset : offset+size], clamped to the slice.
func paginate(hits []Hit, offset, size int) []Hit {
	if offset >= len(hits) || size <= 0 {
		return []Hit{}
	}
	end := offset + size
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

// fieldTime reads a stored date field, which the engine returns as an
// RFC 3339 string, or as Unix nanoseconds for dates indexed without a layout.
func fieldTime(fields map[string]interface{}, name string) (time.Time, bool) {
	s, ok := fields[name].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, ns).UTC(), true
	}
	return time.Time{}, false
}
