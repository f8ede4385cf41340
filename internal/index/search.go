package index

import (
	"sort"
	"strings"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

// SearchableLesson is the search projection of a lesson. It deliberately
// omits the body.
type SearchableLesson struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Platform    content.Platform `json:"platform"`
	Slug        string           `json:"slug"`
}

// Searchable flattens every platform's lessons, in platform order and then
// lesson order, into one list.
func (ix *Index) Searchable() []SearchableLesson {
	_, total := ix.Count()
	out := make([]SearchableLesson, 0, total)
	for _, p := range content.Platforms() {
		for _, l := range ix.lessons[p] {
			out = append(out, SearchableLesson{
				Title:       l.Title,
				Description: l.Description,
				Platform:    l.Platform,
				Slug:        l.Slug,
			})
		}
	}
	return out
}

var searchStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "how": true,
	"what": true, "are": true, "was": true, "this": true, "that": true,
	"from": true, "into": true, "your": true, "you": true, "use": true,
}

// Two-letter terms that still carry meaning in mobile docs.
var meaningfulShortTerms = map[string]bool{
	"ui": true, "ux": true, "os": true, "ci": true, "db": true, "io": true,
	"go": true, "js": true, "kt": true, "ts": true, "qa": true,
}

// ExtractSearchTerms lowercases a query, strips punctuation, and drops stop
// words, duplicates, and terms too short to be useful.
func ExtractSearchTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(query) {
		lower := strings.Trim(strings.ToLower(w), ".,;:!?\"'()[]{}")
		if len(lower) < 2 {
			continue
		}
		if len(lower) == 2 && !meaningfulShortTerms[lower] {
			continue
		}
		if searchStopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, lower)
	}
	return terms
}

// Match filters items to those whose title or description contains at least
// one query term, ranked by how many terms match. Equal scores keep the input
// order. An empty query matches nothing.
func Match(items []SearchableLesson, query string, limit int) []SearchableLesson {
	terms := ExtractSearchTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		item  SearchableLesson
		score int
	}
	var hits []scored
	for _, it := range items {
		haystack := strings.ToLower(it.Title + "\n" + it.Description)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{item: it, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]SearchableLesson, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}
