package content

import (
	"fmt"
	"sort"
)

// Loader derives ordered lesson lists from a Source. It holds no state beyond
// the source, so every call re-reads and re-parses.
type Loader struct {
	Source Source
}

// NewLoader returns a Loader over src.
func NewLoader(src Source) *Loader {
	return &Loader{Source: src}
}

// ListLessons returns platform p's lessons sorted by Order ascending, ties
// broken by filename. Any malformed file or duplicate slug fails the whole
// listing.
func (l *Loader) ListLessons(p Platform) ([]Lesson, error) {
	if !p.Valid() {
		return nil, &UnknownPlatformError{Platform: string(p)}
	}
	units, err := l.Source.Units(p)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}

	lessons := make([]Lesson, 0, len(units))
	seen := make(map[string]string, len(units))
	for _, u := range units {
		lesson, err := ParseLesson(p, u.Name, u.Data)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[lesson.Slug]; ok {
			return nil, &DuplicateSlugError{Platform: p, Slug: lesson.Slug, Files: []string{prev, u.Name}}
		}
		seen[lesson.Slug] = u.Name
		lessons = append(lessons, lesson)
	}

	SortLessons(lessons)
	return lessons, nil
}

// SortLessons orders lessons by Order, then by filename. Unordered lessons
// come after all ordered ones whatever their Order value. The sort is stable,
// so lessons sharing every key keep their enumeration order.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Unordered != lessons[j].Unordered {
			return !lessons[i].Unordered
		}
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].File < lessons[j].File
	})
}
