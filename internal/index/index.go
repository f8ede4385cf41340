// Package index builds an immutable lesson index over a content source and
// derives navigation, sidebar, and search structures from it.
package index

import (
	"errors"
	"fmt"
	"os"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

// Index holds every platform's ordered lessons. It is never mutated after
// Build returns, so it is safe for concurrent readers.
type Index struct {
	basePath string
	lessons  map[content.Platform][]content.Lesson
	bySlug   map[content.Platform]map[string]int
}

// Option configures Build.
type Option func(*Index)

// WithBasePath sets the URL prefix used for sidebar hrefs. It is normalised to
// begin and end with "/".
func WithBasePath(base string) Option {
	return func(ix *Index) {
		ix.basePath = NormalizeBasePath(base)
	}
}

// Build loads every known platform from src. Any platform that fails to load
// aborts the build; errors from all platforms are joined so every authoring
// mistake is reported at once.
func Build(src content.Source, opts ...Option) (*Index, error) {
	ix := &Index{
		basePath: "/",
		lessons:  make(map[content.Platform][]content.Lesson),
		bySlug:   make(map[content.Platform]map[string]int),
	}
	for _, opt := range opts {
		opt(ix)
	}

	loader := content.NewLoader(src)
	var errs []error
	for _, p := range content.Platforms() {
		lessons, err := loader.ListLessons(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		slugs := make(map[string]int, len(lessons))
		for i, l := range lessons {
			slugs[l.Slug] = i
		}
		ix.lessons[p] = lessons
		ix.bySlug[p] = slugs
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("build index: %w", errors.Join(errs...))
	}
	return ix, nil
}

// Load builds an index from the lesson tree rooted at dir.
func Load(dir string, opts ...Option) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", dir)
	}
	return Build(content.NewDirSource(os.DirFS(dir)), opts...)
}

// Platforms returns the fixed platform set in display order.
func (ix *Index) Platforms() []content.Platform {
	return content.Platforms()
}

// BasePath returns the normalised href prefix.
func (ix *Index) BasePath() string {
	return ix.basePath
}

// Lessons returns a copy of platform p's ordered lessons.
func (ix *Index) Lessons(p content.Platform) ([]content.Lesson, error) {
	if !p.Valid() {
		return nil, &content.UnknownPlatformError{Platform: string(p)}
	}
	src := ix.lessons[p]
	out := make([]content.Lesson, len(src))
	copy(out, src)
	return out, nil
}

// Lesson looks up a lesson by platform and slug. The boolean is false when
// no such lesson exists, including when p is not a known platform.
func (ix *Index) Lesson(p content.Platform, slug string) (content.Lesson, bool) {
	i, ok := ix.position(p, slug)
	if !ok {
		return content.Lesson{}, false
	}
	return ix.lessons[p][i], true
}

// Count returns the number of lessons per platform and the total.
func (ix *Index) Count() (map[content.Platform]int, int) {
	counts := make(map[content.Platform]int, len(ix.lessons))
	total := 0
	for _, p := range content.Platforms() {
		n := len(ix.lessons[p])
		counts[p] = n
		total += n
	}
	return counts, total
}

func (ix *Index) position(p content.Platform, slug string) (int, bool) {
	slugs, ok := ix.bySlug[p]
	if !ok {
		return -1, false
	}
	i, ok := slugs[slug]
	return i, ok
}
