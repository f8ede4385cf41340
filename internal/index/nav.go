package index

import "github.com/sgx-labs/mobilelessons/internal/content"

// Navigation holds the neighbours of a lesson in its platform's order.
// A nil field means there is no neighbour on that side.
type Navigation struct {
	Previous *content.Lesson `json:"previous"`
	Next     *content.Lesson `json:"next"`
}

// NavigationFor locates slug in an ordered lesson list and returns its
// neighbours. A slug that is not in the list has neither.
func NavigationFor(lessons []content.Lesson, slug string) Navigation {
	idx := -1
	for i := range lessons {
		if lessons[i].Slug == slug {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Navigation{}
	}
	return neighbours(lessons, idx)
}

// Navigation returns the previous and next lessons around slug in platform p.
func (ix *Index) Navigation(p content.Platform, slug string) Navigation {
	i, ok := ix.position(p, slug)
	if !ok {
		return Navigation{}
	}
	return neighbours(ix.lessons[p], i)
}

func neighbours(lessons []content.Lesson, i int) Navigation {
	var nav Navigation
	if i > 0 {
		prev := lessons[i-1]
		nav.Previous = &prev
	}
	if i < len(lessons)-1 {
		next := lessons[i+1]
		nav.Next = &next
	}
	return nav
}
