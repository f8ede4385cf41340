package index

import (
	"strings"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

// SidebarEntry is one navigation item. Platform groups carry their lessons
// as Children; lesson entries have none.
type SidebarEntry struct {
	Label    string         `json:"label"`
	Href     string         `json:"href"`
	Children []SidebarEntry `json:"children,omitempty"`
}

// NormalizeBasePath makes base start and end with a single "/".
func NormalizeBasePath(base string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		return "/"
	}
	return "/" + base + "/"
}

// LessonHref is the site path for a lesson under the index's base path.
func (ix *Index) LessonHref(p content.Platform, slug string) string {
	return ix.basePath + string(p) + "/" + slug
}

// PlatformHref is the site path for a platform's landing page.
func (ix *Index) PlatformHref(p content.Platform) string {
	return ix.basePath + string(p)
}

// Sidebar maps each of platform p's lessons, in order, to one entry.
func (ix *Index) Sidebar(p content.Platform) ([]SidebarEntry, error) {
	lessons, err := ix.Lessons(p)
	if err != nil {
		return nil, err
	}
	entries := make([]SidebarEntry, 0, len(lessons))
	for _, l := range lessons {
		entries = append(entries, SidebarEntry{
			Label: l.Title,
			Href:  ix.LessonHref(p, l.Slug),
		})
	}
	return entries, nil
}

// SidebarTree groups every platform's sidebar under one entry per platform,
// in platform display order.
func (ix *Index) SidebarTree() []SidebarEntry {
	tree := make([]SidebarEntry, 0, len(ix.lessons))
	for _, p := range content.Platforms() {
		children, _ := ix.Sidebar(p)
		tree = append(tree, SidebarEntry{
			Label:    p.Title(),
			Href:     ix.PlatformHref(p),
			Children: children,
		})
	}
	return tree
}
