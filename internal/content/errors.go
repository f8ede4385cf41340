package content

import (
	"fmt"
	"strings"
)

// MalformedContentError reports a lesson file whose front-matter is missing,
// undecodable, or fails schema validation.
type MalformedContentError struct {
	Platform Platform
	File     string
	Reason   string
}

func (e *MalformedContentError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("malformed lesson: %s", e.Reason)
	}
	if e.Platform == "" {
		return fmt.Sprintf("malformed lesson %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("malformed lesson %s/%s: %s", e.Platform, e.File, e.Reason)
}

// UnknownPlatformError reports a platform identifier outside the fixed set.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}
	return fmt.Sprintf("unknown platform %q (must be one of %s)", e.Platform, strings.Join(names, ", "))
}

// DuplicateSlugError reports two lesson files in one platform that resolve to
// the same slug.
type DuplicateSlugError struct {
	Platform Platform
	Slug     string
	Files    []string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("duplicate slug %q in %s: %s", e.Slug, e.Platform, strings.Join(e.Files, ", "))
}
