// Package content parses lesson files and loads the ordered lesson list for
// each platform.
package content

import "strings"

// Platform identifies one of the mobile development targets lessons are
// organized under. The set is fixed at build time.
type Platform string

// Known platforms.
const (
	IOS     Platform = "ios"
	Android Platform = "android"
	Flutter Platform = "flutter"
)

// platforms is the fixed display order used by every cross-platform listing.
var platforms = []Platform{IOS, Android, Flutter}

var platformTitles = map[Platform]string{
	IOS:     "iOS",
	Android: "Android",
	Flutter: "Flutter",
}

// Platforms returns the known platforms in display order.
func Platforms() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// ParsePlatform resolves a platform identifier, ignoring case and surrounding
// whitespace.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p, nil
	}
	return "", &UnknownPlatformError{Platform: s}
}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	_, ok := platformTitles[p]
	return ok
}

// Title returns the human-readable platform name.
func (p Platform) Title() string {
	if t, ok := platformTitles[p]; ok {
		return t
	}
	return string(p)
}

func (p Platform) String() string {
	return string(p)
}
