package content

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Unit is one raw content file as supplied by a Source.
type Unit struct {
	Name string // filename including extension
	Data []byte
}

// Source enumerates the raw content units of a platform.
type Source interface {
	Units(p Platform) ([]Unit, error)
}

// Extensions lists the file extensions treated as lessons.
var Extensions = []string{".md", ".markdown"}

// IsLessonFile reports whether a filename is a lesson candidate: a known
// extension and not hidden or underscore-prefixed.
func IsLessonFile(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SlugFromFilename strips the extension from a lesson filename, preserving case.
func SlugFromFilename(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// DirSource reads lessons from <root>/<platform>/*.md inside an fs.FS.
type DirSource struct {
	FS fs.FS
}

// NewDirSource returns a DirSource over fsys. Use os.DirFS for a directory on
// disk or an embed.FS for content compiled into the binary.
func NewDirSource(fsys fs.FS) *DirSource {
	return &DirSource{FS: fsys}
}

// Units returns the lesson files directly inside the platform directory,
// sorted by filename. A missing platform directory yields no units.
func (s *DirSource) Units(p Platform) ([]Unit, error) {
	if !p.Valid() {
		return nil, &UnknownPlatformError{Platform: string(p)}
	}
	entries, err := fs.ReadDir(s.FS, string(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	var units []Unit
	for _, e := range entries {
		if e.IsDir() || !IsLessonFile(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(s.FS, path.Join(string(p), e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", p, e.Name(), err)
		}
		units = append(units, Unit{Name: e.Name(), Data: data})
	}
	return units, nil
}

// MemorySource serves units from memory, keyed by platform then filename.
type MemorySource map[Platform]map[string]string

// Units returns the platform's units sorted by filename.
func (m MemorySource) Units(p Platform) ([]Unit, error) {
	if !p.Valid() {
		return nil, &UnknownPlatformError{Platform: string(p)}
	}
	files := m[p]
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	units := make([]Unit, 0, len(names))
	for _, name := range names {
		units = append(units, Unit{Name: name, Data: []byte(files[name])})
	}
	return units, nil
}
