package setup

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed starter
var starterFS embed.FS

// WriteStarterLessons copies the bundled starter lessons into contentRoot.
// Existing files are left untouched. It returns the number of files written.
func WriteStarterLessons(contentRoot string) (int, error) {
	sub, err := fs.Sub(starterFS, "starter")
	if err != nil {
		return 0, err
	}
	written := 0
	err = fs.WalkDir(sub, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dest := filepath.Join(contentRoot, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		if _, err := os.Stat(dest); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		data, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written++
		return nil
	})
	return written, err
}
