// Package watcher monitors the content tree and rebuilds the lesson index
// when lesson files change.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/logging"
	"github.com/sgx-labs/mobilelessons/internal/metrics"
)

// Options configures Watch.
type Options struct {
	Root      string
	BasePath  string
	Debounce  time.Duration
	OnRebuild func(*index.Index)
	// OnError receives build failures. The previously published index stays
	// live; only a successful build reaches OnRebuild.
	OnError func(error)
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

const defaultDebounce = 500 * time.Millisecond

// Watch starts watching opts.Root and rebuilds the index after each burst of
// lesson file changes. It blocks until ctx is done.
func Watch(ctx context.Context, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("watcher")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dirs := walkDirs(opts.Root)
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			log.Warn("could not watch directory", "dir", d, "error", err)
		}
	}
	log.Info("watching content", "root", opts.Root, "dirs", len(dirs), "debounce", opts.Debounce)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
		} else {
			timer.Reset(opts.Debounce)
		}
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isPlatformDir(opts.Root, event.Name) {
				if event.Has(fsnotify.Create) {
					if err := w.Add(event.Name); err != nil {
						log.Warn("could not watch directory", "dir", event.Name, "error", err)
					}
				}
				schedule()
				continue
			}
			if !relevant(event) {
				continue
			}
			log.Debug("lesson changed", "path", event.Name, "op", event.Op.String())
			schedule()

		case <-timerC:
			timerC = nil
			rebuild(opts, log)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func rebuild(opts Options, log *logging.Logger) {
	start := time.Now()
	ix, err := index.Load(opts.Root, index.WithBasePath(opts.BasePath))
	elapsed := time.Since(start)
	if err != nil {
		opts.Metrics.ObserveIndex(nil, elapsed.Seconds(), err)
		log.Error("rebuild failed, keeping previous index", "error", err)
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return
	}
	counts, total := ix.Count()
	opts.Metrics.ObserveIndex(counts, elapsed.Seconds(), nil)
	log.Info("index rebuilt", "lessons", total, "took", elapsed)
	if opts.OnRebuild != nil {
		opts.OnRebuild(ix)
	}
}

// relevant reports whether event touches a lesson file.
func relevant(event fsnotify.Event) bool {
	if !content.IsLessonFile(filepath.Base(event.Name)) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// isPlatformDir reports whether path is a platform directory directly under
// root. Removed directories are matched by name alone.
func isPlatformDir(root, path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(root) {
		return false
	}
	if !content.Platform(filepath.Base(path)).Valid() {
		return false
	}
	info, err := os.Stat(path)
	return err != nil || info.IsDir()
}

// walkDirs returns root and each existing platform directory beneath it.
func walkDirs(root string) []string {
	dirs := []string{root}
	for _, p := range content.Platforms() {
		d := filepath.Join(root, string(p))
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
