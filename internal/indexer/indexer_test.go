package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

func lessonText(title string, order int) string {
	return fmt.Sprintf("---\ntitle: %q\ndescription: about %s\norder: %d\n---\nbody of %s\n", title, title, order, title)
}

func setup(t *testing.T, src content.MemorySource) (*store.DB, *index.Index, string) {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("LESSONS_DATA_DIR", dataDir)

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ix, err := index.Build(src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return db, ix, dataDir
}

func source() content.MemorySource {
	return content.MemorySource{
		content.IOS: {
			"getting-started.md": lessonText("Getting Started", 1),
			"setup-dev.md":       lessonText("Setup Dev", 2),
		},
		content.Android: {
			"kotlin-basics.md": lessonText("Kotlin Basics", 1),
		},
	}
}

func TestReindex_Fresh(t *testing.T) {
	db, ix, dataDir := setup(t, source())

	var calls []content.Platform
	stats, err := ReindexWithProgress(db, ix, false, func(current, total int, p content.Platform) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		calls = append(calls, p)
	})
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if stats.TotalLessons != 3 || stats.NewlyIndexed != 3 || stats.SkippedUnchanged != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LessonsInIndex != 3 || stats.ByPlatform["ios"] != 2 {
		t.Errorf("unexpected index counts: %+v", stats)
	}
	if len(calls) != 3 || calls[0] != content.IOS {
		t.Errorf("progress calls = %v", calls)
	}
	if _, err := os.Stat(filepath.Join(dataDir, config.StatsFileName)); err != nil {
		t.Errorf("stats file not written: %v", err)
	}
	if stats.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestReindex_SkipsUnchanged(t *testing.T) {
	db, ix, _ := setup(t, source())
	if _, err := Reindex(db, ix, false); err != nil {
		t.Fatalf("first Reindex: %v", err)
	}
	stats, err := Reindex(db, ix, false)
	if err != nil {
		t.Fatalf("second Reindex: %v", err)
	}
	if stats.NewlyIndexed != 0 || stats.SkippedUnchanged != 3 {
		t.Errorf("expected everything skipped, got %+v", stats)
	}

	forced, err := Reindex(db, ix, true)
	if err != nil {
		t.Fatalf("forced Reindex: %v", err)
	}
	if forced.NewlyIndexed != 3 {
		t.Errorf("force should reindex all, got %+v", forced)
	}
}

func TestReindex_OnlyChangedPlatform(t *testing.T) {
	src := source()
	db, ix, _ := setup(t, src)
	if _, err := Reindex(db, ix, false); err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	src[content.Android]["coroutines.md"] = lessonText("Coroutines", 2)
	ix2, err := index.Build(src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stats, err := Reindex(db, ix2, false)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if stats.NewlyIndexed != 2 || stats.SkippedUnchanged != 2 {
		t.Errorf("expected only android reindexed, got %+v", stats)
	}
	rows, _ := db.PlatformLessons("android")
	if len(rows) != 2 || rows[1].Slug != "coroutines" || rows[1].Position != 1 {
		t.Errorf("android rows = %+v", rows)
	}
}

func TestReindex_RemovedLessonsDisappear(t *testing.T) {
	src := source()
	db, ix, _ := setup(t, src)
	Reindex(db, ix, false)

	delete(src[content.IOS], "setup-dev.md")
	ix2, _ := index.Build(src)
	if _, err := Reindex(db, ix2, false); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n, _ := db.LessonCount(); n != 2 {
		t.Errorf("expected 2 lessons after removal, got %d", n)
	}
}

func TestPlatformHash_ReorderChangesHash(t *testing.T) {
	a := []store.LessonRecord{{Slug: "a", ContentHash: "1"}, {Slug: "b", ContentHash: "2"}}
	b := []store.LessonRecord{{Slug: "b", ContentHash: "2"}, {Slug: "a", ContentHash: "1"}}
	if platformHash(a) == platformHash(b) {
		t.Error("reordering should change the platform hash")
	}
	if platformHash(a) != platformHash(a) {
		t.Error("platformHash should be deterministic")
	}
}

func TestGetStats(t *testing.T) {
	db, ix, _ := setup(t, source())

	live := GetStats(db)
	if live["status"] != "live query (no saved stats)" {
		t.Errorf("expected live stats before reindex, got %v", live)
	}

	if _, err := Reindex(db, ix, false); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	saved := GetStats(db)
	if saved["total_lessons"] != float64(3) {
		t.Errorf("total_lessons = %v, want 3", saved["total_lessons"])
	}
	if _, ok := saved["last_reindex"]; !ok {
		t.Error("expected last_reindex from stats file mtime")
	}
}

func TestSha256Hash(t *testing.T) {
	got := sha256Hash("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("sha256Hash('') = %q, want %q", got, want)
	}
	if sha256Hash("hello world") == sha256Hash("hello world!") {
		t.Error("different inputs should produce different hashes")
	}
}
