// Package indexer persists a built lesson index into the SQLite search store.
package indexer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/content"
	"github.com/sgx-labs/mobilelessons/internal/index"
	"github.com/sgx-labs/mobilelessons/internal/store"
)

// Version is set by cmd/lessons to record which version performed the reindex.
var Version string

// Stats holds reindex statistics.
type Stats struct {
	TotalLessons     int            `json:"total_lessons"`
	NewlyIndexed     int            `json:"newly_indexed"`
	SkippedUnchanged int            `json:"skipped_unchanged"`
	LessonsInIndex   int            `json:"total_lessons_in_index"`
	ByPlatform       map[string]int `json:"by_platform"`
	Version          string         `json:"version,omitempty"`
	Timestamp        string         `json:"timestamp"`
}

// ProgressFunc is called once per platform after it is processed.
type ProgressFunc func(current, total int, platform content.Platform)

// Reindex writes every platform of ix into db.
func Reindex(db *store.DB, ix *index.Index, force bool) (*Stats, error) {
	return ReindexWithProgress(db, ix, force, nil)
}

// ReindexWithProgress is like Reindex but accepts an optional progress
// callback. A platform whose content hash matches the stored one is skipped
// unless force is set.
func ReindexWithProgress(db *store.DB, ix *index.Index, force bool, progress ProgressFunc) (*Stats, error) {
	if force {
		if err := db.DeleteAllLessons(); err != nil {
			return nil, fmt.Errorf("clear index: %w", err)
		}
	}

	stats := &Stats{
		ByPlatform: make(map[string]int),
		Version:    Version,
	}
	platforms := ix.Platforms()
	for i, p := range platforms {
		lessons, err := ix.Lessons(p)
		if err != nil {
			return nil, err
		}
		stats.TotalLessons += len(lessons)

		records := buildRecords(lessons)
		hash := platformHash(records)

		stored, err := db.PlatformHash(string(p))
		if err != nil {
			return nil, fmt.Errorf("read %s hash: %w", p, err)
		}
		if stored == hash {
			stats.SkippedUnchanged += len(lessons)
		} else {
			if err := db.ReplacePlatform(string(p), hash, records); err != nil {
				return nil, fmt.Errorf("index %s: %w", p, err)
			}
			stats.NewlyIndexed += len(lessons)
		}

		if progress != nil {
			progress(i+1, len(platforms), p)
		}
	}

	counts, err := db.CountsByPlatform()
	if err != nil {
		return nil, fmt.Errorf("count lessons: %w", err)
	}
	for p, n := range counts {
		stats.ByPlatform[p] = n
		stats.LessonsInIndex += n
	}

	now := time.Now()
	stats.Timestamp = now.Format(time.RFC3339)
	if err := db.MarkIndexed(now); err != nil {
		return nil, fmt.Errorf("mark indexed: %w", err)
	}
	saveStats(stats)

	return stats, nil
}

func buildRecords(lessons []content.Lesson) []store.LessonRecord {
	records := make([]store.LessonRecord, len(lessons))
	for i, l := range lessons {
		records[i] = store.LessonRecord{
			Platform:    string(l.Platform),
			Slug:        l.Slug,
			Title:       l.Title,
			Description: l.Description,
			Order:       l.Order,
			Position:    i,
			ContentHash: lessonHash(l),
		}
	}
	return records
}

func lessonHash(l content.Lesson) string {
	return sha256Hash(strings.Join([]string{
		string(l.Platform), l.Slug, l.Title, l.Description, strconv.Itoa(l.Order), l.Body,
	}, "\x00"))
}

// platformHash covers slugs, per-lesson hashes, and their order, so a pure
// reorder also counts as a change.
func platformHash(records []store.LessonRecord) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Slug)
		b.WriteByte(':')
		b.WriteString(r.ContentHash)
		b.WriteByte('\n')
	}
	return sha256Hash(b.String())
}

func sha256Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

// GetStats reads the last saved index stats, falling back to live counts.
func GetStats(db *store.DB) map[string]any {
	statsPath := filepath.Join(config.DataDir(), config.StatsFileName)
	data, err := os.ReadFile(statsPath)
	if err != nil {
		n, err := db.LessonCount()
		if err != nil {
			return map[string]any{
				"status": "no index found",
				"hint":   "run 'lessons reindex' first",
			}
		}
		result := map[string]any{
			"total_lessons_in_index": n,
			"status":                 "live query (no saved stats)",
		}
		enrichStats(result)
		return result
	}

	result := make(map[string]any)
	if err := json.Unmarshal(data, &result); err != nil {
		return map[string]any{
			"status": "unreadable stats file",
			"error":  err.Error(),
		}
	}
	enrichStats(result)
	return result
}

// enrichStats adds database file size and last reindex time.
func enrichStats(result map[string]any) {
	dbPath := config.DBPath()
	if info, err := os.Stat(dbPath); err == nil {
		sizeKB := float64(info.Size()) / 1024
		result["db_size_kb"] = fmt.Sprintf("%.1f", sizeKB)
		result["db_path"] = filepath.Base(dbPath)
	}
	statsPath := filepath.Join(config.DataDir(), config.StatsFileName)
	if info, err := os.Stat(statsPath); err == nil {
		result["last_reindex"] = info.ModTime().Format("2006-01-02 15:04:05")
	}
}

func saveStats(stats *Stats) {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "lessons: save stats: %v\n", err)
		return
	}
	data, _ := json.MarshalIndent(stats, "", "  ")
	if err := os.WriteFile(filepath.Join(dataDir, config.StatsFileName), data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "lessons: save stats: %v\n", err)
	}
}
