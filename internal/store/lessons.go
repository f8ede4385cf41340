package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LessonRecord is one lesson's searchable projection as persisted.
type LessonRecord struct {
	Platform    string
	Slug        string
	Title       string
	Description string
	Order       int
	Position    int // index in the platform's ordered list
	ContentHash string
	IndexedAt   int64
}

const (
	metaPlatformHashPrefix = "platform_hash:"
	metaLastIndexed        = "last_indexed"
)

// ReplacePlatform swaps every stored row for platform with records and
// records the platform's content hash, all in one transaction.
func (db *DB) ReplacePlatform(platform, hash string, records []LessonRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM lessons WHERE platform = ?", platform); err != nil {
		return fmt.Errorf("delete %s lessons: %w", platform, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lessons (platform, slug, title, description, ord, position, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare lesson stmt: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, rec := range records {
		indexedAt := rec.IndexedAt
		if indexedAt == 0 {
			indexedAt = now
		}
		if _, err := stmt.Exec(
			platform, rec.Slug, rec.Title, rec.Description,
			rec.Order, rec.Position, rec.ContentHash, indexedAt,
		); err != nil {
			return fmt.Errorf("insert lesson %d (%s/%s): %w", i, platform, rec.Slug, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaPlatformHashPrefix+platform, hash,
	); err != nil {
		return fmt.Errorf("store %s hash: %w", platform, err)
	}

	return tx.Commit()
}

// PlatformHash returns the content hash stored by the last ReplacePlatform
// for platform, or "" if it was never indexed.
func (db *DB) PlatformHash(platform string) (string, error) {
	v, ok, err := db.GetMeta(metaPlatformHashPrefix + platform)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

// DeleteAllLessons removes every lesson row and platform hash. Used for
// force reindex.
func (db *DB) DeleteAllLessons() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM lessons"); err != nil {
		return fmt.Errorf("delete all lessons: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM index_meta WHERE key LIKE ?", metaPlatformHashPrefix+"%"); err != nil {
		return fmt.Errorf("delete platform hashes: %w", err)
	}
	return tx.Commit()
}

// LessonCount returns the number of lessons in the index.
func (db *DB) LessonCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM lessons").Scan(&count)
	return count, err
}

// CountsByPlatform returns the number of stored lessons per platform.
func (db *DB) CountsByPlatform() (map[string]int, error) {
	rows, err := db.conn.Query("SELECT platform, COUNT(*) FROM lessons GROUP BY platform")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		counts[p] = n
	}
	return counts, rows.Err()
}

// PlatformLessons returns a platform's stored rows in position order.
func (db *DB) PlatformLessons(platform string) ([]LessonRecord, error) {
	rows, err := db.conn.Query(`
		SELECT platform, slug, title, description, ord, position, content_hash, indexed_at
		FROM lessons WHERE platform = ? ORDER BY position`, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LessonRecord
	for rows.Next() {
		var r LessonRecord
		if err := rows.Scan(&r.Platform, &r.Slug, &r.Title, &r.Description,
			&r.Order, &r.Position, &r.ContentHash, &r.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetMeta upserts an index_meta value.
func (db *DB) SetMeta(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMeta reads an index_meta value. The boolean is false when the key is
// absent.
func (db *DB) GetMeta(key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// MarkIndexed records t as the time of the last completed reindex.
func (db *DB) MarkIndexed(t time.Time) error {
	return db.SetMeta(metaLastIndexed, strconv.FormatInt(t.Unix(), 10))
}

// IndexAge returns how long ago the last reindex completed (0 if never).
func (db *DB) IndexAge() time.Duration {
	v, ok, err := db.GetMeta(metaLastIndexed)
	if err != nil || !ok {
		return 0
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return time.Since(time.Unix(ts, 0))
}
