package store

import (
	"fmt"
	"strings"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

// SearchResult is one keyword search hit.
type SearchResult struct {
	Platform    string `json:"platform"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Score       int    `json:"score"` // number of query terms matched
}

// KeywordSearch performs a SQL LIKE search on title and description. Uses OR
// between terms and ranks by match count, then platform order, then lesson
// position. An empty platform searches every platform.
func (db *DB) KeywordSearch(terms []string, platform string, limit int) ([]SearchResult, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	var matchExprs, conditions []string
	var scoreArgs, condArgs []any
	for _, term := range terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		matchExprs = append(matchExprs,
			`(CASE WHEN LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`)
		scoreArgs = append(scoreArgs, pattern, pattern)
		conditions = append(conditions,
			`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		condArgs = append(condArgs, pattern, pattern)
	}

	var rank strings.Builder
	rank.WriteString("CASE platform")
	platforms := content.Platforms()
	for i, p := range platforms {
		fmt.Fprintf(&rank, " WHEN '%s' THEN %d", p, i)
	}
	fmt.Fprintf(&rank, " ELSE %d END", len(platforms))

	where := "(" + strings.Join(conditions, " OR ") + ")"
	args := append([]any{}, scoreArgs...)
	args = append(args, condArgs...)
	if platform != "" {
		where += " AND platform = ?"
		args = append(args, platform)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT platform, slug, title, description, (%s) AS score
		FROM lessons
		WHERE %s
		ORDER BY score DESC, %s, position
		LIMIT ?`,
		strings.Join(matchExprs, " + "), where, rank.String())

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Platform, &r.Slug, &r.Title, &r.Description, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// escapeLike escapes LIKE wildcards so terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
